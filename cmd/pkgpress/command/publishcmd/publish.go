// Package publishcmd implements the publish subcommand: the full
// open, transform, add, close cycle in one invocation.
package publishcmd

import (
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"pkgpress.run/cmd/pkgpress/command/cmdutil"
	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/bundle"
	"pkgpress.run/internal/manifest"
	"pkgpress.run/internal/source"
	"pkgpress.run/internal/transaction"
	"pkgpress.run/internal/transform"
	"pkgpress.run/internal/transport"
)

const (
	publishUse = "publish [-b bundle]... [-d dir]... [-T pattern]... " +
		"[--key ssl_key --cert ssl_cert] [--no-catalog] [manifest ...]"
	publishShort  = "publish a package from manifests and sources in one step"
	bundleUse     = "legacy package bundle to source payloads from, repeatable"
	basedirUse    = "directory to search for action payloads, repeatable"
	timestampUse  = "glob pattern selecting files whose timestamp attribute is set from the payload mtime, repeatable"
	keyUse        = "client SSL key file for the repository connection"
	certUse       = "client SSL certificate file for the repository connection"
	noCatalogUse  = "commit without adding the package to the catalog"
	invalidAction = "invalid action for publication: %s"
)

type Publish struct {
	cfg    *cmdutil.Config
	out    io.Writer
	errOut io.Writer
	in     io.Reader

	Bundles           []string
	BaseDirs          []string
	TimestampPatterns []string
	Key               string
	Cert              string
	NoCatalog         bool

	Manifests []string
}

func New(cfg *cmdutil.Config) *Publish {
	return &Publish{cfg: cfg}
}

func (p *Publish) Complete(args []string) error {
	p.Manifests = args
	return nil
}

func (p *Publish) Run(ctx context.Context) error {
	log := logr.FromContextOrDiscard(ctx).V(1)

	sources, err := source.Read(p.Manifests, p.in)
	if err != nil {
		return err
	}
	agg := source.Concat(sources)

	m, err := manifest.Parse(agg.Content)
	if err != nil {
		if parseErr, ok := err.(*manifest.ParseError); ok {
			return fmt.Errorf("%s: %s", agg.Attribution(parseErr.Line), parseErr.Reason)
		}
		return err
	}

	pkgFMRI, err := m.FMRI()
	if err != nil {
		return err
	}
	// The repository assigns the publication timestamp at close.
	pkgName := pkgFMRI.WithoutTimestamp().String()

	bundles, err := p.makeBundles(m)
	if err != nil {
		return err
	}
	tf, err := transform.New(transform.ModePublish, p.BaseDirs, bundles, p.TimestampPatterns)
	if err != nil {
		return fmt.Errorf("%w: %s", cmdutil.ErrInvalidArgs, err)
	}

	client, err := p.cfg.Dial(transport.Options{SSLKey: p.Key, SSLCert: p.Cert})
	if err != nil {
		return err
	}

	txn := transaction.New(client, pkgName)
	if _, err := txn.Open(ctx); err != nil {
		return err
	}
	// An in-progress transaction is never left dangling: abandon is
	// a no-op once the transaction closed.
	defer txn.Abandon(ctx)

	var toAdd []*actions.Action
	for _, a := range m.Actions {
		res, err := tf.Transform(ctx, a)
		if err != nil {
			return err
		}
		switch res.Disposition {
		case transform.Skip:
			if res.Warning != "" {
				fmt.Fprintln(p.errOut, res.Warning)
			}
		case transform.Reject:
			return fmt.Errorf(invalidAction, a)
		case transform.Keep:
			toAdd = append(toAdd, a)
		}
	}

	log.Info("adding actions", "package", pkgName, "count", len(toAdd))
	if err := txn.AddAll(ctx, toAdd); err != nil {
		return err
	}

	state, finalFMRI, err := txn.Close(ctx, false, !p.NoCatalog)
	if err != nil {
		return err
	}
	for _, val := range []string{state, finalFMRI} {
		if val != "" {
			fmt.Fprintln(p.out, val)
		}
	}
	return nil
}

// makeBundles opens every -b source. File paths declared by the
// manifest are passed along so hardlinks the manifest declares as
// files are sourced as files.
func (p *Publish) makeBundles(m *manifest.Manifest) ([]bundle.Bundle, error) {
	if len(p.Bundles) == 0 {
		return nil, nil
	}

	var targetFiles []string
	for _, a := range m.Actions {
		if a.Name == "file" {
			targetFiles = append(targetFiles, a.Attrs["path"])
		}
	}

	bundles := make([]bundle.Bundle, 0, len(p.Bundles))
	for _, path := range p.Bundles {
		b, err := bundle.Make(path, bundle.Options{TargetPaths: targetFiles, DefaultOwner: true})
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func (p *Publish) CobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: publishUse, Short: publishShort}
	f := cmd.Flags()
	f.StringArrayVarP(&p.Bundles, "bundle", "b", nil, bundleUse)
	f.StringArrayVarP(&p.BaseDirs, "dir", "d", nil, basedirUse)
	f.StringArrayVarP(&p.TimestampPatterns, "timestamp", "T", nil, timestampUse)
	f.StringVar(&p.Key, "key", "", keyUse)
	f.StringVar(&p.Cert, "cert", "", certUse)
	f.BoolVar(&p.NoCatalog, "no-catalog", false, noCatalogUse)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := p.Complete(args); err != nil {
			return err
		}
		p.in = cmd.InOrStdin()
		p.out = cmd.OutOrStdout()
		p.errOut = cmd.ErrOrStderr()
		return p.Run(cmd.Context())
	}
	return cmd
}
