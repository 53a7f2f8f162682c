// Package includecmd implements the include subcommand: it parses
// manifest text and adds its actions to a transaction opened by an
// earlier invocation. Rejected actions downgrade the result to
// partial instead of aborting the remaining actions.
package includecmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkgpress.run/cmd/pkgpress/command/cmdutil"
	"pkgpress.run/internal/manifest"
	"pkgpress.run/internal/source"
	"pkgpress.run/internal/transaction"
	"pkgpress.run/internal/transform"
	"pkgpress.run/internal/transport"
)

const (
	includeUse   = "include [-d dir]... [-T pattern]... [manifest ...]"
	includeShort = "add actions from manifest text to the open transaction"
	basedirUse   = "directory to search for action payloads, repeatable"
	timestampUse = "glob pattern selecting files whose timestamp attribute is set from the payload mtime, repeatable"
)

type Include struct {
	cfg    *cmdutil.Config
	in     io.Reader
	errOut io.Writer

	BaseDirs          []string
	TimestampPatterns []string

	Manifests []string
}

func New(cfg *cmdutil.Config) *Include {
	return &Include{cfg: cfg}
}

func (i *Include) Complete(args []string) error {
	i.Manifests = args
	return nil
}

func (i *Include) Run(ctx context.Context) error {
	id, err := i.cfg.TransactionID("")
	if err != nil {
		return err
	}
	client, err := i.cfg.Dial(transport.Options{})
	if err != nil {
		return err
	}

	sources, err := source.Read(i.Manifests, i.in)
	if err != nil {
		return err
	}
	agg := source.Join(sources)

	m, err := manifest.Parse(agg.Content)
	if err != nil {
		if parseErr, ok := err.(*manifest.ParseError); ok {
			return fmt.Errorf("%s: %s", agg.Attribution(parseErr.Line), parseErr.Reason)
		}
		return err
	}

	tf, err := transform.New(transform.ModeInclude, i.BaseDirs, nil, i.TimestampPatterns)
	if err != nil {
		return fmt.Errorf("%w: %s", cmdutil.ErrInvalidArgs, err)
	}

	// The transaction belongs to the invocation that opened it, so
	// per-action rejections are reported and skipped rather than
	// aborting it.
	txn := transaction.Resume(client, id)
	rejected := false
	for _, a := range m.Actions {
		res, err := tf.Transform(ctx, a)
		if err != nil {
			return err
		}
		switch res.Disposition {
		case transform.Skip:
			if res.Warning != "" {
				fmt.Fprintln(i.errOut, res.Warning)
			}
		case transform.Reject:
			fmt.Fprintf(i.errOut, "invalid action for publication: %s\n", a)
			rejected = true
		case transform.Keep:
			if err := txn.Add(ctx, a); err != nil {
				return err
			}
		}
	}

	if rejected {
		return cmdutil.ErrPartialPublication
	}
	return nil
}

func (i *Include) CobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: includeUse, Short: includeShort}
	f := cmd.Flags()
	f.StringArrayVarP(&i.BaseDirs, "dir", "d", nil, basedirUse)
	f.StringArrayVarP(&i.TimestampPatterns, "timestamp", "T", nil, timestampUse)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := i.Complete(args); err != nil {
			return err
		}
		i.in = cmd.InOrStdin()
		i.errOut = cmd.ErrOrStderr()
		return i.Run(cmd.Context())
	}
	return cmd
}
