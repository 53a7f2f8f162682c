// Package generatecmd implements the generate subcommand: a pure
// transform that emits a manifest for the given sources on standard
// output without touching any transaction.
package generatecmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkgpress.run/cmd/pkgpress/command/cmdutil"
	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/bundle"
	"pkgpress.run/internal/transform"
)

const (
	generateUse   = "generate [-u] [-T pattern]... [--target path]... source ..."
	generateShort = "emit a manifest for the given sources on standard output"
	noOwnerUse    = "emit actions without default owner and group attributes"
	timestampUse  = "glob pattern selecting files that keep their timestamp attribute, repeatable"
	targetUse     = "path to deliver as a file even when the source declares it a hardlink, repeatable"
)

type Generate struct {
	out    io.Writer
	errOut io.Writer

	NoDefaultOwner    bool
	TimestampPatterns []string
	TargetPaths       []string

	Sources []string
}

// New builds a Generate command. Unlike the other subcommands it
// needs no repository configuration.
func New() *Generate {
	return &Generate{}
}

func (g *Generate) Complete(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: No arguments specified for subcommand", cmdutil.ErrInvalidArgs)
	}
	g.Sources = args
	return nil
}

func (g *Generate) Run(ctx context.Context) error {
	tf, err := transform.New(transform.ModeGenerate, nil, nil, g.TimestampPatterns)
	if err != nil {
		return fmt.Errorf("%w: %s", cmdutil.ErrInvalidArgs, err)
	}

	validator := bundle.NewValidator()
	for _, src := range g.Sources {
		b, err := bundle.Make(src, bundle.Options{
			TargetPaths:  g.TargetPaths,
			DefaultOwner: !g.NoDefaultOwner,
		})
		if err != nil {
			return err
		}
		validator.Visit(b)

		for _, a := range b.Actions() {
			res, err := tf.Transform(ctx, a)
			if err != nil {
				return err
			}
			if res.Disposition == transform.Skip {
				if res.Warning != "" {
					fmt.Fprintln(g.errOut, res.Warning)
				}
				continue
			}
			// Unhashed payloads print their path in the hash
			// slot so the output stays a valid manifest.
			if a.Hash == actions.NoHash && a.Attrs["path"] != "" {
				a.Hash = a.Attrs["path"]
			}
			fmt.Fprintln(g.out, a)
		}
	}

	failed := false
	for _, warn := range validator.Warnings() {
		fmt.Fprintln(g.errOut, warn)
	}
	for _, msg := range validator.Errors() {
		fmt.Fprintln(g.errOut, msg)
		failed = true
	}
	if failed {
		return fmt.Errorf("structural problems found in sources")
	}
	return nil
}

func (g *Generate) CobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: generateUse, Short: generateShort}
	f := cmd.Flags()
	f.BoolVarP(&g.NoDefaultOwner, "no-default-owner", "u", false, noOwnerUse)
	f.StringArrayVarP(&g.TimestampPatterns, "timestamp", "T", nil, timestampUse)
	f.StringArrayVar(&g.TargetPaths, "target", nil, targetUse)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := g.Complete(args); err != nil {
			return err
		}
		g.out = cmd.OutOrStdout()
		g.errOut = cmd.ErrOrStderr()
		return g.Run(cmd.Context())
	}
	return cmd
}
