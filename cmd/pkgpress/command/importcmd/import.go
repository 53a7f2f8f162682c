// Package importcmd implements the import subcommand: it expands
// legacy bundle and directory sources into actions and adds them to
// the transaction named by $PKG_TRANS_ID. Every structural finding
// is collected before the transaction is abandoned, so one run
// surfaces all problems at once.
package importcmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkgpress.run/cmd/pkgpress/command/cmdutil"
	"pkgpress.run/internal/bundle"
	"pkgpress.run/internal/transaction"
	"pkgpress.run/internal/transform"
	"pkgpress.run/internal/transport"
)

const (
	importUse    = "import [-T pattern]... [--target path]... source ..."
	importShort  = "expand bundle sources into actions and add them to the open transaction"
	timestampUse = "glob pattern selecting files whose timestamp attribute is set from the payload mtime, repeatable"
	targetUse    = "path to deliver as a file even when the source declares it a hardlink, repeatable"
)

type Import struct {
	cfg    *cmdutil.Config
	errOut io.Writer

	TimestampPatterns []string
	TargetPaths       []string

	Sources []string
}

func New(cfg *cmdutil.Config) *Import {
	return &Import{cfg: cfg}
}

func (i *Import) Complete(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: No arguments specified for subcommand", cmdutil.ErrInvalidArgs)
	}
	i.Sources = args
	return nil
}

func (i *Import) Run(ctx context.Context) error {
	id, err := i.cfg.TransactionID("")
	if err != nil {
		return err
	}
	client, err := i.cfg.Dial(transport.Options{})
	if err != nil {
		return err
	}
	txn := transaction.Resume(client, id)

	validator := bundle.NewValidator()
	abandon := false

	for _, src := range i.Sources {
		b, err := bundle.Make(src, bundle.Options{
			TargetPaths:  i.TargetPaths,
			DefaultOwner: true,
		})
		if err != nil {
			txn.Abandon(ctx)
			return err
		}
		validator.Visit(b)

		tf, err := transform.New(transform.ModeImport, nil, []bundle.Bundle{b}, i.TimestampPatterns)
		if err != nil {
			txn.Abandon(ctx)
			return fmt.Errorf("%w: %s", cmdutil.ErrInvalidArgs, err)
		}

		for _, a := range b.Actions() {
			res, err := tf.Transform(ctx, a)
			if err != nil {
				txn.Abandon(ctx)
				return err
			}
			switch res.Disposition {
			case transform.Skip:
				if res.Warning != "" {
					fmt.Fprintln(i.errOut, res.Warning)
				}
			case transform.Reject:
				fmt.Fprintf(i.errOut, "invalid action for publication: %s\n", a)
				// Keep enumerating for diagnostic completeness,
				// but add nothing further.
				abandon = true
			case transform.Keep:
				if abandon {
					continue
				}
				if err := txn.Add(ctx, a); err != nil {
					txn.Abandon(ctx)
					return err
				}
			}
		}
	}

	for _, warn := range validator.Warnings() {
		fmt.Fprintln(i.errOut, warn)
	}
	for _, msg := range validator.Errors() {
		fmt.Fprintln(i.errOut, msg)
		abandon = true
	}

	if abandon {
		txn.Abandon(ctx)
		return fmt.Errorf("abandoning transaction due to errors")
	}
	return nil
}

func (i *Import) CobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: importUse, Short: importShort}
	f := cmd.Flags()
	f.StringArrayVarP(&i.TimestampPatterns, "timestamp", "T", nil, timestampUse)
	f.StringArrayVar(&i.TargetPaths, "target", nil, targetUse)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := i.Complete(args); err != nil {
			return err
		}
		i.errOut = cmd.ErrOrStderr()
		return i.Run(cmd.Context())
	}
	return cmd
}
