// Package opencmd implements the open and append subcommands: they
// start a repository transaction and print its identifier for later
// invocations to pick up.
package opencmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkgpress.run/cmd/pkgpress/command/cmdutil"
	"pkgpress.run/internal/transaction"
	"pkgpress.run/internal/transport"
)

const (
	openUse     = "open [-e|-n] pkg_name"
	openShort   = "open a new transaction for the named package"
	appendUse   = "append [-e|-n] pkg_name"
	appendShort = "reopen a published package to append actions"
	evalUse     = "print the identifier as an eval-able export statement (default)"
	plainUse    = "print the bare identifier"
)

type Open struct {
	cfg *cmdutil.Config
	out io.Writer

	// Append reopens instead of opening fresh.
	Append   bool
	EvalForm bool
	Plain    bool

	PkgName string
}

func New(cfg *cmdutil.Config) *Open {
	return &Open{cfg: cfg}
}

func NewAppend(cfg *cmdutil.Config) *Open {
	return &Open{cfg: cfg, Append: true}
}

func (o *Open) name() string {
	if o.Append {
		return "append"
	}
	return "open"
}

func (o *Open) Complete(args []string) error {
	if o.EvalForm && o.Plain {
		return fmt.Errorf("%w: only -e or -n may be specified", cmdutil.ErrInvalidArgs)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: %s requires one package name", cmdutil.ErrInvalidArgs, o.name())
	}
	o.PkgName = args[0]
	return nil
}

func (o *Open) Run(ctx context.Context) error {
	client, err := o.cfg.Dial(transport.Options{})
	if err != nil {
		return err
	}

	txn := transaction.New(client, o.PkgName)
	var id string
	if o.Append {
		id, err = txn.Append(ctx)
	} else {
		id, err = txn.Open(ctx)
	}
	if err != nil {
		return err
	}

	if o.Plain {
		fmt.Fprintln(o.out, id)
	} else {
		fmt.Fprintf(o.out, "export %s=%s\n", cmdutil.EnvTransID, id)
	}
	return nil
}

func (o *Open) CobraCommand() *cobra.Command {
	use, short := openUse, openShort
	if o.Append {
		use, short = appendUse, appendShort
	}
	cmd := &cobra.Command{Use: use, Short: short}
	f := cmd.Flags()
	f.BoolVarP(&o.EvalForm, "eval", "e", false, evalUse)
	f.BoolVarP(&o.Plain, "no-eval", "n", false, plainUse)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := o.Complete(args); err != nil {
			return err
		}
		o.out = cmd.OutOrStdout()
		return o.Run(cmd.Context())
	}
	return cmd
}
