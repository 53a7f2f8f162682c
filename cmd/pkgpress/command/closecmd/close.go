// Package closecmd implements the close subcommand: it commits or
// abandons the transaction named by -t or $PKG_TRANS_ID.
package closecmd

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
	closeUse     = "close [-A] [-t trans_id] [--no-catalog]"
	closeShort   = "commit or abandon an open transaction"
	abandonUse   = "abandon the transaction instead of committing it"
	transIDUse   = "transaction identifier, overrides $PKG_TRANS_ID"
	noCatalogUse = "commit without adding the package to the catalog"
)

type Close struct {
	cfg *cmdutil.Config
	out io.Writer

	Abandon   bool
	TransID   string
	NoCatalog bool
}

func New(cfg *cmdutil.Config) *Close {
	return &Close{cfg: cfg}
}

func (c *Close) Complete(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: close takes no operands", cmdutil.ErrInvalidArgs)
	}
	var err error
	c.TransID, err = c.cfg.TransactionID(c.TransID)
	return err
}

func (c *Close) Run(ctx context.Context) error {
	client, err := c.cfg.Dial(transport.Options{})
	if err != nil {
		return err
	}

	txn := transaction.Resume(client, c.TransID)
	state, pkgFMRI, err := txn.Close(ctx, c.Abandon, !c.NoCatalog)
	if err != nil {
		return err
	}

	for _, val := range []string{state, pkgFMRI} {
		if val != "" {
			fmt.Fprintln(c.out, val)
		}
	}
	return nil
}

func (c *Close) CobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: closeUse, Short: closeShort}
	f := cmd.Flags()
	f.BoolVarP(&c.Abandon, "abandon", "A", false, abandonUse)
	f.StringVarP(&c.TransID, "trans-id", "t", "", transIDUse)
	f.BoolVar(&c.NoCatalog, "no-catalog", false, noCatalogUse)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := c.Complete(args); err != nil {
			return err
		}
		c.out = cmd.OutOrStdout()
		return c.Run(cmd.Context())
	}
	return cmd
}
