// Package addcmd implements the add subcommand: it sends one action,
// composed from command-line operands, to the transaction named by
// $PKG_TRANS_ID.
package addcmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkgpress.run/cmd/pkgpress/command/cmdutil"
	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/transaction"
	"pkgpress.run/internal/transport"
)

const (
	addUse   = "add action_type [payload_file] key=value ..."
	addShort = "add one action to the open transaction"
)

type Add struct {
	cfg *cmdutil.Config

	action *actions.Action
}

func New(cfg *cmdutil.Config) *Add {
	return &Add{cfg: cfg}
}

func (a *Add) Complete(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: No arguments specified for subcommand", cmdutil.ErrInvalidArgs)
	}

	name := args[0]
	operands := args[1:]

	// A leading operand without = names the payload file.
	var payloadPath string
	if len(operands) > 0 && !strings.Contains(operands[0], "=") {
		payloadPath = operands[0]
		operands = operands[1:]
	}

	act, err := actions.New(name, operands)
	if err != nil {
		return fmt.Errorf("%w: %s", cmdutil.ErrInvalidArgs, err)
	}
	if act.Disallowed() {
		return fmt.Errorf("invalid action for publication: %s", act)
	}
	if payloadPath != "" {
		if !act.HasPayload() {
			return fmt.Errorf("%w: action %s takes no payload file", cmdutil.ErrInvalidArgs, name)
		}
		act.Payload = &actions.FilePayload{Path: payloadPath}
	}

	a.action = act
	return nil
}

func (a *Add) Run(ctx context.Context) error {
	id, err := a.cfg.TransactionID("")
	if err != nil {
		return err
	}
	client, err := a.cfg.Dial(transport.Options{})
	if err != nil {
		return err
	}

	return transaction.Resume(client, id).Add(ctx, a.action)
}

func (a *Add) CobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: addUse, Short: addShort}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := a.Complete(args); err != nil {
			return err
		}
		return a.Run(cmd.Context())
	}
	return cmd
}
