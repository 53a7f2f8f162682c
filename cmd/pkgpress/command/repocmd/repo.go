// Package repocmd implements the repository maintenance subcommands
// create-repository and refresh-index.
package repocmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pkgpress.run/cmd/pkgpress/command/cmdutil"
	"pkgpress.run/internal/repository"
	"pkgpress.run/internal/transport"
)

const (
	createUse   = "create-repository [--set-property section.property=value]..."
	createShort = "create a filesystem package repository at the destination"
	setPropUse  = "set a repository configuration property, repeatable"

	refreshUse   = "refresh-index"
	refreshShort = "rebuild the catalog of the destination repository"
)

type Create struct {
	cfg *cmdutil.Config

	SetProperties []string
}

func NewCreate(cfg *cmdutil.Config) *Create {
	return &Create{cfg: cfg}
}

func (c *Create) Complete(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: create-repository takes no operands", cmdutil.ErrInvalidArgs)
	}
	return nil
}

func (c *Create) Run(ctx context.Context) error {
	root, err := repositoryRoot(c.cfg)
	if err != nil {
		return err
	}

	props := repository.Properties{}
	for _, arg := range c.SetProperties {
		section, name, value, err := repository.ParseProperty(arg)
		if err != nil {
			return fmt.Errorf("%w: %s", cmdutil.ErrInvalidArgs, err)
		}
		if props[section] == nil {
			props[section] = map[string]string{}
		}
		props[section][name] = value
	}

	_, err = repository.Create(root, props)
	return err
}

func (c *Create) CobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: createUse, Short: createShort}
	cmd.Flags().StringArrayVar(&c.SetProperties, "set-property", nil, setPropUse)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := c.Complete(args); err != nil {
			return err
		}
		return c.Run(cmd.Context())
	}
	return cmd
}

// repositoryRoot resolves the destination as a local filesystem path.
// create-repository cannot operate on remote repositories.
func repositoryRoot(cfg *cmdutil.Config) (string, error) {
	uri := cfg.RepoURI()
	if uri == "" {
		return "", fmt.Errorf(
			"%w: A destination package repository must be provided using -s", cmdutil.ErrInvalidArgs)
	}
	root, ok := transport.LocalPath(uri)
	if !ok {
		return "", fmt.Errorf(
			"%w: create-repository requires a filesystem destination, got %q",
			cmdutil.ErrInvalidArgs, uri)
	}
	return root, nil
}

type Refresh struct {
	cfg *cmdutil.Config
}

func NewRefresh(cfg *cmdutil.Config) *Refresh {
	return &Refresh{cfg: cfg}
}

func (r *Refresh) Complete(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: refresh-index takes no operands", cmdutil.ErrInvalidArgs)
	}
	return nil
}

func (r *Refresh) Run(ctx context.Context) error {
	client, err := r.cfg.Dial(transport.Options{})
	if err != nil {
		return err
	}
	return client.RefreshIndex(ctx)
}

func (r *Refresh) CobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: refreshUse, Short: refreshShort}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := r.Complete(args); err != nil {
			return err
		}
		return r.Run(cmd.Context())
	}
	return cmd
}
