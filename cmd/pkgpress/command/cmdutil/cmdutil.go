// Package cmdutil carries the pieces shared by all pkgpress
// subcommands: sentinel errors for exit-code mapping and the
// invocation configuration resolved from flags and environment.
package cmdutil

import (
	"errors"
	"fmt"

	"pkgpress.run/internal/transaction"
	"pkgpress.run/internal/transport"
)

// ErrInvalidArgs is wrapped by argument validation failures and maps
// to the usage-error exit code.
var ErrInvalidArgs = errors.New("arguments invalid")

// ErrPartialPublication reports that some actions were rejected while
// others were added successfully.
var ErrPartialPublication = errors.New("some actions were rejected")

// Environment variables stitching separate invocations together.
const (
	EnvRepo    = "PKG_REPO"
	EnvTransID = "PKG_TRANS_ID"
)

// Config resolves the destination repository and the transaction
// token for one invocation. Environment access goes through an
// injected lookup so the core stays testable without process
// environment manipulation.
type Config struct {
	// RepoFlag is bound to the persistent -s flag.
	RepoFlag  string
	LookupEnv func(string) (string, bool)
}

// RepoURI returns the destination repository: the -s flag when
// given, the PKG_REPO environment otherwise.
func (c *Config) RepoURI() string {
	if c.RepoFlag != "" {
		return c.RepoFlag
	}
	if v, ok := c.LookupEnv(EnvRepo); ok {
		return v
	}
	return ""
}

// Dial connects to the destination repository.
func (c *Config) Dial(opts transport.Options) (transaction.Client, error) {
	repoURI := c.RepoURI()
	if repoURI == "" {
		return nil, fmt.Errorf(
			"%w: A destination package repository must be provided using -s", ErrInvalidArgs)
	}
	return transport.Dial(repoURI, opts)
}

// TransactionID resolves the transaction token: an explicit flag
// value wins over the PKG_TRANS_ID environment.
func (c *Config) TransactionID(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v, ok := c.LookupEnv(EnvTransID); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf(
		"%w: No transaction ID specified using -t or in $PKG_TRANS_ID", ErrInvalidArgs)
}
