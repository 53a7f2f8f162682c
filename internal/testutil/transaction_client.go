package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/transaction"
)

// TransactionClient is a mock for the transaction client interface.
type TransactionClient struct {
	mock.Mock
}

var _ transaction.Client = (*TransactionClient)(nil)

func (c *TransactionClient) Open(ctx context.Context, pkgName string) (string, error) {
	args := c.Called(ctx, pkgName)
	return args.String(0), args.Error(1)
}

func (c *TransactionClient) Append(ctx context.Context, pkgName string) (string, error) {
	args := c.Called(ctx, pkgName)
	return args.String(0), args.Error(1)
}

func (c *TransactionClient) Add(ctx context.Context, id string, a *actions.Action) error {
	args := c.Called(ctx, id, a)
	return args.Error(0)
}

func (c *TransactionClient) Close(ctx context.Context, id string, abandon, addToCatalog bool) (string, string, error) {
	args := c.Called(ctx, id, abandon, addToCatalog)
	return args.String(0), args.String(1), args.Error(2)
}

func (c *TransactionClient) RefreshIndex(ctx context.Context) error {
	args := c.Called(ctx)
	return args.Error(0)
}
