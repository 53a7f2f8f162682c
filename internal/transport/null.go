package transport

import (
	"context"

	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/transaction"
)

// Null discards everything. It exists so publication pipelines can
// be exercised without a destination.
type Null struct{}

var _ transaction.Client = Null{}

func (Null) Open(ctx context.Context, pkgName string) (string, error)   { return "null", nil }
func (Null) Append(ctx context.Context, pkgName string) (string, error) { return "null", nil }

func (Null) Add(ctx context.Context, id string, a *actions.Action) error { return nil }

func (Null) Close(ctx context.Context, id string, abandon, addToCatalog bool) (string, string, error) {
	return "", "", nil
}

func (Null) RefreshIndex(ctx context.Context) error { return nil }
