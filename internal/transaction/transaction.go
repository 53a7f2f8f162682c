// Package transaction sequences the external repository transaction
// protocol: open, add actions, then commit or abandon as a unit.
package transaction

import (
	"context"
	"fmt"

	"pkgpress.run/internal/actions"
)

// Client is the repository endpoint boundary. Implementations speak
// whatever transport the destination needs; the orchestrator only
// relies on these five calls.
type Client interface {
	Open(ctx context.Context, pkgName string) (id string, err error)
	Append(ctx context.Context, pkgName string) (id string, err error)
	Add(ctx context.Context, id string, a *actions.Action) error
	Close(ctx context.Context, id string, abandon, addToCatalog bool) (state, pkgFMRI string, err error)
	RefreshIndex(ctx context.Context) error
}

// State of a transaction as seen by this invocation.
type State int

const (
	Unopened State = iota
	Open
	Closed
	Abandoned
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transaction owns at most one open repository transaction for the
// duration of one invocation.
type Transaction struct {
	client  Client
	pkgName string
	id      string
	state   State
}

// New prepares a transaction for the named package. Nothing is sent
// until Open or Append is called.
func New(client Client, pkgName string) *Transaction {
	return &Transaction{client: client, pkgName: pkgName}
}

// Resume continues a transaction opened by an earlier invocation,
// identified by the token that invocation printed.
func Resume(client Client, id string) *Transaction {
	return &Transaction{client: client, id: id, state: Open}
}

// ID returns the transaction identifier, empty before Open.
func (t *Transaction) ID() string { return t.id }

func (t *Transaction) State() State { return t.state }

// Open opens a new transaction and returns its identifier.
func (t *Transaction) Open(ctx context.Context) (string, error) {
	return t.open(ctx, t.client.Open)
}

// Append reopens the package for appending actions to a published
// version.
func (t *Transaction) Append(ctx context.Context) (string, error) {
	return t.open(ctx, t.client.Append)
}

func (t *Transaction) open(ctx context.Context, call func(context.Context, string) (string, error)) (string, error) {
	if t.state != Unopened {
		panic(fmt.Sprintf("transaction opened twice (state %s)", t.state))
	}
	id, err := call(ctx, t.pkgName)
	if err != nil {
		return "", fmt.Errorf("open transaction for %s: %w", t.pkgName, err)
	}
	t.id = id
	t.state = Open
	return id, nil
}

// Add sends one action. Calling Add outside an open transaction is a
// programming-contract violation and panics.
func (t *Transaction) Add(ctx context.Context, a *actions.Action) error {
	if t.state != Open {
		panic(fmt.Sprintf("Add called on %s transaction", t.state))
	}
	if err := t.client.Add(ctx, t.id, a); err != nil {
		return fmt.Errorf("add %s action: %w", a.Name, err)
	}
	return nil
}

// Close commits the transaction, or discards it when abandon is set.
// addToCatalog=false still commits content but skips indexing the
// package into the browsable catalog.
func (t *Transaction) Close(ctx context.Context, abandon, addToCatalog bool) (state, pkgFMRI string, err error) {
	if t.state != Open {
		panic(fmt.Sprintf("Close called on %s transaction", t.state))
	}
	state, pkgFMRI, err = t.client.Close(ctx, t.id, abandon, addToCatalog)
	if err != nil {
		return "", "", fmt.Errorf("close transaction %s: %w", t.id, err)
	}
	if abandon {
		t.state = Abandoned
	} else {
		t.state = Closed
	}
	return state, pkgFMRI, nil
}

// Abandon discards an open transaction. It is safe to call on every
// exit path: once the transaction reached a terminal state it does
// nothing.
func (t *Transaction) Abandon(ctx context.Context) {
	if t.state != Open {
		return
	}
	// The close error is secondary to whatever caused the abandon.
	_, _, _ = t.Close(ctx, true, false)
	t.state = Abandoned
}

// AddAll adds every action, abandoning the transaction on the first
// failure before surfacing the error. An in-progress transaction is
// never left dangling.
func (t *Transaction) AddAll(ctx context.Context, acts []*actions.Action) error {
	for _, a := range acts {
		if err := t.Add(ctx, a); err != nil {
			t.Abandon(ctx)
			return err
		}
	}
	return nil
}
