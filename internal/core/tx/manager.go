// Package tx defines the transaction boundary the domain services program
// against. The postgres implementation carries the open transaction in the
// context; the in-memory store satisfies the same shape trivially.
package tx

import (
	"context"
)

// Manager runs fn inside a transaction: rollback when fn errors, commit
// otherwise. A nested call joins the transaction already in the context
// instead of opening a second one.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds a read-only variant for pure queries; writes inside
// ReadOnly fail at the database.
type ReadOnlyManager interface {
	Manager

	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
