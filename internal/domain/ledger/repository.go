package ledger

import (
	"context"

	"retailcore/internal/core/id"
)

// Repository defines durable storage for ledger entries.
// Implementations must treat entries as append-only records.
type Repository interface {
	// AppendEntry persists a new entry.
	AppendEntry(ctx context.Context, entry *Entry) error

	// GetEntry retrieves one entry by id.
	GetEntry(ctx context.Context, entryID id.ID) (*Entry, error)

	// DeleteEntry removes one entry (administrator reversal).
	DeleteEntry(ctx context.Context, entryID id.ID) error

	// ListEntries returns all entries for a product, oldest first.
	ListEntries(ctx context.Context, productID id.ID) ([]Entry, error)

	// SumEntries returns conferred and lost totals by summing live entries.
	SumEntries(ctx context.Context, productID id.ID) (conferred, lost int, err error)
}

// SoldReader exposes the sold counter derived from committed sale lines.
// Implemented by the sale store; the ledger never advances it.
type SoldReader interface {
	SoldQuantity(ctx context.Context, productID id.ID) (int, error)
}

// Locker serializes check-then-append sequences per product.
// Implementations guarantee fn runs exclusively with respect to other
// operations on the same product; operations on different products proceed
// in parallel. The postgres locker also wraps fn in a transaction.
type Locker interface {
	WithProductLock(ctx context.Context, productID id.ID, fn func(ctx context.Context) error) error
}

// Archiver persists a snapshot of an entry before an administrator deletes
// it, keeping reversals reconstructible.
type Archiver interface {
	ArchiveEntry(ctx context.Context, entry *Entry, deletedBy string) error
}
