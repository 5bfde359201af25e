package sale

import (
	"context"

	"retailcore/internal/core/id"
)

// Repository defines durable storage for committed sale transactions.
type Repository interface {
	// AppendSale persists a transaction with all its lines atomically.
	AppendSale(ctx context.Context, tx *Transaction) error

	// GetSale retrieves a transaction with lines by id.
	GetSale(ctx context.Context, saleID id.ID) (*Transaction, error)

	// FindByCommitKey returns the transaction committed under a client
	// commit key, or NOT_FOUND. Used for idempotent retries.
	FindByCommitKey(ctx context.Context, commitKey string) (*Transaction, error)

	// SoldQuantity sums committed line quantities for a product.
	SoldQuantity(ctx context.Context, productID id.ID) (int, error)
}

// Locker serializes commits against concurrent operations on the same
// products. Implementations acquire locks in sorted product-id order so
// multi-product commits cannot deadlock each other.
type Locker interface {
	WithProductLocks(ctx context.Context, productIDs []id.ID, fn func(ctx context.Context) error) error
}

// AggregateReader exposes live per-product availability. Implemented by the
// ledger service; commit re-validates every line against it, never against
// values cached at AddLine time.
type AggregateReader interface {
	AvailableToSell(ctx context.Context, productID id.ID) (int, error)
}
