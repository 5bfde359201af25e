package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"retailcore/internal/core/id"
	"retailcore/internal/domain/ledger"
	"retailcore/internal/domain/sale"
)

// Compile-time interface checks.
var (
	_ ledger.Locker = (*ProductLocker)(nil)
	_ sale.Locker   = (*ProductLocker)(nil)
)

// ProductLocker serializes check-then-append sequences per product using
// transaction-scoped advisory locks. fn runs inside a transaction; its ctx
// carries the transaction, so repositories called from fn join it and the
// lock is released on commit or rollback.
type ProductLocker struct {
	txManager *TxManager
}

// NewProductLocker creates a new product locker.
func NewProductLocker(txManager *TxManager) *ProductLocker {
	return &ProductLocker{txManager: txManager}
}

// WithProductLock runs fn holding the advisory lock for one product.
func (l *ProductLocker) WithProductLock(ctx context.Context, productID id.ID, fn func(ctx context.Context) error) error {
	return l.WithProductLocks(ctx, []id.ID{productID}, fn)
}

// WithProductLocks runs fn holding advisory locks for every product.
// Locks are acquired in sorted key order so two multi-product operations
// cannot deadlock each other.
func (l *ProductLocker) WithProductLocks(ctx context.Context, productIDs []id.ID, fn func(ctx context.Context) error) error {
	keys := lockKeys(productIDs)

	return l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := l.txManager.GetQuerier(ctx)
		for _, key := range keys {
			if _, err := querier.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
				return fmt.Errorf("acquire product lock: %w", err)
			}
		}
		return fn(ctx)
	})
}

// lockKeys maps product ids to deduplicated, sorted advisory lock keys.
func lockKeys(productIDs []id.ID) []int64 {
	seen := make(map[int64]struct{}, len(productIDs))
	keys := make([]int64, 0, len(productIDs))
	for _, productID := range productIDs {
		key := lockKey(productID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// lockKey hashes a product id into the 64-bit advisory lock keyspace.
func lockKey(productID id.ID) int64 {
	h := fnv.New64a()
	h.Write(productID[:])
	return int64(h.Sum64())
}
