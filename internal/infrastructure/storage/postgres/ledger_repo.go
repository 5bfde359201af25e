package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailcore/internal/core/apperror"
	"retailcore/internal/core/id"
	"retailcore/internal/domain/ledger"
)

const ledgerEntriesTable = "ledger_entries"

// Compile-time interface check.
var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository on PostgreSQL.
type LedgerRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// AppendEntry inserts one immutable entry.
func (r *LedgerRepo) AppendEntry(ctx context.Context, entry *ledger.Entry) error {
	q := r.builder.Insert(ledgerEntriesTable).
		Columns("id", "product_id", "kind", "quantity", "note", "reason", "actor_id", "created_at").
		Values(entry.ID, entry.ProductID, entry.Kind, entry.Quantity,
			entry.Note, entry.Reason, entry.ActorID, entry.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// GetEntry retrieves one entry by id.
func (r *LedgerRepo) GetEntry(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	q := r.builder.Select("id", "product_id", "kind", "quantity", "note", "reason", "actor_id", "created_at").
		From(ledgerEntriesTable).
		Where(squirrel.Eq{"id": entryID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry ledger.Entry
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger entry", entryID.String())
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &entry, nil
}

// DeleteEntry removes one entry.
func (r *LedgerRepo) DeleteEntry(ctx context.Context, entryID id.ID) error {
	q := r.builder.Delete(ledgerEntriesTable).Where(squirrel.Eq{"id": entryID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("ledger entry", entryID.String())
	}
	return nil
}

// ListEntries returns all entries for a product, oldest first.
func (r *LedgerRepo) ListEntries(ctx context.Context, productID id.ID) ([]ledger.Entry, error) {
	q := r.builder.Select("id", "product_id", "kind", "quantity", "note", "reason", "actor_id", "created_at").
		From(ledgerEntriesTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []ledger.Entry
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	return entries, nil
}

// SumEntries returns conferred and lost totals for a product in one query.
func (r *LedgerRepo) SumEntries(ctx context.Context, productID id.ID) (conferred, lost int, err error) {
	const sql = `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE kind = $2), 0) AS conferred,
			COALESCE(SUM(quantity) FILTER (WHERE kind = $3), 0) AS lost
		FROM ledger_entries
		WHERE product_id = $1
	`

	err = r.txManager.GetQuerier(ctx).
		QueryRow(ctx, sql, productID, ledger.EntryConference, ledger.EntryLoss).
		Scan(&conferred, &lost)
	if err != nil {
		return 0, 0, fmt.Errorf("sum entries: %w", err)
	}
	return conferred, lost, nil
}
