package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"retailcore/internal/core/apperror"
	"retailcore/internal/core/id"
	"retailcore/internal/domain/sale"
)

const (
	salesTable     = "sales"
	saleLinesTable = "sale_lines"
)

// Compile-time interface check.
var _ sale.Repository = (*SaleRepo)(nil)

// SaleRepo implements sale.Repository on PostgreSQL.
type SaleRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txManager *TxManager) *SaleRepo {
	return &SaleRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// AppendSale persists a transaction with all its lines atomically.
func (r *SaleRepo) AppendSale(ctx context.Context, tx *sale.Transaction) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Insert(salesTable).
			Columns("id", "commit_key", "subtotal", "discount_amount", "total",
				"payment_method", "installments", "customer_id", "actor_id", "created_at").
			Values(tx.ID, nullIfEmpty(tx.CommitKey), tx.Subtotal, tx.DiscountAmount, tx.Total,
				tx.PaymentMethod, tx.Installments, tx.CustomerID, tx.ActorID, tx.CreatedAt)

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		inserter := NewBatchInserter(r.txManager)
		columns := []string{"sale_id", "product_id", "quantity", "unit_price", "subtotal"}
		rows := make([][]any, 0, len(tx.Lines))
		for _, l := range tx.Lines {
			rows = append(rows, []any{tx.ID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal})
		}
		if _, err := inserter.CopyFromSlice(ctx, saleLinesTable, columns, rows); err != nil {
			return fmt.Errorf("copy sale lines: %w", err)
		}
		return nil
	})
}

// GetSale retrieves a transaction with lines by id.
func (r *SaleRepo) GetSale(ctx context.Context, saleID id.ID) (*sale.Transaction, error) {
	q := r.builder.Select("id", "COALESCE(commit_key, '') AS commit_key", "subtotal", "discount_amount",
		"total", "payment_method", "installments", "customer_id", "actor_id", "created_at").
		From(salesTable).
		Where(squirrel.Eq{"id": saleID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var tx sale.Transaction
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &tx, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	lines, err := r.loadLines(ctx, saleID)
	if err != nil {
		return nil, err
	}
	tx.Lines = lines
	return &tx, nil
}

// FindByCommitKey returns the transaction committed under a client commit key.
func (r *SaleRepo) FindByCommitKey(ctx context.Context, commitKey string) (*sale.Transaction, error) {
	q := r.builder.Select("id").
		From(salesTable).
		Where(squirrel.Eq{"commit_key": commitKey}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var saleID id.ID
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&saleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("sale", commitKey)
		}
		return nil, fmt.Errorf("find by commit key: %w", err)
	}
	return r.GetSale(ctx, saleID)
}

// SoldQuantity sums committed line quantities for a product.
func (r *SaleRepo) SoldQuantity(ctx context.Context, productID id.ID) (int, error) {
	const sql = `
		SELECT COALESCE(SUM(quantity), 0)
		FROM sale_lines
		WHERE product_id = $1
	`

	var sold int
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, productID).Scan(&sold); err != nil {
		return 0, fmt.Errorf("sum sold quantity: %w", err)
	}
	return sold, nil
}

func (r *SaleRepo) loadLines(ctx context.Context, saleID id.ID) ([]sale.Line, error) {
	q := r.builder.Select("product_id", "quantity", "unit_price", "subtotal").
		From(saleLinesTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("product_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []sale.Line
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select sale lines: %w", err)
	}
	return lines, nil
}

// nullIfEmpty maps an empty commit key to NULL so the unique index only
// applies to real keys.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
