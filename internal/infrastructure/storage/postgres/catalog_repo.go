package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailcore/internal/core/apperror"
	"retailcore/internal/core/id"
	"retailcore/internal/domain/catalog"
)

const productsTable = "products"

// Compile-time interface check.
var _ catalog.Reader = (*CatalogRepo)(nil)

// CatalogRepo implements catalog.Reader on PostgreSQL. The product table is
// maintained by the back-office system; this side only reads it.
type CatalogRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewCatalogRepo creates a new catalog repository.
func NewCatalogRepo(txManager *TxManager) *CatalogRepo {
	return &CatalogRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *CatalogRepo) selectProducts() squirrel.SelectBuilder {
	return r.builder.Select("id", "barcode", "name", "unit_cost",
		"category_discount_rate", "received_quantity").
		From(productsTable)
}

// GetProduct returns a product by id.
func (r *CatalogRepo) GetProduct(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	q := r.selectProducts().Where(squirrel.Eq{"id": productID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var product catalog.Product
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &product, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &product, nil
}

// GetProductByBarcode resolves a committed barcode to a product.
func (r *CatalogRepo) GetProductByBarcode(ctx context.Context, barcode string) (*catalog.Product, error) {
	q := r.selectProducts().Where(squirrel.Eq{"barcode": barcode}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var product catalog.Product
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &product, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", barcode)
		}
		return nil, fmt.Errorf("get product by barcode: %w", err)
	}
	return &product, nil
}

// ListProducts returns all products.
func (r *CatalogRepo) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	q := r.selectProducts().OrderBy("name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var products []catalog.Product
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &products, sql, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return products, nil
}
