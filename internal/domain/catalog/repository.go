package catalog

import (
	"context"

	"retailcore/internal/core/id"
)

// Reader defines read access to the external product catalog.
type Reader interface {
	// GetProduct returns a product by id.
	GetProduct(ctx context.Context, productID id.ID) (*Product, error)

	// GetProductByBarcode resolves a committed barcode to a product.
	GetProductByBarcode(ctx context.Context, barcode string) (*Product, error)

	// ListProducts returns all products (audit screens).
	ListProducts(ctx context.Context) ([]Product, error)
}
