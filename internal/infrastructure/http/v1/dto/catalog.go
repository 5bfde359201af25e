package dto

import (
	"retailcore/internal/core/types"
	"retailcore/internal/domain/catalog"
	"retailcore/internal/domain/pricing"
)

// ProductResponse is the terminal view of a product: cost stays private to
// the back office, the derived sale price is what operators see.
type ProductResponse struct {
	ID                   string      `json:"id"`
	Barcode              string      `json:"barcode,omitempty"`
	Name                 string      `json:"name"`
	SalePrice            types.Money `json:"salePrice"`
	CategoryDiscountRate types.Rate  `json:"categoryDiscountRate"`
	ReceivedQuantity     int         `json:"receivedQuantity"`
}

// FromProduct maps a catalog product, deriving the sale price.
func FromProduct(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:                   p.ID.String(),
		Barcode:              p.Barcode,
		Name:                 p.Name,
		SalePrice:            pricing.ComputeSalePrice(p.UnitCost, p.CategoryDiscountRate),
		CategoryDiscountRate: p.CategoryDiscountRate,
		ReceivedQuantity:     p.ReceivedQuantity,
	}
}

// FromProducts maps a product list.
func FromProducts(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, FromProduct(&products[i]))
	}
	return out
}
