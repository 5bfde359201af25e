// Package catalog provides the read-only product port.
// The product catalog itself (CRUD, categories, labels) is owned by an
// external service; the core only reads the fields it consumes.
package catalog

import (
	"retailcore/internal/core/id"
	"retailcore/internal/core/types"
)

// Product is the catalog projection consumed by the core.
// ReceivedQuantity only grows via external restock actions, never here.
type Product struct {
	ID                   id.ID       `db:"id" json:"id"`
	Barcode              string      `db:"barcode" json:"barcode"`
	Name                 string      `db:"name" json:"name"`
	UnitCost             types.Money `db:"unit_cost" json:"unitCost"`
	CategoryDiscountRate types.Rate  `db:"category_discount_rate" json:"categoryDiscountRate"`
	ReceivedQuantity     int         `db:"received_quantity" json:"receivedQuantity"`
}
