package sale

import (
	"time"

	"github.com/shopspring/decimal"

	"retailcore/internal/core/id"
	"retailcore/internal/core/types"
	"retailcore/internal/domain/pricing"
)

// CartStatus is the cart lifecycle state. Committed and Abandoned are
// terminal; no partially-committed state is ever observable.
type CartStatus string

const (
	CartDraft CartStatus = "draft"
	// CartSettling marks a cart whose commit is in flight. It blocks every
	// other mutation and a second commit; the cart returns to draft when
	// the commit fails.
	CartSettling  CartStatus = "settling"
	CartCommitted CartStatus = "committed"
	CartAbandoned CartStatus = "abandoned"
)

// CartLine is a soft, in-memory reservation inside one draft cart.
// Nothing is persisted until commit.
type CartLine struct {
	ProductID id.ID       `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice types.Money `json:"unitPrice"`
	Subtotal  types.Money `json:"subtotal"`
}

// Cart is an ephemeral checkout session. It lives in the engine's session
// registry for the duration of one checkout and is discarded on commit or
// abandon.
type Cart struct {
	ID             id.ID                   `json:"id"`
	Status         CartStatus              `json:"status"`
	Lines          []CartLine              `json:"lines"`
	ManualDiscount *pricing.ManualDiscount `json:"manualDiscount,omitempty"`
	CustomerID     *id.ID                  `json:"customerId,omitempty"`
	OpenedAt       time.Time               `json:"openedAt"`
}

// HeldQuantity returns the quantity already reserved for a product in this
// draft cart.
func (c *Cart) HeldQuantity(productID id.ID) int {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

// upsertLine merges quantity into an existing line or appends a new one,
// recomputing the line subtotal. A resulting quantity ≤ 0 removes the line.
func (c *Cart) upsertLine(productID id.ID, quantity int, unitPrice types.Money) {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			if quantity <= 0 {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				return
			}
			c.Lines[i].Quantity = quantity
			c.Lines[i].UnitPrice = unitPrice
			c.Lines[i].Subtotal = lineSubtotal(quantity, unitPrice)
			return
		}
	}
	if quantity <= 0 {
		return
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  lineSubtotal(quantity, unitPrice),
	})
}

func lineSubtotal(quantity int, unitPrice types.Money) types.Money {
	return types.Round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}
