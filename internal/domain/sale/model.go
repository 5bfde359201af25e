// Package sale provides the cart lifecycle and the atomic sale commit
// against the ledger's available-to-sell pool.
package sale

import (
	"time"

	"retailcore/internal/core/id"
	"retailcore/internal/core/types"
)

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentPix        PaymentMethod = "pix"
)

// Valid reports whether the payment method is one of the accepted values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentDebitCard, PaymentCreditCard, PaymentPix:
		return true
	}
	return false
}

// Line is one product position inside a transaction.
type Line struct {
	ProductID id.ID       `db:"product_id" json:"productId"`
	Quantity  int         `db:"quantity" json:"quantity"`
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	Subtotal  types.Money `db:"subtotal" json:"subtotal"`
}

// Transaction is an immutable committed sale. It is created exactly once,
// atomically, and never edited afterwards.
type Transaction struct {
	ID             id.ID         `db:"id" json:"id"`
	CommitKey      string        `db:"commit_key" json:"commitKey"`
	Lines          []Line        `db:"-" json:"lines"`
	Subtotal       types.Money   `db:"subtotal" json:"subtotal"`
	DiscountAmount types.Money   `db:"discount_amount" json:"discountAmount"`
	Total          types.Money   `db:"total" json:"total"`
	PaymentMethod  PaymentMethod `db:"payment_method" json:"paymentMethod"`
	Installments   int           `db:"installments" json:"installments"`
	CustomerID     *id.ID        `db:"customer_id" json:"customerId,omitempty"`
	ActorID        string        `db:"actor_id" json:"actorId"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
}
