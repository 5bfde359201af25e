package dto

import (
	"time"

	"retailcore/internal/core/types"
	"retailcore/internal/domain/pricing"
	"retailcore/internal/domain/sale"
)

// AddLineRequest adds a product to a cart.
type AddLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// UpdateLineRequest sets the absolute quantity of a cart line.
type UpdateLineRequest struct {
	Quantity int `json:"quantity"`
}

// DiscountRequest attaches an operator discount to a cart.
// An empty type removes the discount.
type DiscountRequest struct {
	Type  string      `json:"type"`
	Value types.Money `json:"value"`
}

// AttachCustomerRequest links a customer to a cart. A null id detaches.
type AttachCustomerRequest struct {
	CustomerID *string `json:"customerId"`
}

// CommitRequest settles a cart.
type CommitRequest struct {
	CommitKey            string       `json:"commitKey"`
	PaymentMethod        string       `json:"paymentMethod" binding:"required"`
	Installments         int          `json:"installments"`
	AmountReceived       *types.Money `json:"amountReceived,omitempty"`
	CustomerDiscountRate types.Rate   `json:"customerDiscountRate"`
}

// CartLineResponse is one cart line.
type CartLineResponse struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice types.Money `json:"unitPrice"`
	Subtotal  types.Money `json:"subtotal"`
}

// CartResponse is a draft cart.
type CartResponse struct {
	ID             string                  `json:"id"`
	Status         string                  `json:"status"`
	Lines          []CartLineResponse      `json:"lines"`
	ManualDiscount *pricing.ManualDiscount `json:"manualDiscount,omitempty"`
	CustomerID     *string                 `json:"customerId,omitempty"`
	OpenedAt       time.Time               `json:"openedAt"`
}

// FromCart maps a cart.
func FromCart(c *sale.Cart) CartResponse {
	lines := make([]CartLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, CartLineResponse{
			ProductID: l.ProductID.String(),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
	}
	resp := CartResponse{
		ID:             c.ID.String(),
		Status:         string(c.Status),
		Lines:          lines,
		ManualDiscount: c.ManualDiscount,
		OpenedAt:       c.OpenedAt,
	}
	if c.CustomerID != nil {
		s := c.CustomerID.String()
		resp.CustomerID = &s
	}
	return resp
}

// TransactionResponse is the receipt for a committed sale.
type TransactionResponse struct {
	ID             string             `json:"id"`
	Lines          []CartLineResponse `json:"lines"`
	Subtotal       types.Money        `json:"subtotal"`
	DiscountAmount types.Money        `json:"discountAmount"`
	Total          types.Money        `json:"total"`
	PaymentMethod  string             `json:"paymentMethod"`
	Installments   []types.Money      `json:"installments,omitempty"`
	Change         *types.Money       `json:"change,omitempty"`
	CustomerID     *string            `json:"customerId,omitempty"`
	ActorID        string             `json:"actorId"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// FromTransaction maps a committed sale, deriving the installment plan and,
// for cash payments, the change due.
func FromTransaction(tx *sale.Transaction, amountReceived *types.Money) TransactionResponse {
	lines := make([]CartLineResponse, 0, len(tx.Lines))
	for _, l := range tx.Lines {
		lines = append(lines, CartLineResponse{
			ProductID: l.ProductID.String(),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
	}

	resp := TransactionResponse{
		ID:             tx.ID.String(),
		Lines:          lines,
		Subtotal:       tx.Subtotal,
		DiscountAmount: tx.DiscountAmount,
		Total:          tx.Total,
		PaymentMethod:  string(tx.PaymentMethod),
		ActorID:        tx.ActorID,
		CreatedAt:      tx.CreatedAt,
	}
	if tx.Installments > 1 {
		if plan, err := pricing.ComputeInstallments(tx.Total, tx.Installments); err == nil {
			resp.Installments = plan
		}
	}
	if tx.PaymentMethod == sale.PaymentCash && amountReceived != nil {
		change := pricing.ComputeChange(*amountReceived, tx.Total)
		resp.Change = &change
	}
	if tx.CustomerID != nil {
		s := tx.CustomerID.String()
		resp.CustomerID = &s
	}
	return resp
}
