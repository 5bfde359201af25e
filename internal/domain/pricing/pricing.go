// Package pricing provides pure price and discount computations.
// No storage or transport dependencies; every function is deterministic.
package pricing

import (
	"github.com/shopspring/decimal"

	"retailcore/internal/core/apperror"
	"retailcore/internal/core/types"
)

// DiscountType distinguishes manual discount semantics.
type DiscountType string

const (
	// DiscountPercent interprets Value as a percentage of the subtotal (0-100).
	DiscountPercent DiscountType = "percent"
	// DiscountAmount interprets Value as an absolute amount (0-subtotal).
	DiscountAmount DiscountType = "amount"
)

// ManualDiscount is an operator-entered discount on the whole cart.
type ManualDiscount struct {
	Type  DiscountType `json:"type"`
	Value types.Money  `json:"value"`
}

// Line carries the amounts needed for totals.
type Line struct {
	Quantity  int
	UnitPrice types.Money
}

// CartTotals is the result of ComputeCartTotals.
type CartTotals struct {
	Subtotal       types.Money `json:"subtotal"`
	DiscountAmount types.Money `json:"discountAmount"`
	Total          types.Money `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// ComputeSalePrice derives the sale price from cost and the category's fixed
// discount tier: round2(unitCost × (1 − rate)), half-up.
func ComputeSalePrice(unitCost types.Money, categoryDiscountRate types.Rate) types.Money {
	price := unitCost.Mul(decimal.NewFromInt(1).Sub(categoryDiscountRate))
	return types.Round2(price)
}

// ComputeCartTotals sums line amounts and applies stacked discounts.
// Manual and customer discounts stack additively, not multiplicatively; the
// total never goes below zero.
func ComputeCartTotals(lines []Line, manual *ManualDiscount, customerDiscountRate types.Rate) CartTotals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	discount := decimal.Zero
	if manual != nil {
		switch manual.Type {
		case DiscountPercent:
			pct := clamp(manual.Value, decimal.Zero, hundred)
			discount = discount.Add(subtotal.Mul(pct).Div(hundred))
		case DiscountAmount:
			discount = discount.Add(clamp(manual.Value, decimal.Zero, subtotal))
		}
	}
	if customerDiscountRate.IsPositive() {
		discount = discount.Add(subtotal.Mul(customerDiscountRate))
	}

	discount = types.Round2(discount)
	return CartTotals{
		Subtotal:       types.Round2(subtotal),
		DiscountAmount: discount,
		Total:          types.MaxZero(types.Round2(subtotal.Sub(discount))),
	}
}

// ComputeChange returns the change due: max(0, received − total).
func ComputeChange(received, total types.Money) types.Money {
	return types.MaxZero(received.Sub(total))
}

// ComputeInstallments splits total into n amounts of round2(total/n) each,
// with the last installment absorbing the rounding remainder so the sum
// equals the total exactly.
func ComputeInstallments(total types.Money, n int) ([]types.Money, error) {
	if n < 1 {
		return nil, apperror.NewValidation("installment count must be at least 1").
			WithDetail("installments", n)
	}

	each := types.Round2(total.Div(decimal.NewFromInt(int64(n))))
	amounts := make([]types.Money, n)
	sum := decimal.Zero
	for i := 0; i < n-1; i++ {
		amounts[i] = each
		sum = sum.Add(each)
	}
	amounts[n-1] = total.Sub(sum)
	return amounts, nil
}

func clamp(v, lo, hi types.Money) types.Money {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
