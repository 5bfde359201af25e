package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcore/internal/core/types"
)

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.True(t, types.MustMoney(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeSalePrice(t *testing.T) {
	tests := []struct {
		name     string
		unitCost string
		rate     string
		want     string
	}{
		{"thirty percent tier", "10.00", "0.30", "7.00"},
		{"rounds half up", "9.99", "0.35", "6.49"},
		{"zero rate keeps cost", "12.50", "0", "12.50"},
		{"full discount", "8.00", "1", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSalePrice(types.MustMoney(tt.unitCost), types.MustMoney(tt.rate))
			assertMoney(t, tt.want, got)
		})
	}
}

func TestComputeCartTotals_StackedDiscounts(t *testing.T) {
	lines := []Line{
		{Quantity: 2, UnitPrice: types.MustMoney("25.00")},
		{Quantity: 1, UnitPrice: types.MustMoney("50.00")},
	}
	manual := &ManualDiscount{Type: DiscountPercent, Value: types.MustMoney("10")}

	totals := ComputeCartTotals(lines, manual, types.MustMoney("0.10"))

	// Discounts stack additively: 10% + 10% of 100.00 is 20.00, not 19.00.
	assertMoney(t, "100.00", totals.Subtotal)
	assertMoney(t, "20.00", totals.DiscountAmount)
	assertMoney(t, "80.00", totals.Total)
}

func TestComputeCartTotals_AmountDiscount(t *testing.T) {
	lines := []Line{{Quantity: 3, UnitPrice: types.MustMoney("15.00")}}
	manual := &ManualDiscount{Type: DiscountAmount, Value: types.MustMoney("5.00")}

	totals := ComputeCartTotals(lines, manual, types.Zero())

	assertMoney(t, "45.00", totals.Subtotal)
	assertMoney(t, "5.00", totals.DiscountAmount)
	assertMoney(t, "40.00", totals.Total)
}

func TestComputeCartTotals_ClampsManualDiscount(t *testing.T) {
	lines := []Line{{Quantity: 1, UnitPrice: types.MustMoney("30.00")}}

	t.Run("percent above hundred", func(t *testing.T) {
		manual := &ManualDiscount{Type: DiscountPercent, Value: types.MustMoney("150")}
		totals := ComputeCartTotals(lines, manual, types.Zero())
		assertMoney(t, "30.00", totals.DiscountAmount)
		assertMoney(t, "0.00", totals.Total)
	})

	t.Run("amount above subtotal", func(t *testing.T) {
		manual := &ManualDiscount{Type: DiscountAmount, Value: types.MustMoney("99.00")}
		totals := ComputeCartTotals(lines, manual, types.Zero())
		assertMoney(t, "30.00", totals.DiscountAmount)
		assertMoney(t, "0.00", totals.Total)
	})

	t.Run("negative value", func(t *testing.T) {
		manual := &ManualDiscount{Type: DiscountAmount, Value: types.MustMoney("-10.00")}
		totals := ComputeCartTotals(lines, manual, types.Zero())
		assertMoney(t, "0.00", totals.DiscountAmount)
		assertMoney(t, "30.00", totals.Total)
	})
}

func TestComputeCartTotals_TotalNeverNegative(t *testing.T) {
	lines := []Line{{Quantity: 1, UnitPrice: types.MustMoney("10.00")}}
	manual := &ManualDiscount{Type: DiscountPercent, Value: types.MustMoney("100")}

	totals := ComputeCartTotals(lines, manual, types.MustMoney("0.50"))

	assertMoney(t, "0.00", totals.Total)
}

func TestComputeCartTotals_EmptyCart(t *testing.T) {
	totals := ComputeCartTotals(nil, nil, types.Zero())

	assertMoney(t, "0.00", totals.Subtotal)
	assertMoney(t, "0.00", totals.DiscountAmount)
	assertMoney(t, "0.00", totals.Total)
}

func TestComputeInstallments(t *testing.T) {
	t.Run("last installment absorbs remainder", func(t *testing.T) {
		amounts, err := ComputeInstallments(types.MustMoney("100.00"), 3)
		require.NoError(t, err)
		require.Len(t, amounts, 3)

		assertMoney(t, "33.33", amounts[0])
		assertMoney(t, "33.33", amounts[1])
		assertMoney(t, "33.34", amounts[2])

		sum := types.Zero()
		for _, a := range amounts {
			sum = sum.Add(a)
		}
		assertMoney(t, "100.00", sum)
	})

	t.Run("even split", func(t *testing.T) {
		amounts, err := ComputeInstallments(types.MustMoney("90.00"), 2)
		require.NoError(t, err)
		assertMoney(t, "45.00", amounts[0])
		assertMoney(t, "45.00", amounts[1])
	})

	t.Run("single installment", func(t *testing.T) {
		amounts, err := ComputeInstallments(types.MustMoney("59.90"), 1)
		require.NoError(t, err)
		require.Len(t, amounts, 1)
		assertMoney(t, "59.90", amounts[0])
	})

	t.Run("rejects zero count", func(t *testing.T) {
		_, err := ComputeInstallments(types.MustMoney("10.00"), 0)
		require.Error(t, err)
	})
}

func TestComputeChange(t *testing.T) {
	assertMoney(t, "7.50", ComputeChange(types.MustMoney("50.00"), types.MustMoney("42.50")))
	assertMoney(t, "0.00", ComputeChange(types.MustMoney("40.00"), types.MustMoney("42.50")))
	assertMoney(t, "0.00", ComputeChange(types.MustMoney("42.50"), types.MustMoney("42.50")))
}
