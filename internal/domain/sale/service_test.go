package sale_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcore/internal/core/apperror"
	appctx "retailcore/internal/core/context"
	"retailcore/internal/core/id"
	"retailcore/internal/core/types"
	"retailcore/internal/domain/catalog"
	"retailcore/internal/domain/ledger"
	"retailcore/internal/domain/pricing"
	"retailcore/internal/domain/sale"
	"retailcore/internal/infrastructure/storage/memory"
)

type saleFixture struct {
	store   *memory.Store
	ledger  *ledger.Service
	service *sale.Service
}

func newSaleFixture(t *testing.T) *saleFixture {
	t.Helper()

	store := memory.NewStore()
	ledgerService := ledger.NewService(store, store, store, store, nil)
	return &saleFixture{
		store:   store,
		ledger:  ledgerService,
		service: sale.NewService(store, ledgerService, store, store),
	}
}

// seedProduct registers a product and confers the given quantity so it is
// sellable.
func (f *saleFixture) seedProduct(t *testing.T, unitCost, rate string, conferred int) catalog.Product {
	t.Helper()

	product := catalog.Product{
		ID:                   id.New(),
		Barcode:              "789" + id.New().String()[:9],
		Name:                 "product " + id.New().String()[:8],
		UnitCost:             types.MustMoney(unitCost),
		CategoryDiscountRate: types.MustMoney(rate),
		ReceivedQuantity:     conferred,
	}
	f.store.AddProduct(product)

	if conferred > 0 {
		_, err := f.ledger.RegisterConference(sellerCtx(), ledger.ConferenceInput{
			ProductID: product.ID,
			Quantity:  conferred,
		})
		require.NoError(t, err)
	}
	return product
}

func sellerCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:   id.New().String(),
		Username: "operator1",
		Roles:    []string{appctx.RoleOperator},
	})
}

func TestAddLine_MergesExistingLine(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0.30", 10)

	cart := f.service.OpenCart(ctx)

	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)
	cart, err = f.service.AddLine(ctx, cart.ID, product.ID, 3)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
	assert.True(t, types.MustMoney("7.00").Equal(cart.Lines[0].UnitPrice))
	assert.True(t, types.MustMoney("35.00").Equal(cart.Lines[0].Subtotal))
}

func TestAddLine_BoundedByHeldQuantity(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0", 5)

	cart := f.service.OpenCart(ctx)

	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 4)
	require.NoError(t, err)

	// 4 held + 2 requested exceeds 5 available.
	_, err = f.service.AddLine(ctx, cart.ID, product.ID, 2)
	require.Error(t, err)
	assert.True(t, apperror.IsOversold(err))

	got, err := f.service.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Lines[0].Quantity)
}

func TestUpdateLineQuantity(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "8.00", "0", 10)

	cart := f.service.OpenCart(ctx)
	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)

	cart, err = f.service.UpdateLineQuantity(ctx, cart.ID, product.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, cart.Lines[0].Quantity)

	// Zero removes the line.
	cart, err = f.service.UpdateLineQuantity(ctx, cart.ID, product.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func TestCommit_HappyPath(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0.30", 10)

	cart := f.service.OpenCart(ctx)
	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 3)
	require.NoError(t, err)

	tx, err := f.service.Commit(ctx, sale.CommitInput{
		CartID:        cart.ID,
		PaymentMethod: sale.PaymentCash,
	})
	require.NoError(t, err)

	assert.True(t, types.MustMoney("21.00").Equal(tx.Total))
	assert.Equal(t, 1, tx.Installments)
	require.Len(t, tx.Lines, 1)

	// The cart session is gone and stock reflects the sale.
	_, err = f.service.GetCart(ctx, cart.ID)
	assert.True(t, apperror.IsNotFound(err))

	available, err := f.ledger.AvailableToSell(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, available)
}

func TestCommit_AppliesStackedDiscounts(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "100.00", "0", 10)
	customerID := id.New()

	cart := f.service.OpenCart(ctx)
	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 1)
	require.NoError(t, err)
	_, err = f.service.SetManualDiscount(ctx, cart.ID, &pricing.ManualDiscount{
		Type:  pricing.DiscountPercent,
		Value: types.MustMoney("10"),
	})
	require.NoError(t, err)
	_, err = f.service.AttachCustomer(ctx, cart.ID, &customerID)
	require.NoError(t, err)

	tx, err := f.service.Commit(ctx, sale.CommitInput{
		CartID:               cart.ID,
		PaymentMethod:        sale.PaymentPix,
		CustomerDiscountRate: types.MustMoney("0.10"),
	})
	require.NoError(t, err)

	assert.True(t, types.MustMoney("100.00").Equal(tx.Subtotal))
	assert.True(t, types.MustMoney("20.00").Equal(tx.DiscountAmount))
	assert.True(t, types.MustMoney("80.00").Equal(tx.Total))
}

func TestCommit_CustomerRateIgnoredWithoutCustomer(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "50.00", "0", 5)

	cart := f.service.OpenCart(ctx)
	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 1)
	require.NoError(t, err)

	tx, err := f.service.Commit(ctx, sale.CommitInput{
		CartID:               cart.ID,
		PaymentMethod:        sale.PaymentDebitCard,
		CustomerDiscountRate: types.MustMoney("0.10"),
	})
	require.NoError(t, err)

	assert.True(t, tx.DiscountAmount.IsZero())
	assert.True(t, types.MustMoney("50.00").Equal(tx.Total))
}

func TestCommit_OversoldWhenStockChanged(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0", 3)

	cart := f.service.OpenCart(ctx)
	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 3)
	require.NoError(t, err)

	// Another terminal sells 2 units before this cart commits.
	other := f.service.OpenCart(ctx)
	_, err = f.service.AddLine(ctx, other.ID, product.ID, 2)
	require.NoError(t, err)
	_, err = f.service.Commit(ctx, sale.CommitInput{
		CartID:        other.ID,
		PaymentMethod: sale.PaymentCash,
	})
	require.NoError(t, err)

	_, err = f.service.Commit(ctx, sale.CommitInput{
		CartID:        cart.ID,
		PaymentMethod: sale.PaymentCash,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsOversold(err))

	// Nothing was written and the cart stays a draft for correction.
	available, err := f.ledger.AvailableToSell(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, available)

	got, err := f.service.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.CartDraft, got.Status)
}

// slowLocker adds latency inside the product locks, standing in for the
// round trips a real database commit makes while holding them.
type slowLocker struct {
	inner sale.Locker
	delay time.Duration
}

func (l *slowLocker) WithProductLocks(ctx context.Context, productIDs []id.ID, fn func(ctx context.Context) error) error {
	return l.inner.WithProductLocks(ctx, productIDs, func(ctx context.Context) error {
		time.Sleep(l.delay)
		return fn(ctx)
	})
}

func TestCommit_SameCartDoubleSubmit(t *testing.T) {
	store := memory.NewStore()
	ledgerService := ledger.NewService(store, store, store, store, nil)
	service := sale.NewService(store, ledgerService, store, &slowLocker{inner: store, delay: 30 * time.Millisecond})

	f := &saleFixture{store: store, ledger: ledgerService, service: service}
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0", 5)

	cart := service.OpenCart(ctx)
	_, err := service.AddLine(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)

	// An operator double-submitting the same cart, no commit key.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Commit(ctx, sale.CommitInput{
				CartID:        cart.ID,
				PaymentMethod: sale.PaymentCash,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
		}
	}
	assert.Equal(t, 1, succeeded)

	// The cart settled exactly once: 2 units sold, not 4.
	available, err := f.ledger.AvailableToSell(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestCommit_MutationsBlockedWhileSettling(t *testing.T) {
	store := memory.NewStore()
	ledgerService := ledger.NewService(store, store, store, store, nil)
	service := sale.NewService(store, ledgerService, store, &slowLocker{inner: store, delay: 30 * time.Millisecond})

	f := &saleFixture{store: store, ledger: ledgerService, service: service}
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0", 5)

	cart := service.OpenCart(ctx)
	_, err := service.AddLine(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := service.Commit(ctx, sale.CommitInput{
			CartID:        cart.ID,
			PaymentMethod: sale.PaymentCash,
		})
		done <- err
	}()

	// Give the commit time to enter the settling window, then try to
	// mutate the cart underneath it.
	time.Sleep(10 * time.Millisecond)
	_, err = service.AddLine(ctx, cart.ID, product.ID, 1)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))

	require.NoError(t, <-done)
}

func TestCommit_LastUnitRace(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0", 1)

	const contenders = 6
	carts := make([]*sale.Cart, contenders)
	for i := range carts {
		carts[i] = f.service.OpenCart(ctx)
		_, err := f.service.AddLine(ctx, carts[i].ID, product.ID, 1)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(cartID id.ID) {
			defer wg.Done()
			_, err := f.service.Commit(ctx, sale.CommitInput{
				CartID:        cartID,
				PaymentMethod: sale.PaymentCash,
			})
			results <- err
		}(carts[i].ID)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperror.IsOversold(err))
		}
	}
	assert.Equal(t, 1, succeeded)

	available, err := f.ledger.AvailableToSell(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
}

func TestCommit_ReplaysCommitKey(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0", 5)

	cart := f.service.OpenCart(ctx)
	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)

	in := sale.CommitInput{
		CartID:        cart.ID,
		CommitKey:     "terminal-1-000042",
		PaymentMethod: sale.PaymentCash,
	}
	first, err := f.service.Commit(ctx, in)
	require.NoError(t, err)

	// The retry must return the original receipt without selling again,
	// even though the cart session is already gone.
	second, err := f.service.Commit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	available, err := f.ledger.AvailableToSell(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

func TestCommit_InstallmentsRequireCreditCard(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "30.00", "0", 5)

	cart := f.service.OpenCart(ctx)
	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = f.service.Commit(ctx, sale.CommitInput{
		CartID:        cart.ID,
		PaymentMethod: sale.PaymentCash,
		Installments:  3,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	tx, err := f.service.Commit(ctx, sale.CommitInput{
		CartID:        cart.ID,
		PaymentMethod: sale.PaymentCreditCard,
		Installments:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, tx.Installments)
}

func TestCommit_RejectsEmptyCart(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()

	cart := f.service.OpenCart(ctx)
	_, err := f.service.Commit(ctx, sale.CommitInput{
		CartID:        cart.ID,
		PaymentMethod: sale.PaymentCash,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestCommit_RejectsUnknownPaymentMethod(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()

	cart := f.service.OpenCart(ctx)
	_, err := f.service.Commit(ctx, sale.CommitInput{
		CartID:        cart.ID,
		PaymentMethod: sale.PaymentMethod("barter"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestAbandon(t *testing.T) {
	f := newSaleFixture(t)
	ctx := sellerCtx()
	product := f.seedProduct(t, "10.00", "0", 5)

	cart := f.service.OpenCart(ctx)
	_, err := f.service.AddLine(ctx, cart.ID, product.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.service.Abandon(ctx, cart.ID))

	_, err = f.service.GetCart(ctx, cart.ID)
	assert.True(t, apperror.IsNotFound(err))

	// Draft lines never held stock.
	available, err := f.ledger.AvailableToSell(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, available)
}
