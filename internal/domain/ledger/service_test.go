package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcore/internal/core/apperror"
	appctx "retailcore/internal/core/context"
	"retailcore/internal/core/id"
	"retailcore/internal/core/types"
	"retailcore/internal/domain/catalog"
	"retailcore/internal/domain/ledger"
	"retailcore/internal/domain/sale"
	"retailcore/internal/infrastructure/storage/memory"
)

// recordingArchiver captures archived entries for assertions.
type recordingArchiver struct {
	archived []ledger.Entry
	fail     bool
}

func (a *recordingArchiver) ArchiveEntry(_ context.Context, entry *ledger.Entry, _ string) error {
	if a.fail {
		return errors.New("archive unavailable")
	}
	a.archived = append(a.archived, *entry)
	return nil
}

type ledgerFixture struct {
	store   *memory.Store
	archive *recordingArchiver
	service *ledger.Service
	product catalog.Product
}

func newLedgerFixture(t *testing.T, received int) *ledgerFixture {
	t.Helper()

	store := memory.NewStore()
	product := catalog.Product{
		ID:               id.New(),
		Barcode:          "789100000001",
		Name:             "espresso beans 500g",
		UnitCost:         types.MustMoney("10.00"),
		ReceivedQuantity: received,
	}
	store.AddProduct(product)

	archive := &recordingArchiver{}
	return &ledgerFixture{
		store:   store,
		archive: archive,
		service: ledger.NewService(store, store, store, store, archive),
		product: product,
	}
}

func operatorCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:   id.New().String(),
		Username: "operator1",
		Roles:    []string{appctx.RoleOperator},
	})
}

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:   id.New().String(),
		Username: "admin1",
		Roles:    []string{appctx.RoleAdmin},
		IsAdmin:  true,
	})
}

func TestRegisterConference(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	snapshot, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  6,
		Note:      "morning count",
	})
	require.NoError(t, err)

	assert.Equal(t, 10, snapshot.Received)
	assert.Equal(t, 6, snapshot.Conferred)
	assert.Equal(t, 4, snapshot.AvailableToConfer)
	assert.Equal(t, 6, snapshot.AvailableToSell)
}

func TestRegisterConference_CapacityBound(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  7,
	})
	require.NoError(t, err)

	// 3 remain to confer, 4 must fail and leave the log untouched.
	_, err = f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  4,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCapacityExceeded(err))

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 3, appErr.Details["available"])

	entries, err := f.service.ListEntries(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRegisterConference_RejectsNonPositiveQuantity(t *testing.T) {
	f := newLedgerFixture(t, 10)

	for _, qty := range []int{0, -3} {
		_, err := f.service.RegisterConference(operatorCtx(), ledger.ConferenceInput{
			ProductID: f.product.ID,
			Quantity:  qty,
		})
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	}
}

func TestRegisterLoss(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	snapshot, err := f.service.RegisterLoss(ctx, ledger.LossInput{
		ProductID: f.product.ID,
		Quantity:  2,
		Reason:    "dropped pallet",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, snapshot.Lost)
	assert.Equal(t, 8, snapshot.AvailableToConfer)
	assert.Equal(t, 0, snapshot.AvailableToSell)
}

func TestRegisterLoss_ReasonRequired(t *testing.T) {
	f := newLedgerFixture(t, 10)

	_, err := f.service.RegisterLoss(operatorCtx(), ledger.LossInput{
		ProductID: f.product.ID,
		Quantity:  1,
		Reason:    "   ",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestRegisterLoss_SharesCapacityWithConferences(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  8,
	})
	require.NoError(t, err)

	_, err = f.service.RegisterLoss(ctx, ledger.LossInput{
		ProductID: f.product.ID,
		Quantity:  3,
		Reason:    "water damage",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCapacityExceeded(err))
}

func TestRegisterConference_UnknownProduct(t *testing.T) {
	f := newLedgerFixture(t, 10)

	_, err := f.service.RegisterConference(operatorCtx(), ledger.ConferenceInput{
		ProductID: id.New(),
		Quantity:  1,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteEntry_RecomputesAggregates(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  5,
	})
	require.NoError(t, err)
	_, err = f.service.RegisterLoss(ctx, ledger.LossInput{
		ProductID: f.product.ID,
		Quantity:  2,
		Reason:    "expired",
	})
	require.NoError(t, err)

	entries, err := f.service.ListEntries(ctx, f.product.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	snapshot, err := f.service.DeleteEntry(adminCtx(), entries[1].ID)
	require.NoError(t, err)

	assert.Equal(t, 5, snapshot.Conferred)
	assert.Equal(t, 0, snapshot.Lost)
	assert.Equal(t, 5, snapshot.AvailableToConfer)

	require.Len(t, f.archive.archived, 1)
	assert.Equal(t, entries[1].ID, f.archive.archived[0].ID)
}

func TestDeleteEntry_RequiresAdmin(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  5,
	})
	require.NoError(t, err)

	entries, err := f.service.ListEntries(ctx, f.product.ID)
	require.NoError(t, err)

	_, err = f.service.DeleteEntry(ctx, entries[0].ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
}

func TestDeleteEntry_ArchiveFailureAborts(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  5,
	})
	require.NoError(t, err)

	entries, err := f.service.ListEntries(ctx, f.product.ID)
	require.NoError(t, err)

	f.archive.fail = true
	_, err = f.service.DeleteEntry(adminCtx(), entries[0].ID)
	require.Error(t, err)

	// The entry must survive a failed archive.
	remaining, err := f.service.ListEntries(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

// sellUnits records a committed sale so sold > 0 without involving the
// settlement engine.
func (f *ledgerFixture) sellUnits(t *testing.T, quantity int) {
	t.Helper()

	unitPrice := types.MustMoney("10.00")
	err := f.store.AppendSale(context.Background(), &sale.Transaction{
		ID:            id.New(),
		Lines:         []sale.Line{{ProductID: f.product.ID, Quantity: quantity, UnitPrice: unitPrice, Subtotal: unitPrice}},
		PaymentMethod: sale.PaymentCash,
	})
	require.NoError(t, err)
}

func TestDeleteEntry_ConferenceWithSoldUnits(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  5,
	})
	require.NoError(t, err)
	f.sellUnits(t, 5)

	entries, err := f.service.ListEntries(ctx, f.product.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// All 5 conferred units are sold: the entry is no longer reversible.
	_, err = f.service.DeleteEntry(adminCtx(), entries[0].ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 0, appErr.Details["reversible"])

	// Nothing changed, sold never exceeds conferred.
	snapshot, err := f.service.QueryAggregates(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.Conferred)
	assert.Equal(t, 5, snapshot.Sold)
	assert.Equal(t, 0, snapshot.AvailableToSell)
	assert.Empty(t, f.archive.archived)

	// A later conference that is still unsold stays reversible.
	_, err = f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  3,
	})
	require.NoError(t, err)

	entries, err = f.service.ListEntries(ctx, f.product.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	snapshot, err = f.service.DeleteEntry(adminCtx(), entries[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.Conferred)
	assert.Equal(t, 0, snapshot.AvailableToSell)
}

// stubDeleteRepo overrides DeleteEntry to simulate a concurrent delete that
// already removed the row.
type stubDeleteRepo struct {
	ledger.Repository
	deleteErr error
}

func (r *stubDeleteRepo) DeleteEntry(ctx context.Context, entryID id.ID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.Repository.DeleteEntry(ctx, entryID)
}

func TestDeleteEntry_ConcurrentDeleteKeepsNotFound(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
		ProductID: f.product.ID,
		Quantity:  5,
	})
	require.NoError(t, err)

	entries, err := f.service.ListEntries(ctx, f.product.ID)
	require.NoError(t, err)

	repo := &stubDeleteRepo{
		Repository: f.store,
		deleteErr:  apperror.NewNotFound("ledger entry", entries[0].ID.String()),
	}
	service := ledger.NewService(f.store, repo, f.store, f.store, nil)

	_, err = service.DeleteEntry(adminCtx(), entries[0].ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.False(t, apperror.IsCode(err, apperror.CodePersistence))
}

func TestQueryAggregates_FreshDerivation(t *testing.T) {
	f := newLedgerFixture(t, 20)
	ctx := operatorCtx()

	_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{ProductID: f.product.ID, Quantity: 9})
	require.NoError(t, err)
	_, err = f.service.RegisterConference(ctx, ledger.ConferenceInput{ProductID: f.product.ID, Quantity: 3})
	require.NoError(t, err)
	_, err = f.service.RegisterLoss(ctx, ledger.LossInput{ProductID: f.product.ID, Quantity: 1, Reason: "breakage"})
	require.NoError(t, err)

	snapshot, err := f.service.QueryAggregates(ctx, f.product.ID)
	require.NoError(t, err)

	assert.Equal(t, 20, snapshot.Received)
	assert.Equal(t, 12, snapshot.Conferred)
	assert.Equal(t, 1, snapshot.Lost)
	assert.Equal(t, 0, snapshot.Sold)
	assert.Equal(t, 7, snapshot.AvailableToConfer)
	assert.Equal(t, 12, snapshot.AvailableToSell)
}

func TestRegisterConference_ConcurrentBoundHolds(t *testing.T) {
	f := newLedgerFixture(t, 10)
	ctx := operatorCtx()

	const workers = 8
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := f.service.RegisterConference(ctx, ledger.ConferenceInput{
				ProductID: f.product.ID,
				Quantity:  3,
			})
			results <- err
		}()
	}

	succeeded := 0
	for i := 0; i < workers; i++ {
		if err := <-results; err == nil {
			succeeded++
		} else {
			assert.True(t, apperror.IsCapacityExceeded(err))
		}
	}

	// 10 received, 3 per registration: exactly 3 can pass the bound.
	assert.Equal(t, 3, succeeded)

	snapshot, err := f.service.QueryAggregates(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, snapshot.Conferred)
}
