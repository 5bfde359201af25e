package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retailcore/internal/core/apperror"
	appctx "retailcore/internal/core/context"
	"retailcore/internal/core/id"
	"retailcore/internal/domain/catalog"
	"retailcore/pkg/logger"
)

// Service provides business operations for the inventory ledger.
type Service struct {
	catalog catalog.Reader
	repo    Repository
	sold    SoldReader
	locker  Locker
	archive Archiver
}

// NewService creates a new ledger service. archive may be nil, in which case
// deleted entries are not archived.
func NewService(catalogReader catalog.Reader, repo Repository, sold SoldReader, locker Locker, archive Archiver) *Service {
	return &Service{
		catalog: catalogReader,
		repo:    repo,
		sold:    sold,
		locker:  locker,
		archive: archive,
	}
}

// ConferenceInput carries a conference registration request.
type ConferenceInput struct {
	ProductID id.ID
	Quantity  int
	Note      string
}

// LossInput carries a loss registration request.
type LossInput struct {
	ProductID id.ID
	Quantity  int
	Reason    string
}

// RegisterConference appends a conference entry and returns refreshed
// aggregates. Fails with CAPACITY_EXCEEDED when quantity is above
// available-to-confer, reporting the exact available amount.
func (s *Service) RegisterConference(ctx context.Context, in ConferenceInput) (*AggregateSnapshot, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", in.Quantity)
	}

	entry := &Entry{
		ID:        id.New(),
		ProductID: in.ProductID,
		Kind:      EntryConference,
		Quantity:  in.Quantity,
		Note:      strings.TrimSpace(in.Note),
		ActorID:   appctx.GetUserID(ctx),
		CreatedAt: time.Now().UTC(),
	}

	snapshot, err := s.appendChecked(ctx, entry)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "conference registered",
		"entry_id", entry.ID,
		"product_id", entry.ProductID,
		"quantity", entry.Quantity,
	)
	return snapshot, nil
}

// RegisterLoss appends a loss entry. A non-empty reason is mandatory; the
// bound check is the same as for conferences (losses draw only from
// unconferred stock, never from sold units).
func (s *Service) RegisterLoss(ctx context.Context, in LossInput) (*AggregateSnapshot, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", in.Quantity)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperror.NewValidation("loss reason is required")
	}

	entry := &Entry{
		ID:        id.New(),
		ProductID: in.ProductID,
		Kind:      EntryLoss,
		Quantity:  in.Quantity,
		Reason:    reason,
		ActorID:   appctx.GetUserID(ctx),
		CreatedAt: time.Now().UTC(),
	}

	snapshot, err := s.appendChecked(ctx, entry)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "loss registered",
		"entry_id", entry.ID,
		"product_id", entry.ProductID,
		"quantity", entry.Quantity,
		"reason", reason,
	)
	return snapshot, nil
}

// appendChecked runs the check-then-append sequence under the per-product
// lock so concurrent registrations can never both pass the bound check.
func (s *Service) appendChecked(ctx context.Context, entry *Entry) (*AggregateSnapshot, error) {
	var snapshot *AggregateSnapshot

	err := s.locker.WithProductLock(ctx, entry.ProductID, func(ctx context.Context) error {
		product, err := s.catalog.GetProduct(ctx, entry.ProductID)
		if err != nil {
			return err
		}

		conferred, lost, err := s.repo.SumEntries(ctx, entry.ProductID)
		if err != nil {
			return fmt.Errorf("sum entries: %w", err)
		}

		available := product.ReceivedQuantity - conferred - lost
		if entry.Quantity > available {
			return apperror.NewCapacityExceeded(entry.ProductID.String(), entry.Quantity, available)
		}

		if err := s.repo.AppendEntry(ctx, entry); err != nil {
			return apperror.NewPersistence(fmt.Errorf("append entry: %w", err))
		}

		snapshot, err = s.snapshot(ctx, product)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// snapshot derives aggregates by re-reading sums from the store, so the
// result always equals a fresh derivation from the entry log.
func (s *Service) snapshot(ctx context.Context, product *catalog.Product) (*AggregateSnapshot, error) {
	conferred, lost, err := s.repo.SumEntries(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("sum entries: %w", err)
	}
	sold, err := s.sold.SoldQuantity(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("sold quantity: %w", err)
	}

	return &AggregateSnapshot{
		ProductID:         product.ID,
		Received:          product.ReceivedQuantity,
		Conferred:         conferred,
		Lost:              lost,
		Sold:              sold,
		AvailableToConfer: product.ReceivedQuantity - conferred - lost,
		AvailableToSell:   conferred - sold,
	}, nil
}

// DeleteEntry removes one entry (administrator-only reversal). Aggregates are
// recomputed by re-summing the remaining entries, never patched
// incrementally. A conference entry is only reversible while its units are
// still unsold. The deleted entry is archived first when an Archiver is
// configured.
func (s *Service) DeleteEntry(ctx context.Context, entryID id.ID) (*AggregateSnapshot, error) {
	if !appctx.IsAdmin(ctx) {
		return nil, apperror.NewForbidden("entry deletion requires administrator role")
	}

	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	var snapshot *AggregateSnapshot
	err = s.locker.WithProductLock(ctx, entry.ProductID, func(ctx context.Context) error {
		product, err := s.catalog.GetProduct(ctx, entry.ProductID)
		if err != nil {
			return err
		}

		// Reversing a conference entry must not pull conferred below sold;
		// units already sold cannot be un-conferred.
		if entry.Kind == EntryConference {
			conferred, _, err := s.repo.SumEntries(ctx, entry.ProductID)
			if err != nil {
				return fmt.Errorf("sum entries: %w", err)
			}
			sold, err := s.sold.SoldQuantity(ctx, entry.ProductID)
			if err != nil {
				return fmt.Errorf("sold quantity: %w", err)
			}
			if conferred-entry.Quantity < sold {
				return apperror.NewConflict("conference entry covers units already sold").
					WithDetail("entry_quantity", entry.Quantity).
					WithDetail("reversible", conferred-sold)
			}
		}

		if s.archive != nil {
			if err := s.archive.ArchiveEntry(ctx, entry, appctx.GetUserID(ctx)); err != nil {
				return apperror.NewPersistence(fmt.Errorf("archive entry: %w", err))
			}
		}

		if err := s.repo.DeleteEntry(ctx, entryID); err != nil {
			// A concurrent delete surfaces as NOT_FOUND; keep the code.
			if apperror.IsAppError(err) {
				return err
			}
			return apperror.NewPersistence(fmt.Errorf("delete entry: %w", err))
		}

		snapshot, err = s.snapshot(ctx, product)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "ledger entry deleted",
		"entry_id", entryID,
		"product_id", entry.ProductID,
		"kind", entry.Kind,
		"quantity", entry.Quantity,
	)
	return snapshot, nil
}

// QueryAggregates derives the per-product aggregate view fresh from the
// entry log and committed sale lines.
func (s *Service) QueryAggregates(ctx context.Context, productID id.ID) (*AggregateSnapshot, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, product)
}

// AvailableToSell derives conferred − sold for one product. The settlement
// engine calls this under its commit lock so the value is live, not cached.
func (s *Service) AvailableToSell(ctx context.Context, productID id.ID) (int, error) {
	conferred, _, err := s.repo.SumEntries(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}
	sold, err := s.sold.SoldQuantity(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("sold quantity: %w", err)
	}
	return conferred - sold, nil
}

// ListEntries returns the full entry log for a product, oldest first.
func (s *Service) ListEntries(ctx context.Context, productID id.ID) ([]Entry, error) {
	return s.repo.ListEntries(ctx, productID)
}
