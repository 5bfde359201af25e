package sale

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"retailcore/internal/core/apperror"
	appctx "retailcore/internal/core/context"
	"retailcore/internal/core/id"
	"retailcore/internal/core/types"
	"retailcore/internal/domain/catalog"
	"retailcore/internal/domain/pricing"
	"retailcore/pkg/logger"
)

// Service is the sale settlement engine. Draft carts are held in memory;
// only Commit touches durable storage, and it is all-or-nothing.
type Service struct {
	catalog    catalog.Reader
	aggregates AggregateReader
	repo       Repository
	locker     Locker

	mu    sync.Mutex
	carts map[id.ID]*Cart
}

// NewService creates a new settlement engine.
func NewService(catalogReader catalog.Reader, aggregates AggregateReader, repo Repository, locker Locker) *Service {
	return &Service{
		catalog:    catalogReader,
		aggregates: aggregates,
		repo:       repo,
		locker:     locker,
		carts:      make(map[id.ID]*Cart),
	}
}

// OpenCart starts a new draft checkout session.
func (s *Service) OpenCart(ctx context.Context) *Cart {
	cart := &Cart{
		ID:       id.New(),
		Status:   CartDraft,
		OpenedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.carts[cart.ID] = cart
	s.mu.Unlock()

	logger.Debug(ctx, "cart opened", "cart_id", cart.ID)
	return cart
}

// GetCart returns a draft cart by id.
func (s *Service) GetCart(_ context.Context, cartID id.ID) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftLocked(cartID)
}

// draftLocked fetches a cart and verifies it is still a draft. Caller holds s.mu.
func (s *Service) draftLocked(cartID id.ID) (*Cart, error) {
	cart, ok := s.carts[cartID]
	if !ok {
		return nil, apperror.NewNotFound("cart", cartID)
	}
	if cart.Status != CartDraft {
		return nil, apperror.NewConflict("cart is no longer a draft").
			WithDetail("cart_id", cartID).
			WithDetail("status", cart.Status)
	}
	return cart, nil
}

// AddLine adds quantity of a product to the cart, merging with an existing
// line. The requested quantity plus what the cart already holds must not
// exceed live available-to-sell.
func (s *Service) AddLine(ctx context.Context, cartID, productID id.ID, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", quantity)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	unitPrice := pricing.ComputeSalePrice(product.UnitCost, product.CategoryDiscountRate)

	available, err := s.aggregates.AvailableToSell(ctx, productID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.draftLocked(cartID)
	if err != nil {
		return nil, err
	}

	held := cart.HeldQuantity(productID)
	if quantity > available-held {
		return nil, apperror.NewOversold(productID.String(), held+quantity, available)
	}

	cart.upsertLine(productID, held+quantity, unitPrice)
	return cart, nil
}

// UpdateLineQuantity sets the absolute quantity for a product line.
// A quantity ≤ 0 removes the line.
func (s *Service) UpdateLineQuantity(ctx context.Context, cartID, productID id.ID, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return s.RemoveLine(ctx, cartID, productID)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	unitPrice := pricing.ComputeSalePrice(product.UnitCost, product.CategoryDiscountRate)

	available, err := s.aggregates.AvailableToSell(ctx, productID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.draftLocked(cartID)
	if err != nil {
		return nil, err
	}

	if quantity > available {
		return nil, apperror.NewOversold(productID.String(), quantity, available)
	}

	cart.upsertLine(productID, quantity, unitPrice)
	return cart, nil
}

// RemoveLine drops a product line from the cart.
func (s *Service) RemoveLine(_ context.Context, cartID, productID id.ID) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.draftLocked(cartID)
	if err != nil {
		return nil, err
	}
	cart.upsertLine(productID, 0, types.Zero())
	return cart, nil
}

// SetManualDiscount attaches an operator discount to the cart.
func (s *Service) SetManualDiscount(_ context.Context, cartID id.ID, discount *pricing.ManualDiscount) (*Cart, error) {
	if discount != nil && discount.Type != pricing.DiscountPercent && discount.Type != pricing.DiscountAmount {
		return nil, apperror.NewValidation("unknown discount type").
			WithDetail("type", discount.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.draftLocked(cartID)
	if err != nil {
		return nil, err
	}
	cart.ManualDiscount = discount
	return cart, nil
}

// AttachCustomer links a customer to the cart, enabling the customer
// discount at commit time. A nil id detaches.
func (s *Service) AttachCustomer(_ context.Context, cartID id.ID, customerID *id.ID) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.draftLocked(cartID)
	if err != nil {
		return nil, err
	}
	cart.CustomerID = customerID
	return cart, nil
}

// Abandon discards a draft cart. Terminal, no side effects.
func (s *Service) Abandon(ctx context.Context, cartID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.draftLocked(cartID)
	if err != nil {
		return err
	}
	cart.Status = CartAbandoned
	delete(s.carts, cartID)

	logger.Debug(ctx, "cart abandoned", "cart_id", cartID)
	return nil
}

// CommitInput carries the payment parameters for a commit.
type CommitInput struct {
	CartID        id.ID
	CommitKey     string
	PaymentMethod PaymentMethod
	Installments  int
	// CustomerDiscountRate is the flat rate applied when a customer is
	// attached (supplied by the external customer registry).
	CustomerDiscountRate types.Rate
}

// Commit finalizes a draft cart into an immutable transaction. Every line is
// re-validated against live available-to-sell under the per-product locks;
// if any line exceeds availability the whole commit aborts with OVERSOLD and
// nothing is written. A replayed commit key returns the original receipt.
func (s *Service) Commit(ctx context.Context, in CommitInput) (*Transaction, error) {
	if !in.PaymentMethod.Valid() {
		return nil, apperror.NewValidation("payment method is required").
			WithDetail("payment_method", in.PaymentMethod)
	}
	if in.Installments < 1 {
		in.Installments = 1
	}
	if in.PaymentMethod != PaymentCreditCard && in.Installments > 1 {
		return nil, apperror.NewValidation("installments require credit card payment").
			WithDetail("payment_method", in.PaymentMethod).
			WithDetail("installments", in.Installments)
	}

	// A retried commit arrives after the original already settled and
	// deleted its cart session, so the commit key is checked before the
	// cart lookup.
	if in.CommitKey != "" {
		existing, err := s.repo.FindByCommitKey(ctx, in.CommitKey)
		if err == nil {
			return existing, nil
		}
		if !apperror.IsNotFound(err) {
			return nil, err
		}
	}

	s.mu.Lock()
	cart, err := s.draftLocked(in.CartID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if len(cart.Lines) == 0 {
		s.mu.Unlock()
		return nil, apperror.NewValidation("cart has no lines")
	}
	// Leave draft before any storage work so a concurrent commit of the
	// same cart is rejected instead of settling it twice.
	cart.Status = CartSettling
	// Work on a snapshot so the session map is not held across storage calls.
	lines := make([]CartLine, len(cart.Lines))
	copy(lines, cart.Lines)
	manual := cart.ManualDiscount
	customerID := cart.CustomerID
	s.mu.Unlock()

	customerRate := types.Zero()
	if customerID != nil {
		customerRate = in.CustomerDiscountRate
	}
	totals := pricing.ComputeCartTotals(cartPricingLines(lines), manual, customerRate)

	productIDs := make([]id.ID, 0, len(lines))
	for _, l := range lines {
		productIDs = append(productIDs, l.ProductID)
	}
	sortIDs(productIDs)

	var committed *Transaction
	err = s.locker.WithProductLocks(ctx, productIDs, func(ctx context.Context) error {
		// Idempotent retry: a commit key that already settled returns the
		// original transaction without touching stock.
		if in.CommitKey != "" {
			existing, err := s.repo.FindByCommitKey(ctx, in.CommitKey)
			if err == nil {
				committed = existing
				return nil
			}
			if !apperror.IsNotFound(err) {
				return err
			}
		}

		for _, l := range lines {
			available, err := s.aggregates.AvailableToSell(ctx, l.ProductID)
			if err != nil {
				return err
			}
			if l.Quantity > available {
				return apperror.NewOversold(l.ProductID.String(), l.Quantity, available)
			}
		}

		tx := &Transaction{
			ID:             id.New(),
			CommitKey:      in.CommitKey,
			Lines:          transactionLines(lines),
			Subtotal:       totals.Subtotal,
			DiscountAmount: totals.DiscountAmount,
			Total:          totals.Total,
			PaymentMethod:  in.PaymentMethod,
			Installments:   in.Installments,
			CustomerID:     customerID,
			ActorID:        appctx.GetUserID(ctx),
			CreatedAt:      time.Now().UTC(),
		}

		if err := s.repo.AppendSale(ctx, tx); err != nil {
			return apperror.NewPersistence(fmt.Errorf("append sale: %w", err))
		}
		committed = tx
		return nil
	})
	if err != nil {
		// Restore the draft so the operator can adjust quantities and retry.
		s.mu.Lock()
		if c, ok := s.carts[in.CartID]; ok && c.Status == CartSettling {
			c.Status = CartDraft
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	if c, ok := s.carts[in.CartID]; ok {
		c.Status = CartCommitted
		delete(s.carts, in.CartID)
	}
	s.mu.Unlock()

	logger.Info(ctx, "sale committed",
		"sale_id", committed.ID,
		"cart_id", in.CartID,
		"lines", len(committed.Lines),
		"total", committed.Total,
	)
	return committed, nil
}

// GetTransaction returns a committed transaction (receipt lookup).
func (s *Service) GetTransaction(ctx context.Context, saleID id.ID) (*Transaction, error) {
	return s.repo.GetSale(ctx, saleID)
}

func cartPricingLines(lines []CartLine) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, pricing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

func transactionLines(lines []CartLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
	}
	return out
}

// sortIDs orders product ids so multi-product commits always acquire locks
// in the same order.
func sortIDs(ids []id.ID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
