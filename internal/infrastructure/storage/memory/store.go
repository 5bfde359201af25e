// Package memory provides an in-process store for standalone terminals and
// tests. It implements the same repository and locker contracts as the
// PostgreSQL adapters; aggregates are derived by summing on every read, the
// same way the SQL implementations do.
package memory

import (
	"context"
	"sort"
	"sync"

	"retailcore/internal/core/apperror"
	"retailcore/internal/core/id"
	"retailcore/internal/domain/auth"
	"retailcore/internal/domain/catalog"
	"retailcore/internal/domain/ledger"
	"retailcore/internal/domain/sale"
)

// Compile-time interface checks.
var (
	_ catalog.Reader      = (*Store)(nil)
	_ ledger.Repository   = (*Store)(nil)
	_ ledger.SoldReader   = (*Store)(nil)
	_ ledger.Locker       = (*Store)(nil)
	_ sale.Repository     = (*Store)(nil)
	_ sale.Locker         = (*Store)(nil)
	_ auth.UserRepository = (*Store)(nil)
)

// Store holds all state in process memory.
type Store struct {
	mu sync.RWMutex

	products  map[id.ID]catalog.Product
	byBarcode map[string]id.ID

	entries      map[id.ID]ledger.Entry
	entriesOrder map[id.ID][]id.ID // productID -> entry ids, append order

	sales      map[id.ID]sale.Transaction
	salesByKey map[string]id.ID

	users       map[id.ID]auth.User
	usersByName map[string]id.ID

	tokens       map[id.ID]auth.RefreshToken
	tokensByHash map[string]id.ID

	lockMu sync.Mutex
	locks  map[id.ID]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products:     make(map[id.ID]catalog.Product),
		byBarcode:    make(map[string]id.ID),
		entries:      make(map[id.ID]ledger.Entry),
		entriesOrder: make(map[id.ID][]id.ID),
		sales:        make(map[id.ID]sale.Transaction),
		salesByKey:   make(map[string]id.ID),
		users:        make(map[id.ID]auth.User),
		usersByName:  make(map[string]id.ID),
		tokens:       make(map[id.ID]auth.RefreshToken),
		tokensByHash: make(map[string]id.ID),
		locks:        make(map[id.ID]*sync.Mutex),
	}
}

// --- catalog.Reader ---

// AddProduct seeds a product. Replaces an existing product with the same id.
func (s *Store) AddProduct(product catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
	if product.Barcode != "" {
		s.byBarcode[product.Barcode] = product.ID
	}
}

// GetProduct returns a product by id.
func (s *Store) GetProduct(_ context.Context, productID id.ID) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return &product, nil
}

// GetProductByBarcode resolves a barcode to a product.
func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	productID, ok := s.byBarcode[barcode]
	if !ok {
		return nil, apperror.NewNotFound("product", barcode)
	}
	product := s.products[productID]
	return &product, nil
}

// ListProducts returns all products sorted by name.
func (s *Store) ListProducts(_ context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

// --- ledger.Repository ---

// AppendEntry stores one immutable entry.
func (s *Store) AppendEntry(_ context.Context, entry *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.ID] = *entry
	s.entriesOrder[entry.ProductID] = append(s.entriesOrder[entry.ProductID], entry.ID)
	return nil
}

// GetEntry retrieves one entry by id.
func (s *Store) GetEntry(_ context.Context, entryID id.ID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return nil, apperror.NewNotFound("ledger entry", entryID.String())
	}
	return &entry, nil
}

// DeleteEntry removes one entry.
func (s *Store) DeleteEntry(_ context.Context, entryID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return apperror.NewNotFound("ledger entry", entryID.String())
	}
	delete(s.entries, entryID)

	order := s.entriesOrder[entry.ProductID]
	for i, eid := range order {
		if eid == entryID {
			s.entriesOrder[entry.ProductID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

// ListEntries returns all entries for a product in append order.
func (s *Store) ListEntries(_ context.Context, productID id.ID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := s.entriesOrder[productID]
	entries := make([]ledger.Entry, 0, len(order))
	for _, eid := range order {
		entries = append(entries, s.entries[eid])
	}
	return entries, nil
}

// SumEntries returns conferred and lost totals for a product.
func (s *Store) SumEntries(_ context.Context, productID id.ID) (conferred, lost int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, eid := range s.entriesOrder[productID] {
		entry := s.entries[eid]
		switch entry.Kind {
		case ledger.EntryConference:
			conferred += entry.Quantity
		case ledger.EntryLoss:
			lost += entry.Quantity
		}
	}
	return conferred, lost, nil
}

// --- sale.Repository ---

// AppendSale persists a transaction with all its lines.
func (s *Store) AppendSale(_ context.Context, tx *sale.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *tx
	stored.Lines = append([]sale.Line(nil), tx.Lines...)
	s.sales[tx.ID] = stored
	if tx.CommitKey != "" {
		s.salesByKey[tx.CommitKey] = tx.ID
	}
	return nil
}

// GetSale retrieves a transaction by id.
func (s *Store) GetSale(_ context.Context, saleID id.ID) (*sale.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID.String())
	}
	tx.Lines = append([]sale.Line(nil), tx.Lines...)
	return &tx, nil
}

// FindByCommitKey returns the transaction committed under a commit key.
func (s *Store) FindByCommitKey(ctx context.Context, commitKey string) (*sale.Transaction, error) {
	s.mu.RLock()
	saleID, ok := s.salesByKey[commitKey]
	s.mu.RUnlock()

	if !ok {
		return nil, apperror.NewNotFound("sale", commitKey)
	}
	return s.GetSale(ctx, saleID)
}

// SoldQuantity sums committed line quantities for a product.
func (s *Store) SoldQuantity(_ context.Context, productID id.ID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := 0
	for _, tx := range s.sales {
		for _, l := range tx.Lines {
			if l.ProductID == productID {
				sold += l.Quantity
			}
		}
	}
	return sold, nil
}

// --- lockers ---

// WithProductLock runs fn holding the mutex for one product.
func (s *Store) WithProductLock(ctx context.Context, productID id.ID, fn func(ctx context.Context) error) error {
	return s.WithProductLocks(ctx, []id.ID{productID}, fn)
}

// WithProductLocks runs fn holding the mutexes for every product, acquired
// in sorted id order so concurrent multi-product commits cannot deadlock.
func (s *Store) WithProductLocks(ctx context.Context, productIDs []id.ID, fn func(ctx context.Context) error) error {
	unique := make(map[id.ID]struct{}, len(productIDs))
	ids := make([]id.ID, 0, len(productIDs))
	for _, pid := range productIDs {
		if _, ok := unique[pid]; ok {
			continue
		}
		unique[pid] = struct{}{}
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	locks := make([]*sync.Mutex, 0, len(ids))
	for _, pid := range ids {
		locks = append(locks, s.productLock(pid))
	}
	for _, l := range locks {
		l.Lock()
	}
	defer func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}()

	return fn(ctx)
}

func (s *Store) productLock(productID id.ID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[productID] = l
	}
	return l
}

// --- auth.UserRepository ---

// Create creates a new user.
func (s *Store) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByName[user.Username]; ok {
		return apperror.NewConflict("username already registered").WithDetail("username", user.Username)
	}
	s.users[user.ID] = *user
	s.usersByName[user.Username] = user.ID
	return nil
}

// GetByID retrieves user by ID.
func (s *Store) GetByID(_ context.Context, userID id.ID) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	return &user, nil
}

// GetByUsername retrieves user by username.
func (s *Store) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.usersByName[username]
	if !ok {
		return nil, apperror.NewNotFound("user", username)
	}
	user := s.users[userID]
	return &user, nil
}

// Update updates user data.
func (s *Store) Update(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return apperror.NewNotFound("user", user.ID.String())
	}
	s.users[user.ID] = *user
	return nil
}

// Exists checks if a username is taken.
func (s *Store) Exists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.usersByName[username]
	return ok, nil
}
