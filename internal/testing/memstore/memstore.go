// Package memstore is an in-memory posting.Store for engine tests. Each
// transaction runs under one mutex against a copy of the state, which replaces
// the committed state only when the callback succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/posting"
	"github.com/corezen/corezen/internal/rental"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
)

type seqKey struct {
	tenantID int64
	scope    string
	day      string
}

type idemKey struct {
	tenantID int64
	key      string
	module   string
}

type state struct {
	nextID       int64
	tenants      map[int64]tenancy.Tenant
	accounts     map[int64]ledger.Account
	contacts     map[int64]ledger.Contact
	transactions map[int64]ledger.Transaction
	products     map[int64]stock.Product
	items        map[int64]stock.Item
	contracts    map[int64]rental.Contract
	sequences    map[seqKey]int64
	idempotency  map[idemKey]struct{}
	audit        []shared.AuditLog
}

func newState() *state {
	return &state{
		tenants:      map[int64]tenancy.Tenant{},
		accounts:     map[int64]ledger.Account{},
		contacts:     map[int64]ledger.Contact{},
		transactions: map[int64]ledger.Transaction{},
		products:     map[int64]stock.Product{},
		items:        map[int64]stock.Item{},
		contracts:    map[int64]rental.Contract{},
		sequences:    map[seqKey]int64{},
		idempotency:  map[idemKey]struct{}{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		nextID:       s.nextID,
		tenants:      cloneMap(s.tenants),
		accounts:     cloneMap(s.accounts),
		contacts:     cloneMap(s.contacts),
		transactions: cloneMap(s.transactions),
		products:     cloneMap(s.products),
		items:        cloneMap(s.items),
		contracts:    cloneMap(s.contracts),
		sequences:    cloneMap(s.sequences),
		idempotency:  cloneMap(s.idempotency),
		audit:        append([]shared.AuditLog(nil), s.audit...),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store implements posting.Store in memory.
type Store struct {
	mu     sync.Mutex
	state  *state
	failOn map[string]error
	now    func() time.Time
}

var _ posting.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), failOn: map[string]error{}, now: time.Now}
}

// FailOn makes every later call of the named Tx method fail with err, for
// example FailOn("InsertTransaction", errBoom). A nil err clears the hook.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

// WithTx implements posting.Store.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, posting.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(ctx, &memTx{store: s, st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// AddTenant seeds an active tenant.
func (s *Store) AddTenant(code string, accountLimit int) tenancy.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := tenancy.Tenant{ID: s.state.id(), Code: code, Name: code, IsActive: true, AccountLimit: accountLimit, CreatedAt: s.now()}
	s.state.tenants[t.ID] = t
	return t
}

// SetTenantActive toggles a tenant.
func (s *Store) SetTenantActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.state.tenants[id]
	t.IsActive = active
	s.state.tenants[id] = t
}

// AddAccount seeds a capital account.
func (s *Store) AddAccount(tenantID int64, name string, initial decimal.Decimal) ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := ledger.Account{ID: s.state.id(), TenantID: tenantID, Name: name, InitialBalance: initial, CurrentBalance: initial, CreatedAt: s.now()}
	s.state.accounts[a.ID] = a
	return a
}

// AddContact seeds a contact with a zero balance.
func (s *Store) AddContact(tenantID int64, name string) ledger.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := ledger.Contact{ID: s.state.id(), TenantID: tenantID, Name: name, Balance: decimal.Zero, CreatedAt: s.now()}
	s.state.contacts[c.ID] = c
	return c
}

// Account returns a committed account.
func (s *Store) Account(id int64) ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.accounts[id]
}

// Contact returns a committed contact.
func (s *Store) Contact(id int64) ledger.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.contacts[id]
}

// Product returns a committed product.
func (s *Store) Product(id int64) stock.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id]
}

// Item returns a committed item.
func (s *Store) Item(id int64) stock.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.items[id]
}

// Contract returns a committed contract.
func (s *Store) Contract(id int64) rental.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.contracts[id]
}

// Items returns a product's committed items ordered by id.
func (s *Store) Items(productID int64) []stock.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stock.Item
	for _, it := range s.state.items {
		if it.ProductID == productID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Transactions returns a tenant's committed transactions ordered by id.
func (s *Store) Transactions(tenantID int64) []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range s.state.transactions {
		if t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AuditLogs returns committed audit records.
func (s *Store) AuditLogs() []shared.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shared.AuditLog(nil), s.state.audit...)
}

// StockValue sums real_cost of a tenant's IN_STOCK items.
func (s *Store) StockValue(tenantID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, it := range s.state.items {
		if it.TenantID == tenantID && it.Status == stock.ItemInStock {
			total = total.Add(it.RealCost)
		}
	}
	return total
}
