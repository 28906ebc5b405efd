package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/posting"
	"github.com/corezen/corezen/internal/rental"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
)

// memTx works on a private copy of the state; the Store mutex is held for its
// whole lifetime, so row locks are implicit.
type memTx struct {
	store *Store
	st    *state
}

var _ posting.Tx = (*memTx)(nil)

func (t *memTx) fail(op string) error {
	return t.store.failOn[op]
}

func (t *memTx) Tenant(_ context.Context, id int64) (tenancy.Tenant, error) {
	if err := t.fail("Tenant"); err != nil {
		return tenancy.Tenant{}, err
	}
	tenant, ok := t.st.tenants[id]
	if !ok {
		return tenancy.Tenant{}, tenancy.ErrTenantNotFound
	}
	return tenant, nil
}

func (t *memTx) ClaimIdempotencyKey(_ context.Context, tenantID int64, key, module string) error {
	if err := t.fail("ClaimIdempotencyKey"); err != nil {
		return err
	}
	k := idemKey{tenantID: tenantID, key: key, module: module}
	if _, ok := t.st.idempotency[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	t.st.idempotency[k] = struct{}{}
	return nil
}

func (t *memTx) Audit(_ context.Context, log shared.AuditLog) error {
	if err := t.fail("Audit"); err != nil {
		return err
	}
	if err := log.Validate(); err != nil {
		return err
	}
	t.st.audit = append(t.st.audit, log)
	return nil
}

// ledger

func (t *memTx) GetAccount(_ context.Context, tenantID, id int64) (ledger.Account, error) {
	if err := t.fail("GetAccount"); err != nil {
		return ledger.Account{}, err
	}
	a, ok := t.st.accounts[id]
	if !ok || a.TenantID != tenantID {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (t *memTx) DefaultAccount(_ context.Context, tenantID int64) (ledger.Account, error) {
	if err := t.fail("DefaultAccount"); err != nil {
		return ledger.Account{}, err
	}
	var best *ledger.Account
	for _, a := range t.st.accounts {
		if a.TenantID != tenantID {
			continue
		}
		if best == nil || a.ID < best.ID {
			a := a
			best = &a
		}
	}
	if best == nil {
		return ledger.Account{}, ledger.ErrNoAccount
	}
	return *best, nil
}

func (t *memTx) GetContact(_ context.Context, tenantID, id int64) (ledger.Contact, error) {
	if err := t.fail("GetContact"); err != nil {
		return ledger.Contact{}, err
	}
	c, ok := t.st.contacts[id]
	if !ok || c.TenantID != tenantID {
		return ledger.Contact{}, ledger.ErrContactNotFound
	}
	return c, nil
}

func (t *memTx) AdjustAccountBalance(ctx context.Context, tenantID, id int64, delta decimal.Decimal) (ledger.Account, error) {
	if err := t.fail("AdjustAccountBalance"); err != nil {
		return ledger.Account{}, err
	}
	a, err := t.GetAccount(ctx, tenantID, id)
	if err != nil {
		return ledger.Account{}, err
	}
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	t.st.accounts[id] = a
	return a, nil
}

func (t *memTx) AdjustContactBalance(ctx context.Context, tenantID, id int64, delta decimal.Decimal) (ledger.Contact, error) {
	if err := t.fail("AdjustContactBalance"); err != nil {
		return ledger.Contact{}, err
	}
	c, err := t.GetContact(ctx, tenantID, id)
	if err != nil {
		return ledger.Contact{}, err
	}
	c.Balance = c.Balance.Add(delta)
	t.st.contacts[id] = c
	return c, nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn ledger.Transaction) (ledger.Transaction, error) {
	if err := t.fail("InsertTransaction"); err != nil {
		return ledger.Transaction{}, err
	}
	txn.ID = t.st.id()
	txn.CreatedAt = t.store.now()
	t.st.transactions[txn.ID] = txn
	return txn, nil
}

// stock

func (t *memTx) ClaimSequence(_ context.Context, tenantID int64, scope string, day time.Time) (int64, error) {
	if err := t.fail("ClaimSequence"); err != nil {
		return 0, err
	}
	k := seqKey{tenantID: tenantID, scope: scope, day: day.Format(time.DateOnly)}
	t.st.sequences[k]++
	return t.st.sequences[k], nil
}

func (t *memTx) ZencodeExists(_ context.Context, tenantID int64, zencode string) (bool, error) {
	if err := t.fail("ZencodeExists"); err != nil {
		return false, err
	}
	for _, p := range t.st.products {
		if p.TenantID == tenantID && p.Zencode == zencode {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertProduct(ctx context.Context, p stock.Product) (stock.Product, error) {
	if err := t.fail("InsertProduct"); err != nil {
		return stock.Product{}, err
	}
	if taken, _ := t.ZencodeExists(ctx, p.TenantID, p.Zencode); taken {
		return stock.Product{}, stock.ErrDuplicateZencode
	}
	p.ID = t.st.id()
	p.CreatedAt = t.store.now()
	t.st.products[p.ID] = p
	return p, nil
}

func (t *memTx) GetProduct(_ context.Context, tenantID, id int64) (stock.Product, error) {
	if err := t.fail("GetProduct"); err != nil {
		return stock.Product{}, err
	}
	p, ok := t.st.products[id]
	if !ok || p.TenantID != tenantID {
		return stock.Product{}, stock.ErrProductNotFound
	}
	return p, nil
}

func (t *memTx) GetProductForUpdate(ctx context.Context, tenantID, id int64) (stock.Product, error) {
	return t.GetProduct(ctx, tenantID, id)
}

func (t *memTx) UpdateProduct(_ context.Context, p stock.Product) error {
	if err := t.fail("UpdateProduct"); err != nil {
		return err
	}
	cur, ok := t.st.products[p.ID]
	if !ok || cur.TenantID != p.TenantID {
		return stock.ErrProductNotFound
	}
	cur.Status, cur.SoldPrice, cur.CostPrice = p.Status, p.SoldPrice, p.CostPrice
	t.st.products[p.ID] = cur
	return nil
}

func (t *memTx) SerialExists(_ context.Context, tenantID int64, serial string, excludeItemID int64) (bool, error) {
	if err := t.fail("SerialExists"); err != nil {
		return false, err
	}
	for _, it := range t.st.items {
		if it.TenantID == tenantID && it.Serial == serial && it.ID != excludeItemID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertItem(ctx context.Context, it stock.Item) (stock.Item, error) {
	if err := t.fail("InsertItem"); err != nil {
		return stock.Item{}, err
	}
	if taken, _ := t.SerialExists(ctx, it.TenantID, it.Serial, 0); taken {
		return stock.Item{}, stock.ErrDuplicateSerial
	}
	it.ID = t.st.id()
	it.ReceivedAt = t.store.now()
	it.UpdatedAt = it.ReceivedAt
	t.st.items[it.ID] = it
	return it, nil
}

func (t *memTx) GetItemForUpdate(_ context.Context, tenantID, id int64) (stock.Item, error) {
	if err := t.fail("GetItemForUpdate"); err != nil {
		return stock.Item{}, err
	}
	it, ok := t.st.items[id]
	if !ok || it.TenantID != tenantID {
		return stock.Item{}, stock.ErrItemNotFound
	}
	return it, nil
}

func (t *memTx) LockAvailableItems(_ context.Context, tenantID, productID int64, limit int) ([]stock.Item, error) {
	if err := t.fail("LockAvailableItems"); err != nil {
		return nil, err
	}
	var out []stock.Item
	for _, it := range t.st.items {
		if it.TenantID == tenantID && it.ProductID == productID && it.Status == stock.ItemInStock {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) UpdateItem(ctx context.Context, it stock.Item) error {
	if err := t.fail("UpdateItem"); err != nil {
		return err
	}
	cur, ok := t.st.items[it.ID]
	if !ok || cur.TenantID != it.TenantID {
		return stock.ErrItemNotFound
	}
	if taken, _ := t.SerialExists(ctx, it.TenantID, it.Serial, it.ID); taken {
		return stock.ErrDuplicateSerial
	}
	cur.Serial, cur.RealCost, cur.Status, cur.SoldPrice = it.Serial, it.RealCost, it.Status, it.SoldPrice
	cur.UpdatedAt = t.store.now()
	t.st.items[it.ID] = cur
	return nil
}

func (t *memTx) ItemStatusCounts(_ context.Context, tenantID, productID int64) (map[stock.ItemStatus]int, error) {
	if err := t.fail("ItemStatusCounts"); err != nil {
		return nil, err
	}
	counts := map[stock.ItemStatus]int{}
	for _, it := range t.st.items {
		if it.TenantID == tenantID && it.ProductID == productID {
			counts[it.Status]++
		}
	}
	return counts, nil
}

// rental

func (t *memTx) InsertContract(_ context.Context, c rental.Contract) (rental.Contract, error) {
	if err := t.fail("InsertContract"); err != nil {
		return rental.Contract{}, err
	}
	for _, existing := range t.st.contracts {
		if existing.TenantID == c.TenantID && existing.ItemID == c.ItemID && existing.IsActive {
			return rental.Contract{}, rental.ErrItemAlreadyRented
		}
	}
	c.ID = t.st.id()
	c.IsActive = true
	c.CreatedAt = t.store.now()
	t.st.contracts[c.ID] = c
	return c, nil
}

func (t *memTx) GetContractForUpdate(_ context.Context, tenantID, id int64) (rental.Contract, error) {
	if err := t.fail("GetContractForUpdate"); err != nil {
		return rental.Contract{}, err
	}
	c, ok := t.st.contracts[id]
	if !ok || c.TenantID != tenantID {
		return rental.Contract{}, rental.ErrContractNotFound
	}
	return c, nil
}

func (t *memTx) ActiveContractForItem(_ context.Context, tenantID, itemID int64) (rental.Contract, error) {
	if err := t.fail("ActiveContractForItem"); err != nil {
		return rental.Contract{}, err
	}
	for _, c := range t.st.contracts {
		if c.TenantID == tenantID && c.ItemID == itemID && c.IsActive {
			return c, nil
		}
	}
	return rental.Contract{}, rental.ErrContractNotFound
}

func (t *memTx) CloseContract(_ context.Context, c rental.Contract) error {
	if err := t.fail("CloseContract"); err != nil {
		return err
	}
	cur, ok := t.st.contracts[c.ID]
	if !ok || cur.TenantID != c.TenantID || !cur.IsActive {
		return rental.ErrNotActive
	}
	cur.IsActive = false
	cur.EndDate = c.EndDate
	cur.ReturnValue = c.ReturnValue
	t.st.contracts[c.ID] = cur
	return nil
}
