package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/shared"
)

// TxRepository exposes the stock reads and writes used inside a posting
// transaction. ForUpdate/Lock methods take row locks held until commit.
type TxRepository interface {
	ClaimSequence(ctx context.Context, tenantID int64, scope string, day time.Time) (int64, error)
	ZencodeExists(ctx context.Context, tenantID int64, zencode string) (bool, error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, tenantID, id int64) (Product, error)
	GetProductForUpdate(ctx context.Context, tenantID, id int64) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	SerialExists(ctx context.Context, tenantID int64, serial string, excludeItemID int64) (bool, error)
	InsertItem(ctx context.Context, it Item) (Item, error)
	GetItemForUpdate(ctx context.Context, tenantID, id int64) (Item, error)
	LockAvailableItems(ctx context.Context, tenantID, productID int64, limit int) ([]Item, error)
	UpdateItem(ctx context.Context, it Item) error
	ItemStatusCounts(ctx context.Context, tenantID, productID int64) (map[ItemStatus]int, error)
}

// maxCodeAttempts bounds retries when a claimed code is already taken by a
// manually entered one.
const maxCodeAttempts = 5

// Engine owns item status transitions. It holds no state of its own; every
// call runs against the caller's transaction.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs Engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// WithClock overrides the clock used for codes and placeholder serials.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Receipt is the result of Receive.
type Receipt struct {
	Product Product
	Items   []Item
	Created bool
}

// Receive books quantity units of a new or existing product.
func (e *Engine) Receive(ctx context.Context, tx TxRepository, in ReceiveInput) (Receipt, error) {
	if in.Quantity < 1 {
		return Receipt{}, ErrInvalidQuantity
	}
	if !validCost(in.UnitCost) {
		return Receipt{}, ErrInvalidCost
	}
	serial, err := checkPolicy(in.Serial)
	if err != nil {
		return Receipt{}, err
	}
	day := e.now()

	var rec Receipt
	if in.Spec.ProductID != 0 {
		rec.Product, err = tx.GetProductForUpdate(ctx, in.TenantID, in.Spec.ProductID)
		if err != nil {
			return Receipt{}, err
		}
	} else {
		rec.Product, err = e.createProduct(ctx, tx, in, day)
		if err != nil {
			return Receipt{}, err
		}
		rec.Created = true
	}

	for n := 1; n <= in.Quantity; n++ {
		item := Item{
			TenantID:   in.TenantID,
			ProductID:  rec.Product.ID,
			RealCost:   in.UnitCost,
			Status:     ItemInStock,
			SupplierID: in.SupplierID,
		}
		switch in.Serial.Mode {
		case SerialSupplied:
			item.Serial = serial
			if in.Quantity > 1 {
				item.Serial = fmt.Sprintf("%s-%d", serial, n)
			}
			taken, err := tx.SerialExists(ctx, in.TenantID, item.Serial, 0)
			if err != nil {
				return Receipt{}, err
			}
			if taken {
				return Receipt{}, ErrDuplicateSerial
			}
		case SerialAuto:
			item.Serial, err = e.claimSerial(ctx, tx, in.TenantID, autoSerialPrefix, day)
		case SerialDeferred:
			item.Status = ItemPending
			item.Serial, err = e.claimSerial(ctx, tx, in.TenantID, deferredSerialPrefix, day)
		}
		if err != nil {
			return Receipt{}, err
		}
		item, err = tx.InsertItem(ctx, item)
		if err != nil {
			return Receipt{}, err
		}
		rec.Items = append(rec.Items, item)
	}

	rec.Product, err = e.RefreshProductStatus(ctx, tx, in.TenantID, rec.Product.ID)
	if err != nil {
		return Receipt{}, err
	}
	return rec, nil
}

func (e *Engine) createProduct(ctx context.Context, tx TxRepository, in ReceiveInput, day time.Time) (Product, error) {
	spec := in.Spec
	if spec.Category == "" {
		spec.Category = CategoryMisc
	}
	if !spec.Category.Valid() {
		return Product{}, ErrInvalidCategory
	}
	for _, price := range []decimal.Decimal{spec.CostPrice, spec.PeerPrice, spec.RetailPrice} {
		if !validCost(price) {
			return Product{}, ErrInvalidCost
		}
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" && spec.Category == CategoryMachine {
		name = ComposeName(spec)
	}
	cost := spec.CostPrice
	if cost.IsZero() {
		cost = in.UnitCost
	}
	p := Product{
		TenantID:    in.TenantID,
		Name:        name,
		Category:    spec.Category,
		CPU:         strings.TrimSpace(spec.CPU),
		GPU:         strings.TrimSpace(spec.GPU),
		RAM:         strings.TrimSpace(spec.RAM),
		Disk:        strings.TrimSpace(spec.Disk),
		Note:        strings.TrimSpace(spec.Note),
		CostPrice:   cost,
		PeerPrice:   spec.PeerPrice,
		RetailPrice: spec.RetailPrice,
		Status:      ProductInStock,
	}

	if spec.Zencode != "" {
		code, err := NormalizeZencode(spec.Zencode)
		if err != nil {
			return Product{}, err
		}
		taken, err := tx.ZencodeExists(ctx, in.TenantID, code)
		if err != nil {
			return Product{}, err
		}
		if taken {
			return Product{}, ErrDuplicateZencode
		}
		p.Zencode = code
		return tx.InsertProduct(ctx, p)
	}

	initials := strings.ToUpper(strings.TrimSpace(in.Initials))
	if initials == "" {
		initials = "XX"
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		seq, err := tx.ClaimSequence(ctx, in.TenantID, zencodeScope(spec.Category), day)
		if err != nil {
			return Product{}, fmt.Errorf("stock: claim zencode sequence: %w", err)
		}
		code := FormatZencode(day, initials, spec.Category, seq)
		taken, err := tx.ZencodeExists(ctx, in.TenantID, code)
		if err != nil {
			return Product{}, err
		}
		if taken {
			continue
		}
		p.Zencode = code
		return tx.InsertProduct(ctx, p)
	}
	return Product{}, ErrSequenceExhausted
}

func (e *Engine) claimSerial(ctx context.Context, tx TxRepository, tenantID int64, prefix string, day time.Time) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		seq, err := tx.ClaimSequence(ctx, tenantID, serialScope(prefix), day)
		if err != nil {
			return "", fmt.Errorf("stock: claim serial sequence: %w", err)
		}
		serial := PlaceholderSerial(prefix, day, seq)
		taken, err := tx.SerialExists(ctx, tenantID, serial, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return serial, nil
		}
	}
	return "", ErrSequenceExhausted
}

// ConfirmSerial replaces a PENDING item's placeholder with its real serial.
func (e *Engine) ConfirmSerial(ctx context.Context, tx TxRepository, tenantID, itemID int64, realSerial string) (Item, error) {
	serial, err := NormalizeSerial(realSerial)
	if err != nil {
		return Item{}, err
	}
	item, err := tx.GetItemForUpdate(ctx, tenantID, itemID)
	if err != nil {
		return Item{}, err
	}
	if item.Status != ItemPending {
		return Item{}, ErrNotPending
	}
	taken, err := tx.SerialExists(ctx, tenantID, serial, item.ID)
	if err != nil {
		return Item{}, err
	}
	if taken {
		return Item{}, ErrDuplicateSerial
	}
	if err := item.transition(ItemInStock); err != nil {
		return Item{}, err
	}
	item.Serial = serial
	if err := tx.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	if _, err := e.RefreshProductStatus(ctx, tx, tenantID, item.ProductID); err != nil {
		return Item{}, err
	}
	return item, nil
}

// AllocateForSale locks the quantity oldest IN_STOCK units of a product.
// Units locked by concurrent postings are skipped, so a lost race surfaces as
// ErrInsufficientStock rather than a wait.
func (e *Engine) AllocateForSale(ctx context.Context, tx TxRepository, tenantID, productID int64, quantity int) ([]Item, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if _, err := tx.GetProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	items, err := tx.LockAvailableItems(ctx, tenantID, productID, quantity)
	if err != nil {
		return nil, err
	}
	if len(items) < quantity {
		return nil, ErrInsufficientStock
	}
	return items, nil
}

// AllocateForRental locks the requested item, or the oldest IN_STOCK unit.
func (e *Engine) AllocateForRental(ctx context.Context, tx TxRepository, tenantID, productID int64, itemID *int64) (Item, error) {
	if itemID != nil {
		item, err := tx.GetItemForUpdate(ctx, tenantID, *itemID)
		if err != nil {
			return Item{}, err
		}
		if productID != 0 && item.ProductID != productID {
			return Item{}, ErrItemProductMismatch
		}
		if item.Status != ItemInStock {
			return Item{}, ErrNotAvailable
		}
		return item, nil
	}
	if _, err := tx.GetProduct(ctx, tenantID, productID); err != nil {
		return Item{}, err
	}
	items, err := tx.LockAvailableItems(ctx, tenantID, productID, 1)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		return Item{}, ErrNotAvailable
	}
	return items[0], nil
}

// MarkSold moves allocated units to SOLD at unitPrice and records the price
// on the product.
func (e *Engine) MarkSold(ctx context.Context, tx TxRepository, items []Item, unitPrice decimal.Decimal) ([]Item, error) {
	if len(items) == 0 {
		return nil, ErrInvalidQuantity
	}
	sold := make([]Item, 0, len(items))
	for _, item := range items {
		if err := item.transition(ItemSold); err != nil {
			return nil, err
		}
		price := unitPrice
		item.SoldPrice = &price
		if err := tx.UpdateItem(ctx, item); err != nil {
			return nil, err
		}
		sold = append(sold, item)
	}
	first := items[0]
	p, err := tx.GetProductForUpdate(ctx, first.TenantID, first.ProductID)
	if err != nil {
		return nil, err
	}
	price := unitPrice
	p.SoldPrice = &price
	if err := e.applyDerivedStatus(ctx, tx, &p); err != nil {
		return nil, err
	}
	return sold, nil
}

// MarkRented moves an allocated unit to RENTED.
func (e *Engine) MarkRented(ctx context.Context, tx TxRepository, item Item) (Item, error) {
	if err := item.transition(ItemRented); err != nil {
		return Item{}, ErrNotAvailable
	}
	if err := tx.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	if _, err := e.RefreshProductStatus(ctx, tx, item.TenantID, item.ProductID); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ReleaseFromRental returns a rented unit to stock at its revised valuation.
func (e *Engine) ReleaseFromRental(ctx context.Context, tx TxRepository, tenantID, itemID int64, revisedValue decimal.Decimal) (Item, error) {
	if !validCost(revisedValue) {
		return Item{}, ErrInvalidCost
	}
	item, err := tx.GetItemForUpdate(ctx, tenantID, itemID)
	if err != nil {
		return Item{}, err
	}
	if item.Status != ItemRented {
		return Item{}, ErrNotRented
	}
	if err := item.transition(ItemInStock); err != nil {
		return Item{}, err
	}
	item.RealCost = revisedValue
	if err := tx.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	if _, err := e.RefreshProductStatus(ctx, tx, tenantID, item.ProductID); err != nil {
		return Item{}, err
	}
	return item, nil
}

// WriteOff marks a non-terminal unit BAD.
func (e *Engine) WriteOff(ctx context.Context, tx TxRepository, tenantID, itemID int64) (Item, error) {
	item, err := tx.GetItemForUpdate(ctx, tenantID, itemID)
	if err != nil {
		return Item{}, err
	}
	if item.Status.Terminal() {
		return Item{}, ErrItemTerminal
	}
	if err := item.transition(ItemBad); err != nil {
		return Item{}, err
	}
	if err := tx.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	if _, err := e.RefreshProductStatus(ctx, tx, tenantID, item.ProductID); err != nil {
		return Item{}, err
	}
	return item, nil
}

// RefreshProductStatus recomputes the product summary from its items.
func (e *Engine) RefreshProductStatus(ctx context.Context, tx TxRepository, tenantID, productID int64) (Product, error) {
	p, err := tx.GetProductForUpdate(ctx, tenantID, productID)
	if err != nil {
		return Product{}, err
	}
	if err := e.applyDerivedStatus(ctx, tx, &p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (e *Engine) applyDerivedStatus(ctx context.Context, tx TxRepository, p *Product) error {
	counts, err := tx.ItemStatusCounts(ctx, p.TenantID, p.ID)
	if err != nil {
		return err
	}
	p.Status = DeriveProductStatus(counts)
	return tx.UpdateProduct(ctx, *p)
}

func checkPolicy(policy SerialPolicy) (string, error) {
	switch policy.Mode {
	case SerialSupplied:
		return NormalizeSerial(policy.Serial)
	case SerialAuto, SerialDeferred:
		return "", nil
	default:
		return "", ErrInvalidSerialMode
	}
}

func validCost(d decimal.Decimal) bool {
	return shared.ValidAmount(d)
}
