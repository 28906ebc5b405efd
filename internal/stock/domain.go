package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/shared"
)

// ItemStatus is the lifecycle state of one physical unit.
type ItemStatus string

const (
	ItemInStock ItemStatus = "IN_STOCK"
	ItemPending ItemStatus = "PENDING"
	ItemRented  ItemStatus = "RENTED"
	ItemSold    ItemStatus = "SOLD"
	ItemBad     ItemStatus = "BAD"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending: {ItemInStock, ItemBad},
	ItemInStock: {ItemRented, ItemSold, ItemBad},
	ItemRented:  {ItemInStock, ItemBad},
}

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemInStock, ItemPending, ItemRented, ItemSold, ItemBad:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s ItemStatus) Terminal() bool {
	return s == ItemSold || s == ItemBad
}

// CanTransition reports whether s may move to next.
func (s ItemStatus) CanTransition(next ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ProductStatus is a coarse summary derived from item statuses.
type ProductStatus string

const (
	ProductInStock ProductStatus = "IN_STOCK"
	ProductRented  ProductStatus = "RENTED"
	ProductTransit ProductStatus = "TRANSIT"
	ProductSold    ProductStatus = "SOLD"
	ProductRepair  ProductStatus = "REPAIR"
)

// DeriveProductStatus summarises item status counts. Any unit still on hand
// (IN_STOCK or PENDING) keeps the product in stock; otherwise rented units win;
// a product whose units are all sold is SOLD; anything else needs attention.
func DeriveProductStatus(counts map[ItemStatus]int) ProductStatus {
	switch {
	case counts[ItemInStock]+counts[ItemPending] > 0:
		return ProductInStock
	case counts[ItemRented] > 0:
		return ProductRented
	case counts[ItemSold] > 0 && counts[ItemBad] == 0:
		return ProductSold
	case counts[ItemBad] > 0:
		return ProductRepair
	default:
		return ProductInStock
	}
}

// Category classifies products.
type Category string

const (
	// CategoryMachine is a whole machine; its name may be composed from parts.
	CategoryMachine Category = "ZJ"
	// CategoryPhone is a phone.
	CategoryPhone Category = "SJ"
	// CategoryDisplay is a monitor.
	CategoryDisplay Category = "XS"
	// CategoryMisc is everything else.
	CategoryMisc Category = "ZX"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryMachine, CategoryPhone, CategoryDisplay, CategoryMisc:
		return true
	}
	return false
}

// Product is a catalog entry (SPU).
type Product struct {
	ID          int64            `json:"id"`
	TenantID    int64            `json:"tenant_id"`
	Zencode     string           `json:"zencode"`
	Name        string           `json:"name"`
	Category    Category         `json:"category"`
	CPU         string           `json:"cpu"`
	GPU         string           `json:"gpu"`
	RAM         string           `json:"ram"`
	Disk        string           `json:"disk"`
	Note        string           `json:"note"`
	CostPrice   decimal.Decimal  `json:"cost_price"`
	PeerPrice   decimal.Decimal  `json:"peer_price"`
	RetailPrice decimal.Decimal  `json:"retail_price"`
	SoldPrice   *decimal.Decimal `json:"sold_price,omitempty"`
	Status      ProductStatus    `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Item is one physical unit (SKU).
type Item struct {
	ID         int64            `json:"id"`
	TenantID   int64            `json:"tenant_id"`
	ProductID  int64            `json:"product_id"`
	Serial     string           `json:"serial"`
	RealCost   decimal.Decimal  `json:"real_cost"`
	Status     ItemStatus       `json:"status"`
	SupplierID *int64           `json:"supplier_id,omitempty"`
	SoldPrice  *decimal.Decimal `json:"sold_price,omitempty"`
	ReceivedAt time.Time        `json:"received_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (it *Item) transition(next ItemStatus) error {
	if !it.Status.CanTransition(next) {
		return shared.Conflict("stock: item " + string(it.Status) + " cannot become " + string(next))
	}
	it.Status = next
	return nil
}

// ProductSpec describes the product a receipt is booked against: an existing
// product when ProductID is set, otherwise a new one.
type ProductSpec struct {
	ProductID   int64
	Zencode     string
	Name        string
	Category    Category
	CPU         string
	GPU         string
	RAM         string
	Disk        string
	Note        string
	CostPrice   decimal.Decimal
	PeerPrice   decimal.Decimal
	RetailPrice decimal.Decimal
}

// SerialMode selects how received units are identified.
type SerialMode string

const (
	// SerialSupplied uses the caller's serial, suffixed "-N" when quantity > 1.
	SerialSupplied SerialMode = "SUPPLIED"
	// SerialAuto issues a placeholder and books units IN_STOCK immediately.
	SerialAuto SerialMode = "AUTO"
	// SerialDeferred issues a placeholder and books units PENDING until confirmed.
	SerialDeferred SerialMode = "DEFERRED"
)

// SerialPolicy is the serial capture choice for one receipt.
type SerialPolicy struct {
	Mode   SerialMode
	Serial string
}

// ReceiveInput carries one receipt.
type ReceiveInput struct {
	TenantID   int64
	Spec       ProductSpec
	Quantity   int
	UnitCost   decimal.Decimal
	Serial     SerialPolicy
	SupplierID *int64
	Initials   string
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Status   ProductStatus
	Category Category
	Search   string
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	ProductID int64
	Status    ItemStatus
	Serial    string
}

var (
	// ErrInvalidQuantity indicates quantity < 1.
	ErrInvalidQuantity = shared.Validation("stock: quantity must be at least 1")
	// ErrInvalidCost indicates a negative or over-precise cost.
	ErrInvalidCost = shared.Validation("stock: cost must be between 0 and 999999999999.99 with at most 2 decimals")
	// ErrInvalidSerial indicates an empty or malformed serial.
	ErrInvalidSerial = shared.Validation("stock: malformed serial")
	// ErrInvalidSerialMode indicates an unknown serial policy.
	ErrInvalidSerialMode = shared.Validation("stock: unknown serial policy")
	// ErrInvalidCategory indicates an unknown category.
	ErrInvalidCategory = shared.Validation("stock: unknown category")
	// ErrInvalidZencode indicates a malformed manual product code.
	ErrInvalidZencode = shared.Validation("stock: malformed zencode")
	// ErrProductNotFound indicates an unknown product in the tenant.
	ErrProductNotFound = shared.NotFound("stock: product not found")
	// ErrItemNotFound indicates an unknown item in the tenant.
	ErrItemNotFound = shared.NotFound("stock: item not found")
	// ErrItemProductMismatch indicates the item belongs to another product.
	ErrItemProductMismatch = shared.Validation("stock: item does not belong to product")
	// ErrNotPending indicates serial confirmation on a non-PENDING item.
	ErrNotPending = shared.Conflict("stock: item is not pending")
	// ErrDuplicateSerial indicates the serial is already used in the tenant.
	ErrDuplicateSerial = shared.Conflict("stock: serial already exists")
	// ErrDuplicateZencode indicates the product code is already used in the tenant.
	ErrDuplicateZencode = shared.Conflict("stock: zencode already exists")
	// ErrInsufficientStock indicates fewer IN_STOCK units than requested.
	ErrInsufficientStock = shared.Conflict("stock: insufficient stock")
	// ErrNotAvailable indicates no unit can be rented.
	ErrNotAvailable = shared.Conflict("stock: item not available")
	// ErrNotRented indicates release of an item that is not rented.
	ErrNotRented = shared.Conflict("stock: item is not rented")
	// ErrItemTerminal indicates the item is already SOLD or BAD.
	ErrItemTerminal = shared.Conflict("stock: item is sold or written off")
	// ErrSequenceExhausted indicates repeated code collisions.
	ErrSequenceExhausted = shared.Conflict("stock: could not claim a free code")
)
