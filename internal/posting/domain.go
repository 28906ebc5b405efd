package posting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/rental"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
)

// Tx is everything one posting event may touch. All methods run inside the
// same database transaction.
type Tx interface {
	tenancy.TxRepository
	stock.TxRepository
	ledger.TxRepository
	rental.TxRepository
	ClaimIdempotencyKey(ctx context.Context, tenantID int64, key, module string) error
	Audit(ctx context.Context, log shared.AuditLog) error
}

// Store runs fn in a transaction that commits only when fn returns nil.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

// Event names a posting event.
type Event string

const (
	EventReceive       Event = "receive"
	EventConfirmSerial Event = "confirm_serial"
	EventSell          Event = "sell"
	EventRentOut       Event = "rent_out"
	EventSettle        Event = "settle"
	EventRepay         Event = "repay"
	EventWriteOff      Event = "write_off"
)

// Notifier is told about committed events. Failures never undo the event.
type Notifier interface {
	Posted(ctx context.Context, tenantID int64, event Event) error
}

// Observer records posting outcomes.
type Observer interface {
	ObservePosting(event string, err error, elapsed time.Duration)
}

// Direction selects which side of a contact balance a repayment settles.
type Direction string

const (
	// DirectionPay settles a payable: we pay the contact.
	DirectionPay Direction = "PAY"
	// DirectionCollect settles a receivable: the contact pays us.
	DirectionCollect Direction = "COLLECT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionPay || d == DirectionCollect
}

// Meta is carried by every event.
type Meta struct {
	Actor          tenancy.Actor
	TenantID       int64
	IdempotencyKey string
}

// ReceiveInput books goods into stock and the supplier ledger.
type ReceiveInput struct {
	Meta
	Spec       stock.ProductSpec
	Quantity   int
	UnitCost   decimal.Decimal
	Serial     stock.SerialPolicy
	SupplierID *int64
	PaidAmount decimal.Decimal
	AccountID  *int64
}

// ReceiveResult reports the booked receipt.
type ReceiveResult struct {
	Product     stock.Product       `json:"product"`
	Items       []stock.Item        `json:"items"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
	Supplier    *ledger.Contact     `json:"supplier,omitempty"`
}

// ConfirmSerialInput replaces a placeholder serial.
type ConfirmSerialInput struct {
	Meta
	ItemID int64
	Serial string
}

// SellInput sells quantity units of a product to a contact.
type SellInput struct {
	Meta
	ProductID      int64
	Quantity       int
	UnitPrice      decimal.Decimal
	ReceivedAmount decimal.Decimal
	ContactID      int64
	AccountID      *int64
}

// SellResult reports the sold units and ledger records.
type SellResult struct {
	Items        []stock.Item         `json:"items"`
	Transactions []ledger.Transaction `json:"transactions"`
	Contact      ledger.Contact       `json:"contact"`
}

// RentOutInput opens a rental contract.
type RentOutInput struct {
	Meta
	ProductID           int64
	ItemID              *int64
	ContactID           int64
	StartDate           time.Time
	Duration            int
	RentPrice           decimal.Decimal
	Deposit             decimal.Decimal
	DepreciationMonthly decimal.Decimal
	AccountID           *int64
}

// RentOutResult reports the new contract.
type RentOutResult struct {
	Contract    rental.Contract    `json:"contract"`
	Item        stock.Item         `json:"item"`
	Transaction ledger.Transaction `json:"transaction"`
}

// SettleInput closes a rental contract.
type SettleInput struct {
	Meta
	ContractID   int64
	RevisedValue *decimal.Decimal
	AccountID    *int64
}

// SettleResult reports the closed contract.
type SettleResult struct {
	Contract     rental.Contract      `json:"contract"`
	Item         stock.Item           `json:"item"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// RepayInput moves cash between an account and a contact balance.
type RepayInput struct {
	Meta
	ContactID int64
	Amount    decimal.Decimal
	AccountID *int64
	Direction Direction
}

// WriteOffInput marks a unit BAD.
type WriteOffInput struct {
	Meta
	ItemID int64
	Reason string
}

// WriteOffResult reports the written-off unit.
type WriteOffResult struct {
	Item        stock.Item         `json:"item"`
	Transaction ledger.Transaction `json:"transaction"`
	Contract    *rental.Contract   `json:"closed_contract,omitempty"`
}

var (
	// ErrContactRequired indicates the event needs a contact.
	ErrContactRequired = shared.Validation("posting: contact required")
	// ErrAccountRequired indicates cash moved without an account.
	ErrAccountRequired = shared.Validation("posting: account required when an amount is paid")
	// ErrSupplierRequired indicates a paid receipt without a supplier.
	ErrSupplierRequired = shared.Validation("posting: supplier required when an amount is paid")
	// ErrInvalidAmount indicates a negative or over-precise amount.
	ErrInvalidAmount = shared.Validation("posting: amounts and totals must be between 0 and 999999999999.99 with at most 2 decimals")
	// ErrNonPositiveAmount indicates a repayment of zero or less.
	ErrNonPositiveAmount = shared.Validation("posting: amount must be positive")
	// ErrInvalidDirection indicates an unknown repayment direction.
	ErrInvalidDirection = shared.Validation("posting: unknown repayment direction")
	// ErrRevisedValueRequired indicates settlement without a revaluation.
	ErrRevisedValueRequired = shared.Validation("posting: revised value required")
)
