package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/shared"
)

// TransactionType enumerates ledger transaction kinds.
type TransactionType string

const (
	// TypeSale records cash received for sold stock.
	TypeSale TransactionType = "SALE"
	// TypeRent records a rental deposit.
	TypeRent TransactionType = "RENT"
	// TypeBuy records cash paid to a supplier.
	TypeBuy TransactionType = "BUY"
	// TypeOther records settlements, collections and write-offs.
	TypeOther TransactionType = "OTHER"
)

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeSale, TypeRent, TypeBuy, TypeOther:
		return true
	}
	return false
}

// Account is a capital account holding cash.
type Account struct {
	ID             int64           `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Contact is a customer or supplier. Positive balance is owed to us,
// negative balance is owed by us.
type Contact struct {
	ID        int64           `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Address   string          `json:"address"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Position classifies a contact balance.
type Position string

const (
	PositionReceivable Position = "RECEIVABLE"
	PositionPayable    Position = "PAYABLE"
	PositionSettled    Position = "SETTLED"
)

// Position reports whether the contact owes us, we owe them, or neither.
func (c Contact) Position() Position {
	switch {
	case c.Balance.IsPositive():
		return PositionReceivable
	case c.Balance.IsNegative():
		return PositionPayable
	default:
		return PositionSettled
	}
}

// Transaction is an insert-only ledger record.
type Transaction struct {
	ID         int64           `json:"id"`
	TenantID   int64           `json:"tenant_id"`
	Type       TransactionType `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	ContactID  *int64          `json:"contact_id,omitempty"`
	ProductID  *int64          `json:"product_id,omitempty"`
	AccountID  *int64          `json:"account_id,omitempty"`
	OperatorID *int64          `json:"operator_id,omitempty"`
	Remark     string          `json:"remark"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	Type      TransactionType
	ContactID int64
	AccountID int64
	ProductID int64
	From      time.Time
	To        time.Time
}

// ContactFilter narrows contact listings.
type ContactFilter struct {
	Search   string
	Position Position
}

// ValidAmount reports whether d is a non-negative amount with at most two
// decimals that fits a money column.
func ValidAmount(d decimal.Decimal) bool {
	return shared.ValidAmount(d)
}

var (
	// ErrAccountNotFound indicates an unknown account in the tenant.
	ErrAccountNotFound = shared.NotFound("ledger: account not found")
	// ErrContactNotFound indicates an unknown contact in the tenant.
	ErrContactNotFound = shared.NotFound("ledger: contact not found")
	// ErrNoAccount indicates the tenant has no capital account to fall back to.
	ErrNoAccount = shared.Validation("ledger: tenant has no capital account")
	// ErrAccountLimit indicates the tenant reached its account limit.
	ErrAccountLimit = shared.Conflict("ledger: account limit reached")
	// ErrDuplicateContact indicates the contact name is taken.
	ErrDuplicateContact = shared.Conflict("ledger: contact name already exists")
	// ErrDuplicateAccount indicates the account name is taken.
	ErrDuplicateAccount = shared.Conflict("ledger: account name already exists")
	// ErrInvalidAmount indicates a negative or over-precise amount.
	ErrInvalidAmount = shared.Validation("ledger: amount must be between 0 and 999999999999.99 with at most 2 decimals")
	// ErrBalanceOutOfRange indicates a posting would push a balance past the money column range.
	ErrBalanceOutOfRange = shared.Validation("ledger: resulting balance out of range")
	// ErrInvalidType indicates an unknown transaction type.
	ErrInvalidType = shared.Validation("ledger: unknown transaction type")
	// ErrUnboundDelta indicates a balance delta without a target.
	ErrUnboundDelta = shared.Validation("ledger: balance delta requires an account or contact")
)
