package rental

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/shared"
)

// Contract is a rental of one stock item to a contact.
type Contract struct {
	ID                  int64            `json:"id"`
	TenantID            int64            `json:"tenant_id"`
	ContactID           int64            `json:"contact_id"`
	ProductID           int64            `json:"product_id"`
	ItemID              int64            `json:"item_id"`
	OperatorID          *int64           `json:"operator_id,omitempty"`
	StartDate           time.Time        `json:"start_date"`
	Duration            int              `json:"duration"`
	EndDate             *time.Time       `json:"end_date,omitempty"`
	Deposit             decimal.Decimal  `json:"deposit"`
	RentPrice           decimal.Decimal  `json:"rent_price"`
	DepreciationMonthly decimal.Decimal  `json:"depreciation_monthly"`
	TotalAmount         decimal.Decimal  `json:"total_amount"`
	PaidAmount          decimal.Decimal  `json:"paid_amount"`
	ExpectedProfit      decimal.Decimal  `json:"expected_profit"`
	ReturnValue         *decimal.Decimal `json:"return_value,omitempty"`
	IsActive            bool             `json:"is_active"`
	CreatedAt           time.Time        `json:"created_at"`
}

// Terms are the caller-supplied contract values.
type Terms struct {
	TenantID            int64
	ContactID           int64
	ProductID           int64
	ItemID              int64
	OperatorID          *int64
	StartDate           time.Time
	Duration            int
	Deposit             decimal.Decimal
	RentPrice           decimal.Decimal
	DepreciationMonthly decimal.Decimal
}

// NewContract validates terms and computes the contract totals:
// TotalAmount = RentPrice × Duration and
// ExpectedProfit = TotalAmount − DepreciationMonthly × Duration.
func NewContract(t Terms) (Contract, error) {
	if t.Duration < 1 {
		return Contract{}, ErrInvalidDuration
	}
	months := decimal.NewFromInt(int64(t.Duration))
	for _, d := range []decimal.Decimal{t.Deposit, t.RentPrice, t.DepreciationMonthly, t.RentPrice.Mul(months), t.DepreciationMonthly.Mul(months)} {
		if !shared.ValidAmount(d) {
			return Contract{}, ErrInvalidAmount
		}
	}
	if t.StartDate.IsZero() {
		return Contract{}, shared.Validation("rental: start date required")
	}
	total := t.RentPrice.Mul(months)
	return Contract{
		TenantID:            t.TenantID,
		ContactID:           t.ContactID,
		ProductID:           t.ProductID,
		ItemID:              t.ItemID,
		OperatorID:          t.OperatorID,
		StartDate:           truncateDay(t.StartDate),
		Duration:            t.Duration,
		Deposit:             t.Deposit,
		RentPrice:           t.RentPrice,
		DepreciationMonthly: t.DepreciationMonthly,
		TotalAmount:         total,
		PaidAmount:          decimal.Zero,
		ExpectedProfit:      total.Sub(t.DepreciationMonthly.Mul(months)),
		IsActive:            true,
	}, nil
}

// Close marks the contract settled on day with the item's return valuation.
func (c *Contract) Close(day time.Time, returnValue decimal.Decimal) error {
	if !c.IsActive {
		return ErrNotActive
	}
	end := truncateDay(day)
	value := returnValue
	c.IsActive = false
	c.EndDate = &end
	c.ReturnValue = &value
	return nil
}

// ScheduledEnd is the contractual end date.
func (c Contract) ScheduledEnd() time.Time {
	return c.StartDate.AddDate(0, c.Duration, 0)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Filter narrows contract listings.
type Filter struct {
	Active    *bool
	ContactID int64
	ItemID    int64
}

var (
	// ErrInvalidDuration indicates a duration below one month.
	ErrInvalidDuration = shared.Validation("rental: duration must be at least 1 month")
	// ErrInvalidAmount indicates a negative or over-precise amount.
	ErrInvalidAmount = shared.Validation("rental: amounts and totals must be between 0 and 999999999999.99 with at most 2 decimals")
	// ErrContractNotFound indicates an unknown contract in the tenant.
	ErrContractNotFound = shared.NotFound("rental: contract not found")
	// ErrNotActive indicates the contract was already settled.
	ErrNotActive = shared.Conflict("rental: contract is not active")
	// ErrItemAlreadyRented indicates the item has an active contract.
	ErrItemAlreadyRented = shared.Conflict("rental: item already has an active contract")
)
