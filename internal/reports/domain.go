package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/shared"
)

// Period selects the window of a profit report.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Start returns the inclusive lower bound of the period relative to now, or
// the zero time for PeriodAll.
func (p Period) Start(now time.Time) (time.Time, error) {
	switch p {
	case PeriodAll, "":
		return time.Time{}, nil
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), nil
	default:
		return time.Time{}, ErrInvalidPeriod
	}
}

// AccountBalance is one line of the accounting report.
type AccountBalance struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// Accounting is the tenant's balance snapshot. Payable keeps the sign of the
// underlying contact balances (zero or negative).
type Accounting struct {
	TenantID   int64            `json:"tenant_id"`
	Cash       decimal.Decimal  `json:"cash"`
	Stock      decimal.Decimal  `json:"stock"`
	Receivable decimal.Decimal  `json:"receivable"`
	Payable    decimal.Decimal  `json:"payable"`
	NetWorth   decimal.Decimal  `json:"net_worth"`
	Accounts   []AccountBalance `json:"accounts"`
}

// ContactTotals splits contact balances by sign.
type ContactTotals struct {
	Receivable decimal.Decimal
	Payable    decimal.Decimal
}

// ProfitLine is one sold unit.
type ProfitLine struct {
	ItemID  int64           `json:"item_id"`
	Zencode string          `json:"zencode"`
	Name    string          `json:"name"`
	Serial  string          `json:"serial"`
	SoldAt  time.Time       `json:"date"`
	Price   decimal.Decimal `json:"price"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
}

// ProfitSummary totals a profit report.
type ProfitSummary struct {
	Sales  decimal.Decimal `json:"sales"`
	Cost   decimal.Decimal `json:"cost"`
	Profit decimal.Decimal `json:"profit"`
	Count  int             `json:"count"`
}

// Profit is realised margin on units sold in a period.
type Profit struct {
	TenantID int64         `json:"tenant_id"`
	Period   Period        `json:"period"`
	From     *time.Time    `json:"from,omitempty"`
	Summary  ProfitSummary `json:"summary"`
	Lines    []ProfitLine  `json:"list"`
}

// ErrInvalidPeriod indicates an unknown profit period.
var ErrInvalidPeriod = shared.Validation("reports: period must be all, month or year")

func buildAccounting(tenantID int64, accounts []AccountBalance, stock decimal.Decimal, totals ContactTotals) Accounting {
	cash := decimal.Zero
	for _, a := range accounts {
		cash = cash.Add(a.Balance)
	}
	if accounts == nil {
		accounts = []AccountBalance{}
	}
	return Accounting{
		TenantID:   tenantID,
		Cash:       cash,
		Stock:      stock,
		Receivable: totals.Receivable,
		Payable:    totals.Payable,
		NetWorth:   cash.Add(stock).Add(totals.Receivable).Sub(totals.Payable.Abs()),
		Accounts:   accounts,
	}
}

func buildProfit(tenantID int64, period Period, from time.Time, lines []ProfitLine) Profit {
	out := Profit{TenantID: tenantID, Period: period, Lines: make([]ProfitLine, 0, len(lines))}
	if !from.IsZero() {
		out.From = &from
	}
	sales, cost := decimal.Zero, decimal.Zero
	for _, l := range lines {
		l.Profit = l.Price.Sub(l.Cost)
		sales = sales.Add(l.Price)
		cost = cost.Add(l.Cost)
		out.Lines = append(out.Lines, l)
	}
	out.Summary = ProfitSummary{Sales: sales, Cost: cost, Profit: sales.Sub(cost), Count: len(lines)}
	return out
}
