package shared

import "github.com/shopspring/decimal"

// MaxAmount is the largest value a NUMERIC(14,2) money column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// ValidAmount reports whether d is a storable non-negative amount with at
// most two decimals.
func ValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2)) && d.LessThanOrEqual(MaxAmount)
}

// InAmountRange reports whether a signed balance fits a money column.
func InAmountRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxAmount)
}
