package rental

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewContractComputesTotals(t *testing.T) {
	start := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	c, err := NewContract(Terms{
		TenantID:            1,
		ContactID:           2,
		ProductID:           3,
		ItemID:              4,
		StartDate:           start,
		Duration:            6,
		Deposit:             decimal.NewFromInt(300),
		RentPrice:           decimal.RequireFromString("120.50"),
		DepreciationMonthly: decimal.NewFromInt(40),
	})
	require.NoError(t, err)
	require.True(t, c.IsActive)
	require.True(t, c.TotalAmount.Equal(decimal.RequireFromString("723")))
	require.True(t, c.ExpectedProfit.Equal(decimal.RequireFromString("483")))
	require.True(t, c.PaidAmount.IsZero())
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), c.StartDate)
	require.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), c.ScheduledEnd())
}

func TestNewContractValidation(t *testing.T) {
	base := Terms{StartDate: time.Now(), Duration: 1, RentPrice: decimal.NewFromInt(10)}

	bad := base
	bad.Duration = 0
	_, err := NewContract(bad)
	require.ErrorIs(t, err, ErrInvalidDuration)

	bad = base
	bad.Deposit = decimal.NewFromInt(-1)
	_, err = NewContract(bad)
	require.ErrorIs(t, err, ErrInvalidAmount)

	// each amount fits a column but the contract total does not
	bad = base
	bad.Duration = 12
	bad.RentPrice = decimal.RequireFromString("100000000000")
	_, err = NewContract(bad)
	require.ErrorIs(t, err, ErrInvalidAmount)

	bad = base
	bad.Deposit = decimal.RequireFromString("1000000000000")
	_, err = NewContract(bad)
	require.ErrorIs(t, err, ErrInvalidAmount)

	bad = base
	bad.StartDate = time.Time{}
	_, err = NewContract(bad)
	require.Error(t, err)
}

func TestCloseOnlyOnce(t *testing.T) {
	c, err := NewContract(Terms{StartDate: time.Now(), Duration: 2, RentPrice: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NoError(t, c.Close(time.Now(), decimal.NewFromInt(250)))
	require.False(t, c.IsActive)
	require.NotNil(t, c.EndDate)
	require.True(t, c.ReturnValue.Equal(decimal.NewFromInt(250)))
	require.ErrorIs(t, c.Close(time.Now(), decimal.NewFromInt(1)), ErrNotActive)
}
