package posting

import (
	"context"
	"fmt"
	"strings"

	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/rental"
)

// SettlementPolicy decides the cash leg of a rental settlement. It returns the
// ledger entries to post in addition to the zero-amount return record.
type SettlementPolicy interface {
	Name() string
	Legs(ctx context.Context, tx ledger.TxRepository, c rental.Contract, accountID *int64) ([]ledger.Entry, error)
}

// NoCashSettlement moves no cash on settlement.
type NoCashSettlement struct{}

// Name implements SettlementPolicy.
func (NoCashSettlement) Name() string { return "none" }

// Legs implements SettlementPolicy.
func (NoCashSettlement) Legs(context.Context, ledger.TxRepository, rental.Contract, *int64) ([]ledger.Entry, error) {
	return nil, nil
}

// RefundDeposit pays the deposit back to the customer from the given account,
// or the tenant's first account.
type RefundDeposit struct{}

// Name implements SettlementPolicy.
func (RefundDeposit) Name() string { return "refund_deposit" }

// Legs implements SettlementPolicy.
func (RefundDeposit) Legs(ctx context.Context, tx ledger.TxRepository, c rental.Contract, accountID *int64) ([]ledger.Entry, error) {
	if !c.Deposit.IsPositive() {
		return nil, nil
	}
	acct, err := ledger.ResolveAccount(ctx, tx, c.TenantID, accountID)
	if err != nil {
		return nil, err
	}
	contactID, productID := c.ContactID, c.ProductID
	return []ledger.Entry{{
		TenantID:     c.TenantID,
		Type:         ledger.TypeOther,
		Amount:       c.Deposit,
		AccountID:    &acct.ID,
		AccountDelta: c.Deposit.Neg(),
		ContactID:    &contactID,
		ProductID:    &productID,
		Remark:       fmt.Sprintf("deposit refund: contract %d", c.ID),
	}}, nil
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (SettlementPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return NoCashSettlement{}, nil
	case "refund_deposit":
		return RefundDeposit{}, nil
	default:
		return nil, fmt.Errorf("posting: unknown settlement policy %q", name)
	}
}
