package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/shared"
)

// TxRepository exposes the ledger writes used inside a posting transaction.
// Adjust methods apply the delta atomically and return the updated row; they
// fail with the matching not-found error when the id is outside the tenant.
type TxRepository interface {
	GetAccount(ctx context.Context, tenantID, id int64) (Account, error)
	DefaultAccount(ctx context.Context, tenantID int64) (Account, error)
	GetContact(ctx context.Context, tenantID, id int64) (Contact, error)
	AdjustAccountBalance(ctx context.Context, tenantID, id int64, delta decimal.Decimal) (Account, error)
	AdjustContactBalance(ctx context.Context, tenantID, id int64, delta decimal.Decimal) (Contact, error)
	InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error)
}

// Entry is one ledger posting: a transaction record plus the signed balance
// movements it causes.
type Entry struct {
	TenantID     int64
	Type         TransactionType
	Amount       decimal.Decimal
	AccountID    *int64
	AccountDelta decimal.Decimal
	ContactID    *int64
	ContactDelta decimal.Decimal
	ProductID    *int64
	OperatorID   *int64
	Remark       string
}

// Result reports the rows touched by Apply.
type Result struct {
	Transaction Transaction
	Account     *Account
	Contact     *Contact
}

// Apply adjusts the referenced balances and records the transaction. It must
// run inside the caller's transaction.
func Apply(ctx context.Context, tx TxRepository, e Entry) (Result, error) {
	if !e.Type.Valid() {
		return Result{}, ErrInvalidType
	}
	if !ValidAmount(e.Amount) {
		return Result{}, ErrInvalidAmount
	}
	if (!e.AccountDelta.IsZero() && e.AccountID == nil) || (!e.ContactDelta.IsZero() && e.ContactID == nil) {
		return Result{}, ErrUnboundDelta
	}

	var res Result
	if e.AccountID != nil {
		acct, err := tx.AdjustAccountBalance(ctx, e.TenantID, *e.AccountID, e.AccountDelta)
		if err != nil {
			return Result{}, fmt.Errorf("ledger: adjust account %d: %w", *e.AccountID, err)
		}
		if !shared.InAmountRange(acct.CurrentBalance) {
			return Result{}, ErrBalanceOutOfRange
		}
		res.Account = &acct
	}
	if e.ContactID != nil {
		contact, err := tx.AdjustContactBalance(ctx, e.TenantID, *e.ContactID, e.ContactDelta)
		if err != nil {
			return Result{}, fmt.Errorf("ledger: adjust contact %d: %w", *e.ContactID, err)
		}
		if !shared.InAmountRange(contact.Balance) {
			return Result{}, ErrBalanceOutOfRange
		}
		res.Contact = &contact
	}

	txn, err := tx.InsertTransaction(ctx, Transaction{
		TenantID:   e.TenantID,
		Type:       e.Type,
		Amount:     e.Amount,
		ContactID:  e.ContactID,
		ProductID:  e.ProductID,
		AccountID:  e.AccountID,
		OperatorID: e.OperatorID,
		Remark:     e.Remark,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ledger: insert transaction: %w", err)
	}
	res.Transaction = txn
	return res, nil
}

// ResolveAccount returns the explicit account, or the tenant's first account
// when id is nil.
func ResolveAccount(ctx context.Context, tx TxRepository, tenantID int64, id *int64) (Account, error) {
	if id != nil {
		return tx.GetAccount(ctx, tenantID, *id)
	}
	return tx.DefaultAccount(ctx, tenantID)
}
