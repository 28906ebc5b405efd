package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/platform/db"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	q db.Querier
}

// NewTxRepository binds ledger writes to q.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

const (
	accountColumns     = `id, tenant_id, name, initial_balance, current_balance, created_at`
	contactColumns     = `id, tenant_id, name, phone, address, balance, created_at`
	transactionColumns = `id, tenant_id, tx_type, amount, contact_id, product_id, account_id, operator_id, remark, created_at`
)

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.InitialBalance, &a.CurrentBalance, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return a, err
}

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Address, &c.Balance, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return c, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var txType string
	err := row.Scan(&t.ID, &t.TenantID, &txType, &t.Amount, &t.ContactID, &t.ProductID, &t.AccountID, &t.OperatorID, &t.Remark, &t.CreatedAt)
	t.Type = TransactionType(txType)
	return t, err
}

func (r *txRepository) GetAccount(ctx context.Context, tenantID, id int64) (Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM capital_accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *txRepository) DefaultAccount(ctx context.Context, tenantID int64) (Account, error) {
	acct, err := scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM capital_accounts WHERE tenant_id=$1 ORDER BY id LIMIT 1`, tenantID))
	if errors.Is(err, ErrAccountNotFound) {
		return Account{}, ErrNoAccount
	}
	return acct, err
}

func (r *txRepository) GetContact(ctx context.Context, tenantID, id int64) (Contact, error) {
	return scanContact(r.q.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *txRepository) AdjustAccountBalance(ctx context.Context, tenantID, id int64, delta decimal.Decimal) (Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `UPDATE capital_accounts SET current_balance = current_balance + $3
WHERE tenant_id=$1 AND id=$2 RETURNING `+accountColumns, tenantID, id, delta))
}

func (r *txRepository) AdjustContactBalance(ctx context.Context, tenantID, id int64, delta decimal.Decimal) (Contact, error) {
	return scanContact(r.q.QueryRow(ctx, `UPDATE contacts SET balance = balance + $3
WHERE tenant_id=$1 AND id=$2 RETURNING `+contactColumns, tenantID, id, delta))
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	return scanTransaction(r.q.QueryRow(ctx, `INSERT INTO transactions (tenant_id, tx_type, amount, contact_id, product_id, account_id, operator_id, remark, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING `+transactionColumns,
		txn.TenantID, string(txn.Type), txn.Amount, db.NullIntPtr(txn.ContactID), db.NullIntPtr(txn.ProductID), db.NullIntPtr(txn.AccountID), db.NullIntPtr(txn.OperatorID), txn.Remark))
}

// CreateAccount inserts an account, enforcing the tenant's account limit under
// a lock on the tenant row.
func (r *Repository) CreateAccount(ctx context.Context, acct Account) (Account, error) {
	var created Account
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var limit, count int
		err := tx.QueryRow(ctx, `SELECT account_limit FROM tenants WHERE id=$1 FOR UPDATE`, acct.TenantID).Scan(&limit)
		if errors.Is(err, pgx.ErrNoRows) {
			return tenancy.ErrTenantNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM capital_accounts WHERE tenant_id=$1`, acct.TenantID).Scan(&count); err != nil {
			return err
		}
		if count >= limit {
			return ErrAccountLimit
		}
		created, err = scanAccount(tx.QueryRow(ctx, `INSERT INTO capital_accounts (tenant_id, name, initial_balance, current_balance, created_at)
VALUES ($1,$2,$3,$3,NOW()) RETURNING `+accountColumns, acct.TenantID, acct.Name, acct.InitialBalance))
		if db.IsUniqueViolation(err, "capital_accounts_tenant_name_key") {
			return ErrDuplicateAccount
		}
		return err
	})
	return created, err
}

// CreateContact inserts a contact with a zero balance.
func (r *Repository) CreateContact(ctx context.Context, c Contact) (Contact, error) {
	created, err := scanContact(r.pool.QueryRow(ctx, `INSERT INTO contacts (tenant_id, name, phone, address, balance, created_at)
VALUES ($1,$2,$3,$4,0,NOW()) RETURNING `+contactColumns, c.TenantID, c.Name, c.Phone, c.Address))
	if db.IsUniqueViolation(err, "contacts_tenant_name_key") {
		return Contact{}, ErrDuplicateContact
	}
	return created, err
}

// ListAccounts returns accounts visible in scope.
func (r *Repository) ListAccounts(ctx context.Context, scope tenancy.Scope) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM capital_accounts WHERE ($1::bool OR tenant_id=$2) ORDER BY tenant_id, id`, scope.All, scope.TenantID)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanAccount)
}

// ListContacts returns contacts visible in scope.
func (r *Repository) ListContacts(ctx context.Context, scope tenancy.Scope, filter ContactFilter, page shared.Page) ([]Contact, error) {
	f := db.ScopeFilter(scope.All, scope.TenantID)
	if filter.Search != "" {
		f.Where(`(name ILIKE ? OR phone ILIKE ?)`, db.Contains(filter.Search))
	}
	switch filter.Position {
	case PositionReceivable:
		f.Raw(`balance > 0`)
	case PositionPayable:
		f.Raw(`balance < 0`)
	case PositionSettled:
		f.Raw(`balance = 0`)
	}
	where, args := f.SQL("tenant_id, id", page.Limit, page.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+contactColumns+` FROM contacts`+where, args...)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanContact)
}

// ListTransactions returns transactions visible in scope, newest first.
func (r *Repository) ListTransactions(ctx context.Context, scope tenancy.Scope, filter TransactionFilter, page shared.Page) ([]Transaction, error) {
	f := db.ScopeFilter(scope.All, scope.TenantID)
	if filter.Type != "" {
		f.Where(`tx_type=?`, string(filter.Type))
	}
	if filter.ContactID != 0 {
		f.Where(`contact_id=?`, filter.ContactID)
	}
	if filter.AccountID != 0 {
		f.Where(`account_id=?`, filter.AccountID)
	}
	if filter.ProductID != 0 {
		f.Where(`product_id=?`, filter.ProductID)
	}
	if !filter.From.IsZero() {
		f.Where(`created_at >= ?`, filter.From)
	}
	if !filter.To.IsZero() {
		f.Where(`created_at < ?`, filter.To)
	}
	where, args := f.SQL("created_at DESC, id DESC", page.Limit, page.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions`+where, args...)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanTransaction)
}
