package rental

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

// TxRepository exposes contract writes used inside a posting transaction.
type TxRepository interface {
	InsertContract(ctx context.Context, c Contract) (Contract, error)
	GetContractForUpdate(ctx context.Context, tenantID, id int64) (Contract, error)
	ActiveContractForItem(ctx context.Context, tenantID, itemID int64) (Contract, error)
	CloseContract(ctx context.Context, c Contract) error
}

// Repository serves contract listings from PostgreSQL.
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

// NewTxRepository binds contract writes to q.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

const contractColumns = `id, tenant_id, contact_id, product_id, item_id, operator_id, start_date, duration, end_date,
deposit_amount, rent_price, depreciation_monthly, total_amount, paid_amount, expected_profit, return_value, is_active, created_at`

func scanContract(row pgx.Row) (Contract, error) {
	var c Contract
	var ret decimal.NullDecimal
	err := row.Scan(&c.ID, &c.TenantID, &c.ContactID, &c.ProductID, &c.ItemID, &c.OperatorID, &c.StartDate, &c.Duration, &c.EndDate,
		&c.Deposit, &c.RentPrice, &c.DepreciationMonthly, &c.TotalAmount, &c.PaidAmount, &c.ExpectedProfit, &ret, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contract{}, ErrContractNotFound
	}
	if err != nil {
		return Contract{}, err
	}
	if ret.Valid {
		v := ret.Decimal
		c.ReturnValue = &v
	}
	return c, nil
}

func (r *txRepository) InsertContract(ctx context.Context, c Contract) (Contract, error) {
	created, err := scanContract(r.q.QueryRow(ctx, `INSERT INTO rental_contracts (tenant_id, contact_id, product_id, item_id, operator_id, start_date, duration,
deposit_amount, rent_price, depreciation_monthly, total_amount, paid_amount, expected_profit, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,TRUE,NOW()) RETURNING `+contractColumns,
		c.TenantID, c.ContactID, c.ProductID, c.ItemID, db.NullIntPtr(c.OperatorID), c.StartDate, c.Duration,
		c.Deposit, c.RentPrice, c.DepreciationMonthly, c.TotalAmount, c.PaidAmount, c.ExpectedProfit))
	if db.IsUniqueViolation(err, "rental_contracts_active_item_key") {
		return Contract{}, ErrItemAlreadyRented
	}
	return created, err
}

func (r *txRepository) GetContractForUpdate(ctx context.Context, tenantID, id int64) (Contract, error) {
	return scanContract(r.q.QueryRow(ctx, `SELECT `+contractColumns+` FROM rental_contracts WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

// ActiveContractForItem locks the item's active contract, or returns
// ErrContractNotFound.
func (r *txRepository) ActiveContractForItem(ctx context.Context, tenantID, itemID int64) (Contract, error) {
	return scanContract(r.q.QueryRow(ctx, `SELECT `+contractColumns+` FROM rental_contracts WHERE tenant_id=$1 AND item_id=$2 AND is_active FOR UPDATE`, tenantID, itemID))
}

func (r *txRepository) CloseContract(ctx context.Context, c Contract) error {
	var ret decimal.NullDecimal
	if c.ReturnValue != nil {
		ret = decimal.NullDecimal{Decimal: *c.ReturnValue, Valid: true}
	}
	tag, err := r.q.Exec(ctx, `UPDATE rental_contracts SET is_active=FALSE, end_date=$3, return_value=$4 WHERE tenant_id=$1 AND id=$2 AND is_active`,
		c.TenantID, c.ID, c.EndDate, ret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotActive
	}
	return nil
}

// ListContracts returns contracts visible in scope, newest first.
func (r *Repository) ListContracts(ctx context.Context, scope tenancy.Scope, filter Filter, page shared.Page) ([]Contract, error) {
	f := db.ScopeFilter(scope.All, scope.TenantID)
	if filter.Active != nil {
		f.Where(`is_active=?`, *filter.Active)
	}
	if filter.ContactID != 0 {
		f.Where(`contact_id=?`, filter.ContactID)
	}
	if filter.ItemID != 0 {
		f.Where(`item_id=?`, filter.ItemID)
	}
	where, args := f.SQL("id DESC", page.Limit, page.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+contractColumns+` FROM rental_contracts`+where, args...)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanContract)
}
