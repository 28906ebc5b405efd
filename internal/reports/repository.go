package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/platform/db"
)

// Repository runs the projection queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AccountBalances lists the tenant's capital accounts.
func (r *Repository) AccountBalances(ctx context.Context, tenantID int64) ([]AccountBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, current_balance FROM capital_accounts WHERE tenant_id=$1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, func(row pgx.Row) (AccountBalance, error) {
		var a AccountBalance
		err := row.Scan(&a.ID, &a.Name, &a.Balance)
		return a, err
	})
}

// StockValue sums real_cost of IN_STOCK units. Product cost fields are
// catalogue hints and never feed the valuation.
func (r *Repository) StockValue(ctx context.Context, tenantID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(real_cost), 0) FROM stock_items WHERE tenant_id=$1 AND status='IN_STOCK'`, tenantID).Scan(&total)
	return total, err
}

// ContactTotals sums positive and negative contact balances.
func (r *Repository) ContactTotals(ctx context.Context, tenantID int64) (ContactTotals, error) {
	var t ContactTotals
	err := r.pool.QueryRow(ctx, `SELECT
  COALESCE(SUM(balance) FILTER (WHERE balance > 0), 0),
  COALESCE(SUM(balance) FILTER (WHERE balance < 0), 0)
FROM contacts WHERE tenant_id=$1`, tenantID).Scan(&t.Receivable, &t.Payable)
	return t, err
}

// SoldItems lists units sold since from (all time when zero), newest first.
func (r *Repository) SoldItems(ctx context.Context, tenantID int64, from time.Time) ([]ProfitLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, p.zencode, p.name, i.serial, i.updated_at, COALESCE(i.sold_price, 0), i.real_cost
FROM stock_items i JOIN products p ON p.id = i.product_id AND p.tenant_id = i.tenant_id
WHERE i.tenant_id=$1 AND i.status='SOLD' AND ($2::timestamptz IS NULL OR i.updated_at >= $2)
ORDER BY i.updated_at DESC, i.id DESC`, tenantID, db.NullTime(from))
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, func(row pgx.Row) (ProfitLine, error) {
		var l ProfitLine
		err := row.Scan(&l.ItemID, &l.Zencode, &l.Name, &l.Serial, &l.SoldAt, &l.Price, &l.Cost)
		return l, err
	})
}
