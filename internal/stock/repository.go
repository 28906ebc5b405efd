package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/platform/db"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

// Repository serves stock listings from PostgreSQL.
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

// NewTxRepository binds stock writes to q.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

const (
	productColumns = `id, tenant_id, zencode, name, category, cpu, gpu, ram, disk, note, cost_price, peer_price, retail_price, sold_price, status, created_at`
	itemColumns    = `id, tenant_id, product_id, serial, real_cost, status, supplier_id, sold_price, received_at, updated_at`
)

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var category, status string
	var sold decimal.NullDecimal
	err := row.Scan(&p.ID, &p.TenantID, &p.Zencode, &p.Name, &category, &p.CPU, &p.GPU, &p.RAM, &p.Disk, &p.Note,
		&p.CostPrice, &p.PeerPrice, &p.RetailPrice, &sold, &status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}
	p.Category = Category(category)
	p.Status = ProductStatus(status)
	p.SoldPrice = fromNull(sold)
	return p, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	var status string
	var sold decimal.NullDecimal
	err := row.Scan(&it.ID, &it.TenantID, &it.ProductID, &it.Serial, &it.RealCost, &status, &it.SupplierID, &sold, &it.ReceivedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, err
	}
	it.Status = ItemStatus(status)
	it.SoldPrice = fromNull(sold)
	return it, nil
}

func fromNull(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func toNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// ClaimSequence increments the per-tenant/scope/day counter. The upsert keeps
// the counter row locked until commit so concurrent receipts serialise.
func (r *txRepository) ClaimSequence(ctx context.Context, tenantID int64, scope string, day time.Time) (int64, error) {
	var value int64
	err := r.q.QueryRow(ctx, `INSERT INTO product_code_sequences (tenant_id, scope, day, last_value)
VALUES ($1,$2,$3::date,1)
ON CONFLICT (tenant_id, scope, day) DO UPDATE SET last_value = product_code_sequences.last_value + 1
RETURNING last_value`, tenantID, scope, day.Format(time.DateOnly)).Scan(&value)
	return value, err
}

func (r *txRepository) ZencodeExists(ctx context.Context, tenantID int64, zencode string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE tenant_id=$1 AND zencode=$2)`, tenantID, zencode).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertProduct(ctx context.Context, p Product) (Product, error) {
	created, err := scanProduct(r.q.QueryRow(ctx, `INSERT INTO products (tenant_id, zencode, name, category, cpu, gpu, ram, disk, note, cost_price, peer_price, retail_price, sold_price, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW()) RETURNING `+productColumns,
		p.TenantID, p.Zencode, p.Name, string(p.Category), p.CPU, p.GPU, p.RAM, p.Disk, p.Note,
		p.CostPrice, p.PeerPrice, p.RetailPrice, toNull(p.SoldPrice), string(p.Status)))
	if db.IsUniqueViolation(err, "products_tenant_zencode_key") {
		return Product{}, ErrDuplicateZencode
	}
	return created, err
}

func (r *txRepository) GetProduct(ctx context.Context, tenantID, id int64) (Product, error) {
	return scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, tenantID, id int64) (Product, error) {
	return scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

// UpdateProduct writes the mutable product fields. Zencode never changes.
func (r *txRepository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.q.Exec(ctx, `UPDATE products SET status=$3, sold_price=$4, cost_price=$5 WHERE tenant_id=$1 AND id=$2`,
		p.TenantID, p.ID, string(p.Status), toNull(p.SoldPrice), p.CostPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *txRepository) SerialExists(ctx context.Context, tenantID int64, serial string, excludeItemID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_items WHERE tenant_id=$1 AND serial=$2 AND id <> $3)`, tenantID, serial, excludeItemID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertItem(ctx context.Context, it Item) (Item, error) {
	created, err := scanItem(r.q.QueryRow(ctx, `INSERT INTO stock_items (tenant_id, product_id, serial, real_cost, status, supplier_id, sold_price, received_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING `+itemColumns,
		it.TenantID, it.ProductID, it.Serial, it.RealCost, string(it.Status), db.NullIntPtr(it.SupplierID), toNull(it.SoldPrice)))
	if db.IsUniqueViolation(err, "stock_items_tenant_serial_key") {
		return Item{}, ErrDuplicateSerial
	}
	return created, err
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, tenantID, id int64) (Item, error) {
	return scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
}

// LockAvailableItems returns up to limit IN_STOCK units in insertion order,
// skipping units another transaction has already locked.
func (r *txRepository) LockAvailableItems(ctx context.Context, tenantID, productID int64, limit int) ([]Item, error) {
	rows, err := r.q.Query(ctx, `SELECT `+itemColumns+` FROM stock_items
WHERE tenant_id=$1 AND product_id=$2 AND status='IN_STOCK'
ORDER BY id
LIMIT $3
FOR UPDATE SKIP LOCKED`, tenantID, productID, limit)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanItem)
}

func (r *txRepository) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.q.Exec(ctx, `UPDATE stock_items SET serial=$3, real_cost=$4, status=$5, sold_price=$6, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`,
		it.TenantID, it.ID, it.Serial, it.RealCost, string(it.Status), toNull(it.SoldPrice))
	if db.IsUniqueViolation(err, "stock_items_tenant_serial_key") {
		return ErrDuplicateSerial
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) ItemStatusCounts(ctx context.Context, tenantID, productID int64) (map[ItemStatus]int, error) {
	rows, err := r.q.Query(ctx, `SELECT status, COUNT(*) FROM stock_items WHERE tenant_id=$1 AND product_id=$2 GROUP BY status`, tenantID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[ItemStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[ItemStatus(status)] = n
	}
	return counts, rows.Err()
}

// ListProducts returns products visible in scope, newest first.
func (r *Repository) ListProducts(ctx context.Context, scope tenancy.Scope, filter ProductFilter, page shared.Page) ([]Product, error) {
	f := db.ScopeFilter(scope.All, scope.TenantID)
	if filter.Status != "" {
		f.Where(`status=?`, string(filter.Status))
	}
	if filter.Category != "" {
		f.Where(`category=?`, string(filter.Category))
	}
	if filter.Search != "" {
		f.Where(`(name ILIKE ? OR zencode ILIKE ? OR note ILIKE ?)`, db.Contains(filter.Search))
	}
	where, args := f.SQL("created_at DESC, id DESC", page.Limit, page.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products`+where, args...)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanProduct)
}

// ListItems returns items visible in scope in insertion order.
func (r *Repository) ListItems(ctx context.Context, scope tenancy.Scope, filter ItemFilter, page shared.Page) ([]Item, error) {
	f := db.ScopeFilter(scope.All, scope.TenantID)
	if filter.ProductID != 0 {
		f.Where(`product_id=?`, filter.ProductID)
	}
	if filter.Status != "" {
		f.Where(`status=?`, string(filter.Status))
	}
	if filter.Serial != "" {
		f.Where(`serial ILIKE ?`, db.Contains(filter.Serial))
	}
	where, args := f.SQL("id", page.Limit, page.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items`+where, args...)
	if err != nil {
		return nil, err
	}
	return db.Collect(rows, scanItem)
}

// CountStalePending counts PENDING items received before cutoff, per tenant.
func (r *Repository) CountStalePending(ctx context.Context, cutoff time.Time) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id, COUNT(*) FROM stock_items
WHERE status='PENDING' AND received_at < $1
GROUP BY tenant_id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[int64]int)
	for rows.Next() {
		var tenantID int64
		var n int
		if err := rows.Scan(&tenantID, &n); err != nil {
			return nil, err
		}
		counts[tenantID] = n
	}
	return counts, rows.Err()
}
