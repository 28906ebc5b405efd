package tenancy

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corezen/corezen/internal/platform/db"
)

// Repository persists tenants and staff in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes tenant lookups inside a posting transaction.
type TxRepository interface {
	Tenant(ctx context.Context, id int64) (Tenant, error)
}

type txRepository struct {
	q db.Querier
}

// NewTxRepository binds tenant queries to q.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

const tenantColumns = `id, code, name, is_active, account_limit, created_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.IsActive, &t.AccountLimit, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrTenantNotFound
	}
	return t, err
}

// Tenant takes a share lock so the tenant cannot be disabled mid-posting.
func (r *txRepository) Tenant(ctx context.Context, id int64) (Tenant, error) {
	return scanTenant(r.q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id=$1 FOR SHARE`, id))
}

// GetTenant loads a tenant by id.
func (r *Repository) GetTenant(ctx context.Context, id int64) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id=$1`, id))
}

// GetStaff loads a staff member by id.
func (r *Repository) GetStaff(ctx context.Context, id int64) (Staff, error) {
	var s Staff
	var role string
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, username, role, COALESCE(initials, ''), is_superuser, is_active, api_key_hash, created_at
FROM staff WHERE id=$1`, id).Scan(&s.ID, &s.TenantID, &s.Username, &role, &s.Initials, &s.Superuser, &s.IsActive, &s.APIKeyHash, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Staff{}, ErrStaffNotFound
	}
	if err != nil {
		return Staff{}, err
	}
	s.Role = Role(role)
	return s, nil
}

// InsertStaff persists a staff member and returns its id.
func (r *Repository) InsertStaff(ctx context.Context, s Staff) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO staff (tenant_id, username, role, initials, is_superuser, is_active, api_key_hash, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`, s.TenantID, s.Username, string(s.Role), db.NullString(s.Initials), s.Superuser, s.IsActive, s.APIKeyHash).Scan(&id)
	if db.IsUniqueViolation(err, "staff_tenant_username_key") {
		return 0, ErrDuplicateUsername
	}
	return id, err
}
