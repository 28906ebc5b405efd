package posting

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/platform/db"
	"github.com/corezen/corezen/internal/rental"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
)

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
	idem *shared.IdempotencyStore
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, idem: shared.NewIdempotencyStore(pool)}
}

// WithTx implements Store.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newPgTx(tx, r.idem))
	})
}

type (
	tenantTx = tenancy.TxRepository
	stockTx  = stock.TxRepository
	ledgerTx = ledger.TxRepository
	rentalTx = rental.TxRepository
)

// pgTx binds every domain repository to one pgx transaction.
type pgTx struct {
	tenantTx
	stockTx
	ledgerTx
	rentalTx
	tx   pgx.Tx
	idem *shared.IdempotencyStore
}

var _ Tx = (*pgTx)(nil)

func newPgTx(tx pgx.Tx, idem *shared.IdempotencyStore) *pgTx {
	return &pgTx{
		tenantTx: tenancy.NewTxRepository(tx),
		stockTx:  stock.NewTxRepository(tx),
		ledgerTx: ledger.NewTxRepository(tx),
		rentalTx: rental.NewTxRepository(tx),
		tx:       tx,
		idem:     idem,
	}
}

func (t *pgTx) ClaimIdempotencyKey(ctx context.Context, tenantID int64, key, module string) error {
	return t.idem.Claim(ctx, t.tx, tenantID, key, module)
}

func (t *pgTx) Audit(ctx context.Context, log shared.AuditLog) error {
	return shared.WriteAudit(ctx, t.tx, log)
}
