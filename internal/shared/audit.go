package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const insertAuditSQL = `INSERT INTO audit_logs (tenant_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`

// AuditLog is one row of audit_logs. Ledger events are audited by their
// Transaction rows; this log covers the remaining mutations such as staff
// creation, account creation and serial confirmation.
type AuditLog struct {
	TenantID int64
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Validate reports whether the entry identifies what was changed and by whom.
func (a AuditLog) Validate() error {
	switch {
	case a.TenantID <= 0:
		return Validation("audit log requires tenant")
	case a.Action == "" || a.Entity == "" || a.EntityID == "":
		return Validation("audit log requires action/entity/entity_id")
	}
	return nil
}

// args returns the insert parameters in column order. A zero actor (system
// writes such as seeding) and a zero timestamp are stored as NULL / NOW().
func (a AuditLog) args() ([]any, error) {
	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return nil, fmt.Errorf("audit meta: %w", err)
	}
	var actor, at any
	if a.ActorID != 0 {
		actor = a.ActorID
	}
	if !a.At.IsZero() {
		at = a.At.UTC()
	}
	return []any{a.TenantID, actor, a.Action, a.Entity, a.EntityID, meta, at}, nil
}

// AuditLogger records entries outside of a posting transaction.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry on its own connection.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	return WriteAudit(ctx, l.pool, log)
}

// WriteAudit persists the entry through q, typically the caller's transaction
// so the audit row commits or rolls back with the change it describes.
func WriteAudit(ctx context.Context, q Execer, log AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	args, err := log.args()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, insertAuditSQL, args...)
	return err
}
