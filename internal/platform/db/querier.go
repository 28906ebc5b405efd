package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool so repositories can run
// inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// NullInt maps zero ids to SQL NULL.
func NullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

// NullIntPtr maps nil ids to SQL NULL.
func NullIntPtr(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

// NullTime maps zero times to SQL NULL.
func NullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// NullString maps empty strings to SQL NULL.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Collect scans every row with scan and closes rows.
func Collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		return scan(row)
	})
}
