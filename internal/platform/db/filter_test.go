package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterNumbersPlaceholders(t *testing.T) {
	sql, args := ScopeFilter(false, 4).
		Where(`status=?`, "PENDING").
		Where(`(name ILIKE ? OR note ILIKE ?)`, Contains("rtx")).
		Raw(`balance > 0`).
		SQL("id", 20, 40)
	require.Equal(t, ` WHERE ($1::bool OR tenant_id=$2) AND status=$3 AND (name ILIKE $4 OR note ILIKE $4) AND balance > 0 ORDER BY id LIMIT $5 OFFSET $6`, sql)
	require.Equal(t, []any{false, int64(4), "PENDING", "%rtx%", 20, 40}, args)
}

func TestContainsEscapesWildcards(t *testing.T) {
	require.Equal(t, `%100\%%`, Contains("100%"))
	require.Equal(t, `%SN\_01%`, Contains("SN_01"))
	require.Equal(t, `%a\\b%`, Contains(`a\b`))
}
