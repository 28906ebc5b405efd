package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corezen/corezen/internal/posting"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/corezen")
	t.Setenv("SETTLEMENT_POLICY", "refund_deposit")
	t.Setenv("PENDING_SERIAL_MAX_AGE", "24h")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 24*time.Hour, cfg.PendingSerialMaxAge)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.IsType(t, posting.RefundDeposit{}, cfg.Settlement())
	require.Equal(t, "127.0.0.1:6379", cfg.Redis().Addr)
	require.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	require.Equal(t, "0 * * * *", cfg.PendingSweepCron)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SETTLEMENT_POLICY", "keep_everything")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "SETTLEMENT_POLICY")

	t.Setenv("SETTLEMENT_POLICY", "none")
	t.Setenv("LOG_LEVEL", "chatty")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "LOG_LEVEL")

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.Int("n", 1))
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	newLogger(nil, &buf).Info("plain")
	require.Contains(t, buf.String(), "msg=plain")
}
