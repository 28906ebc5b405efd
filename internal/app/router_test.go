package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/corezen/corezen/internal/observability"
	"github.com/corezen/corezen/internal/reports"
	"github.com/corezen/corezen/internal/tenancy"
	"github.com/corezen/corezen/jobs"
)

type keyAuth map[string]tenancy.Actor

func (k keyAuth) Authenticate(_ context.Context, key string) (tenancy.Actor, error) {
	actor, ok := k[key]
	if !ok {
		return tenancy.Actor{}, tenancy.ErrUnauthenticated
	}
	return actor, nil
}

type emptyReports struct{}

func (emptyReports) AccountBalances(context.Context, int64) ([]reports.AccountBalance, error) {
	return nil, nil
}

func (emptyReports) StockValue(context.Context, int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (emptyReports) ContactTotals(context.Context, int64) (reports.ContactTotals, error) {
	return reports.ContactTotals{}, nil
}

func (emptyReports) SoldItems(context.Context, int64, time.Time) ([]reports.ProfitLine, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, cfg *Config, health map[string]Pinger) (http.Handler, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "debug"}, &logs)
	auth := tenancy.Middleware{Auth: keyAuth{
		"1.finance": {TenantID: 1, StaffID: 1, Role: tenancy.RoleFinance},
		"1.sales":   {TenantID: 1, StaffID: 2, Role: tenancy.RoleSales},
	}, Logger: logger}
	svc := reports.NewService(emptyReports{}, reports.NewCache(nil, time.Minute))
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Auth:           auth,
		Metrics:        observability.NewMetrics(),
		Health:         health,
		ReportsHandler: reports.NewHandler(logger, svc, auth),
		JobHandler:     jobs.NewHandler(nil, logger),
	}), &logs
}

func do(h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(tenancy.APIKeyHeader, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterAuthentication(t *testing.T) {
	router, logs := newTestRouter(t, &Config{RateLimitPerMinute: 100}, nil)

	if rr := do(router, http.MethodGet, "/api/reports/accounting", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rr.Code)
	}
	if rr := do(router, http.MethodGet, "/api/reports/accounting", "1.nope"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d", rr.Code)
	}
	if rr := do(router, http.MethodGet, "/api/reports/accounting", "1.sales"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for sales, got %d", rr.Code)
	}
	rr := do(router, http.MethodGet, "/api/reports/accounting", "1.finance")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Contains(t, logs.String(), `"msg":"http request"`)

	if rr := do(router, http.MethodGet, "/nowhere", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestRouterOperationalEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &Config{RateLimitPerMinute: 100}, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})

	rr := do(router, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	require.JSONEq(t, `{"status":"ok","postgres":"ok"}`, rr.Body.String())

	if rr := do(router, http.MethodGet, "/jobs/health", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from jobs health, got %d", rr.Code)
	}

	_ = do(router, http.MethodGet, "/api/reports/profit", "1.finance")
	rr = do(router, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `route="/api/reports/profit"`) {
		t.Fatalf("expected route label in metrics, got: %s", rr.Body.String())
	}
}

func TestHealthzDegraded(t *testing.T) {
	router, logs := newTestRouter(t, &Config{RateLimitPerMinute: 100}, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rr := do(router, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	require.JSONEq(t, `{"status":"degraded","redis":"down"}`, rr.Body.String())
	require.Contains(t, logs.String(), "health check failed")
}

func TestRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, &Config{RateLimitPerMinute: 2}, nil)
	for i := 0; i < 2; i++ {
		if rr := do(router, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	rr := do(router, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
