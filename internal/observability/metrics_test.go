package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/corezen/corezen/internal/shared"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesRuntimeCollectors(t *testing.T) {
	body := scrape(t, NewMetrics())
	for _, want := range []string{"go_goroutines", "corezen_http_requests_in_flight 0"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in: %s", want, body)
		}
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "corezen_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "corezen_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObservePostingLabelsOutcome(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePosting("sell", nil, 10*time.Millisecond)
	metrics.ObservePosting("sell", shared.Conflict("stock: insufficient"), time.Millisecond)
	metrics.ObservePosting("rent_out", shared.Consistency(errors.New("db gone")), time.Millisecond)

	body := scrape(t, metrics)
	for _, want := range []string{
		`corezen_postings_total{event="sell",outcome="ok"} 1`,
		`corezen_postings_total{event="sell",outcome="conflict"} 1`,
		`corezen_postings_total{event="rent_out",outcome="consistency"} 1`,
		`corezen_posting_duration_seconds_count{event="sell"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in: %s", want, body)
		}
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		OutcomeOK:            nil,
		OutcomeValidation:    shared.NotFound("stock: item not found"),
		OutcomeConflict:      shared.Conflict("dup"),
		OutcomeAuthorization: shared.Forbidden("nope"),
		OutcomeConsistency:   errors.New("raw"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Fatalf("Outcome(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObservePosting("sell", nil, 0)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
