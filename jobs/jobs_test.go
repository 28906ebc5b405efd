package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/corezen/corezen/internal/jobs"
	"github.com/corezen/corezen/internal/posting"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
)

type fakeWarmer struct {
	tenants []int64
	err     error
}

func (f *fakeWarmer) Warm(_ context.Context, tenantID int64) error {
	f.tenants = append(f.tenants, tenantID)
	return f.err
}

func TestReportsWarmJob(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewReportsWarmJob(warmer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewReportsWarmTask(4)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{4}, warmer.tenants)

	warmer.err = errors.New("redis down")
	require.Error(t, job.Handle(context.Background(), task))

	bad := asynq.NewTask(TaskReportsWarm, []byte(`{"tenant_id":0}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	_, err = NewReportsWarmTask(0)
	require.Error(t, err)
}

// stockRepo keeps items in memory and groups them the way the SQL does.
type stockRepo struct {
	items  []stock.Item
	cutoff time.Time
}

func (r *stockRepo) ListProducts(context.Context, tenancy.Scope, stock.ProductFilter, shared.Page) ([]stock.Product, error) {
	return nil, nil
}

func (r *stockRepo) ListItems(context.Context, tenancy.Scope, stock.ItemFilter, shared.Page) ([]stock.Item, error) {
	return r.items, nil
}

func (r *stockRepo) CountStalePending(_ context.Context, cutoff time.Time) (map[int64]int, error) {
	r.cutoff = cutoff
	counts := make(map[int64]int)
	for _, it := range r.items {
		if it.Status == stock.ItemPending && it.ReceivedAt.Before(cutoff) {
			counts[it.TenantID]++
		}
	}
	return counts, nil
}

func pendingItems(tenantID int64, n int, receivedAt time.Time) []stock.Item {
	out := make([]stock.Item, n)
	for i := range out {
		out[i] = stock.Item{TenantID: tenantID, Status: stock.ItemPending, ReceivedAt: receivedAt}
	}
	return out
}

func staleGauge(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "corezen_stale_pending_items" {
			continue
		}
		for _, m := range mf.GetMetric() {
			out[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
	}
	return out
}

func TestPendingSweepCountsEveryTenant(t *testing.T) {
	reg := prometheus.NewRegistry()
	old := time.Now().Add(-96 * time.Hour)
	repo := &stockRepo{}
	repo.items = append(repo.items, pendingItems(1, 550, old)...)
	repo.items = append(repo.items, pendingItems(2, 50, old)...)
	repo.items = append(repo.items, pendingItems(3, 5, time.Now())...)
	repo.items = append(repo.items, stock.Item{TenantID: 3, Status: stock.ItemInStock, ReceivedAt: old})
	job := NewPendingSweepJob(stock.NewService(repo), 48*time.Hour, nil, jobmetrics.NewMetrics(reg))

	task, err := NewPendingSweepTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.WithinDuration(t, time.Now().Add(-48*time.Hour), repo.cutoff, time.Minute)
	require.Equal(t, map[string]float64{"1": 550, "2": 50}, staleGauge(t, reg))

	// tenants that caught up lose their series
	repo.items = pendingItems(2, 1, old)
	task, err = NewPendingSweepTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.WithinDuration(t, time.Now().Add(-time.Hour), repo.cutoff, time.Minute)
	require.Equal(t, map[string]float64{"2": 1}, staleGauge(t, reg))

	repo.items = nil
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, staleGauge(t, reg))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, f.err
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientPostedEnqueuesWarm(t *testing.T) {
	q := &fakeEnqueuer{}
	c := &Client{client: q}

	require.NoError(t, c.Posted(context.Background(), 9, posting.EventSell))
	require.Len(t, q.tasks, 1)
	require.Equal(t, TaskReportsWarm, q.tasks[0].Type())
	var payload ReportsWarmPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &payload))
	require.Equal(t, int64(9), payload.TenantID)

	q.err = asynq.ErrDuplicateTask
	require.NoError(t, c.Posted(context.Background(), 9, posting.EventReceive))

	q.err = errors.New("redis down")
	require.Error(t, c.Posted(context.Background(), 9, posting.EventReceive))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func TestHealthEndpoint(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	rr := serve(NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, queueHealth{Queue: QueueDefault, Pending: 3, Retry: 1}, body)

	rr = serve(NewHandler(fakeInspector{err: errors.New("no redis")}, nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	rr = serve(NewHandler(nil, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 without inspector, got %d", rr.Code)
	}
}

type fakeCleaner struct {
	olderThan time.Duration
}

func (f *fakeCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 7, nil
}

func TestIdempotencyCleanupJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	cleaner := &fakeCleaner{}
	job := &IdempotencyCleanupJob{Store: cleaner, Retention: 24 * time.Hour, Metrics: jobmetrics.NewMetrics(reg)}

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 24*time.Hour, cleaner.olderThan)

	task, err := NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, cleaner.olderThan)

	job.Retention = 0
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)), asynq.SkipRetry)

	// success and skipped runs are separate series
	n, err := testutil.GatherAndCount(reg, "corezen_jobs_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestNewWorkerRejectsUnhandledSchedule(t *testing.T) {
	noop := func(context.Context, *asynq.Task) error { return nil }
	sweep, err := NewPendingSweepTask(time.Hour)
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{})
	require.Error(t, err)

	_, err = NewWorker(WorkerConfig{
		Handlers:  map[string]asynq.HandlerFunc{TaskReportsWarm: noop},
		Schedules: []Schedule{{Spec: "0 * * * *", Task: sweep}},
	})
	require.ErrorContains(t, err, TaskStockPendingSweep)

	_, err = NewWorker(WorkerConfig{
		Handlers:  map[string]asynq.HandlerFunc{TaskStockPendingSweep: noop},
		Schedules: []Schedule{{Spec: "", Task: sweep}},
	})
	require.Error(t, err)
}
