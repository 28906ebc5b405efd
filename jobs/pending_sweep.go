package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/corezen/corezen/internal/jobs"
)

// StaleCounter counts PENDING items older than maxAge, per tenant.
type StaleCounter interface {
	StalePendingCounts(ctx context.Context, maxAge time.Duration) (map[int64]int, error)
}

// PendingSweepJob publishes how many received units still lack a serial.
// Nothing is mutated: PENDING units only leave that state through a
// confirm-serial posting or a write-off.
type PendingSweepJob struct {
	Stock   StaleCounter
	MaxAge  time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPendingSweepJob wires dependencies for the sweep handler.
func NewPendingSweepJob(counter StaleCounter, maxAge time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *PendingSweepJob {
	return &PendingSweepJob{Stock: counter, MaxAge: maxAge, Logger: logger, Metrics: metrics}
}

// Handle processes TaskStockPendingSweep tasks.
func (j *PendingSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stock == nil {
		return errors.New("pending sweep: handler not configured")
	}
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskStockPendingSweep)
	var payload PendingSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
	}
	maxAge := payload.MaxAge(j.MaxAge)
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	logger := loggerFor(j.Logger, TaskStockPendingSweep)

	counts, err := j.Stock.StalePendingCounts(ctx, maxAge)
	if err != nil {
		logger.Error("count stale pending items", slog.Any("error", err))
		return tracker.End(err)
	}

	total := 0
	metrics.ResetStalePending()
	for tenantID, n := range counts {
		total += n
		metrics.SetStalePending(tenantID, n)
		logger.Warn("items awaiting serial", slog.Int64("tenant_id", tenantID), slog.Int("count", n), slog.Duration("max_age", maxAge))
	}
	tracker.Processed(total)
	logger.Info("pending sweep completed", slog.Int("items", total), slog.Int("tenants", len(counts)))
	return tracker.End(nil)
}
