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

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Warmer precomputes report projections for a tenant.
type Warmer interface {
	Warm(ctx context.Context, tenantID int64) error
}

// ReportsWarmJob refills the report cache after postings invalidate it.
type ReportsWarmJob struct {
	Reports Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewReportsWarmJob wires dependencies for the warm-up handler.
func NewReportsWarmJob(reports Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmJob {
	return &ReportsWarmJob{Reports: reports, Logger: logger, Metrics: metrics, Timeout: 20 * time.Second}
}

// Handle processes TaskReportsWarm tasks.
func (j *ReportsWarmJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warm: handler not configured")
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskReportsWarm)
	var payload ReportsWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.TenantID <= 0 {
		return tracker.End(asynq.SkipRetry)
	}
	logger := loggerFor(j.Logger, TaskReportsWarm).With(slog.Int64("tenant_id", payload.TenantID))

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	if err := j.Reports.Warm(ctx, payload.TenantID); err != nil {
		logger.Error("warm reports", slog.Any("error", err))
		return tracker.End(err)
	}
	tracker.Processed(1)
	logger.Debug("reports warmed", slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

func loggerFor(logger *slog.Logger, job string) *slog.Logger {
	if logger != nil {
		return logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
