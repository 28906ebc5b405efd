package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarm recomputes a tenant's report projections after a posting.
	TaskReportsWarm = "reports:warm"
	// TaskStockPendingSweep reports units still waiting for a serial number.
	TaskStockPendingSweep = "stock:pending-sweep"
)

// warmUniqueWindow collapses bursts of postings into one warm-up per tenant.
const warmUniqueWindow = 30 * time.Second

// ReportsWarmPayload names the tenant whose projections should be rebuilt.
type ReportsWarmPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// NewReportsWarmTask constructs a warm-up task for one tenant.
func NewReportsWarmTask(tenantID int64) (*asynq.Task, error) {
	if tenantID <= 0 {
		return nil, errors.New("jobs: warm task requires a tenant")
	}
	data, err := json.Marshal(ReportsWarmPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarm, data), nil
}

// PendingSweepPayload controls the stale PENDING sweep.
type PendingSweepPayload struct {
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}

// MaxAge returns the configured age or fallback when unset.
func (p PendingSweepPayload) MaxAge(fallback time.Duration) time.Duration {
	if p.MaxAgeSeconds <= 0 {
		return fallback
	}
	return time.Duration(p.MaxAgeSeconds) * time.Second
}

// NewPendingSweepTask constructs the sweep task scheduled by the worker cron.
func NewPendingSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(PendingSweepPayload{MaxAgeSeconds: int64(maxAge / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockPendingSweep, data), nil
}
