// Package jobmetrics instruments asynq task handlers.
package jobmetrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded on corezen_jobs_total.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	// StatusSkipped marks runs rejected with asynq.SkipRetry, e.g. bad payloads.
	StatusSkipped = "skipped"
)

// Metrics holds the job collectors.
type Metrics struct {
	runs         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	processed    *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
	stalePending *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
	items   int
}

// Track starts timing a run of job. Safe on a nil receiver.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// Processed adds n to the items the run handled.
func (t *Tracker) Processed(n int) {
	if t != nil && n > 0 {
		t.items += n
	}
}

// End records the outcome and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	status := StatusSuccess
	switch {
	case errors.Is(err, asynq.SkipRetry):
		status = StatusSkipped
	case err != nil:
		status = StatusFailure
		m.failures.WithLabelValues(t.job).Inc()
	default:
		m.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	}
	m.runs.WithLabelValues(t.job, status).Inc()
	m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	if t.items > 0 {
		m.processed.WithLabelValues(t.job).Add(float64(t.items))
	}
	return err
}

// SetStalePending publishes the count of a tenant's PENDING units past the
// allowed age.
func (m *Metrics) SetStalePending(tenantID int64, count int) {
	if m == nil {
		return
	}
	m.stalePending.WithLabelValues(strconv.FormatInt(tenantID, 10)).Set(float64(count))
}

// ResetStalePending drops every tenant series so tenants that caught up
// disappear from the gauge.
func (m *Metrics) ResetStalePending() {
	if m == nil {
		return
	}
	m.stalePending.Reset()
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corezen_jobs_total",
			Help: "Job runs by task type and status (success, failure, skipped).",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corezen_jobs_failures_total",
			Help: "Job runs that returned a retryable error.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corezen_job_duration_seconds",
			Help:    "Job run duration in seconds.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"job"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corezen_job_items_processed_total",
			Help: "Rows or tenants handled by job runs.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corezen_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		stalePending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corezen_stale_pending_items",
			Help: "PENDING stock items older than the allowed age, per tenant.",
		}, []string{"tenant"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.processed, m.lastSuccess, m.stalePending)
	return m
}
