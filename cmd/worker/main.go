package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/corezen/corezen/internal/app"
	jobmetrics "github.com/corezen/corezen/internal/jobs"
	"github.com/corezen/corezen/internal/observability"
	"github.com/corezen/corezen/internal/platform/cache"
	"github.com/corezen/corezen/internal/platform/db"
	"github.com/corezen/corezen/internal/reports"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/jobs"
)

// Idempotency keys are purged nightly, after the hourly sweep.
const cleanupCron = "30 3 * * *"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Unlike the API, the worker has nothing to do without Redis.
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	registry := observability.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	reportsService := reports.NewService(reports.NewRepository(pool), reports.NewCache(redisClient, cfg.ReportCacheTTL).WithLogger(logger))
	stockService := stock.NewService(stock.NewRepository(pool))

	warm := jobs.NewReportsWarmJob(reportsService, logger, metrics)
	sweep := jobs.NewPendingSweepJob(stockService, cfg.PendingSerialMaxAge, logger, metrics)
	cleanup := &jobs.IdempotencyCleanupJob{
		Store:     shared.NewIdempotencyStore(pool),
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   metrics,
	}

	schedules, err := buildSchedules(cfg)
	if err != nil {
		return err
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().AsynqOpts(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: map[string]asynq.HandlerFunc{
			jobs.TaskReportsWarm:        warm.Handle,
			jobs.TaskStockPendingSweep:  sweep.Handle,
			jobs.TaskIdempotencyCleanup: cleanup.Handle,
		},
		Schedules: schedules,
	})
	if err != nil {
		return err
	}

	logger.Info("worker started",
		slog.Int("concurrency", cfg.WorkerConcurrency),
		slog.String("sweep_cron", cfg.PendingSweepCron))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.RegistryHandler(registry))
		srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error { return app.Serve(gctx, srv, logger) })
	}
	return g.Wait()
}

func buildSchedules(cfg *app.Config) ([]jobs.Schedule, error) {
	sweepTask, err := jobs.NewPendingSweepTask(cfg.PendingSerialMaxAge)
	if err != nil {
		return nil, fmt.Errorf("build sweep task: %w", err)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		return nil, fmt.Errorf("build cleanup task: %w", err)
	}
	return []jobs.Schedule{
		{Spec: cfg.PendingSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		{Spec: cleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}, nil
}
