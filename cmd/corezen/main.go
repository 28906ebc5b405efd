package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/corezen/corezen/cmd/corezen/cli"
	"github.com/corezen/corezen/internal/app"
	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/observability"
	"github.com/corezen/corezen/internal/platform/cache"
	"github.com/corezen/corezen/internal/platform/db"
	"github.com/corezen/corezen/internal/posting"
	"github.com/corezen/corezen/internal/rental"
	"github.com/corezen/corezen/internal/reports"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
	"github.com/corezen/corezen/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.Redis().AsynqOpts())
		defer func() { _ = jobsCLI.Close() }()
		if err := jobsCLI.Run(ctx, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Without Redis the API still serves: reports are computed per request
	// and warm-ups are not enqueued.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.Redis()); err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	tenancyService := tenancy.NewService(tenancy.NewRepository(pool), auditLogger).WithBcryptCost(cfg.BcryptCost)
	auth := tenancy.Middleware{Auth: tenancyService, Logger: logger}

	stockService := stock.NewService(stock.NewRepository(pool))
	ledgerService := ledger.NewService(ledger.NewRepository(pool), auditLogger)

	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL).WithLogger(logger)
	reportsService := reports.NewService(reports.NewRepository(pool), reportsCache)

	notifiers := []posting.Notifier{reportsCache}
	var inspector *asynq.Inspector
	if redisClient != nil {
		if !cfg.DisableWarmOnPosting {
			jobClient := jobs.NewClient(cfg.Redis().AsynqOpts())
			defer func() { _ = jobClient.Close() }()
			notifiers = append(notifiers, jobClient)
		}
		inspector = asynq.NewInspector(cfg.Redis().AsynqOpts())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	postingService := posting.NewService(posting.NewRepository(pool), stock.NewEngine(), posting.ServiceConfig{
		Logger:    logger,
		Policy:    cfg.Settlement(),
		Notifiers: notifiers,
		Observer:  metrics,
	})

	var jobHandler *jobs.Handler
	if inspector != nil {
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	health := map[string]app.Pinger{"postgres": app.PingFunc(pool.Ping)}
	if redisClient != nil {
		health["redis"] = app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Auth:           auth,
		Metrics:        metrics,
		Health:         health,
		PostingHandler: posting.NewHandler(logger, postingService, auth),
		StockHandler:   stock.NewHandler(logger, stockService),
		LedgerHandler:  ledger.NewHandler(logger, ledgerService, auth),
		RentalHandler:  rental.NewHandler(logger, rental.NewRepository(pool)),
		ReportsHandler: reports.NewHandler(logger, reportsService, auth),
		StaffHandler:   tenancy.NewHandler(logger, tenancyService, auth),
		JobHandler:     jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	if err := app.Serve(ctx, server, logger); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
