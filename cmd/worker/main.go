package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/caravel-erp/caravel/internal/app"
	jobmetrics "github.com/caravel-erp/caravel/internal/jobs"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	ledgercache "github.com/caravel-erp/caravel/internal/ledger/cache"
	"github.com/caravel-erp/caravel/internal/ledger/projector"
	"github.com/caravel-erp/caravel/internal/ledger/reports"
	"github.com/caravel-erp/caravel/internal/party"
	"github.com/caravel-erp/caravel/internal/platform/cache"
	"github.com/caravel-erp/caravel/internal/platform/db"
	"github.com/caravel-erp/caravel/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerCache := ledgercache.New(redisClient, cfg.CacheTTL)
	metrics := jobmetrics.NewMetrics(nil)

	accountsService := accounts.NewService(accounts.NewRepository(pool))
	projectorService := projector.NewService(projector.NewRepository(pool))
	reportsService := reports.NewService(reports.NewRepository(pool), ledgerCache, logger)
	partyService := party.NewService(party.NewRepository(pool), accountsService, projectorService, logger)

	integrityJob := jobs.NewIntegrityJob(reportsService, ledgerCache, logger, metrics)
	reconcileJob := jobs.NewReconcileJob(partyService, ledgerCache, logger, metrics)
	warmupJob := jobs.NewWarmupJob(reportsService, logger, metrics)

	integrityTask, err := jobs.NewIntegrityTask(time.Time{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	reconcileTask, err := jobs.NewReconcileTask(time.Now().UTC())
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewWarmupTask(3)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskPartyReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskReportWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 6 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
