package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/caravel-erp/caravel/internal/app"
	"github.com/caravel-erp/caravel/internal/integration"
	"github.com/caravel-erp/caravel/internal/inventory"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
	ledgercache "github.com/caravel-erp/caravel/internal/ledger/cache"
	"github.com/caravel-erp/caravel/internal/ledger/journal"
	"github.com/caravel-erp/caravel/internal/ledger/projector"
	"github.com/caravel-erp/caravel/internal/ledger/reports"
	"github.com/caravel-erp/caravel/internal/observability"
	"github.com/caravel-erp/caravel/internal/party"
	"github.com/caravel-erp/caravel/internal/platform/cache"
	"github.com/caravel-erp/caravel/internal/platform/db"
	"github.com/caravel-erp/caravel/internal/shared"
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
		logger.Warn("redis unavailable, reports recompute on every request", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	ledgerCache := ledgercache.New(redisClient, cfg.CacheTTL)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	journalRepo := journal.NewRepository(pool)
	journalService := journal.NewService(journalRepo, auditLogger, ledgerCache)
	journalHandler := journal.NewHandler(logger, journalService)

	projectorRepo := projector.NewRepository(pool)
	projectorService := projector.NewService(projectorRepo)
	projectorHandler := projector.NewHandler(logger, projectorService)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, ledgerCache, logger)
	reportsHandler := reports.NewHandler(logger, reportsService)

	partyRepo := party.NewRepository(pool)
	partyService := party.NewService(partyRepo, accountsService, projectorService, logger)
	partyHandler := party.NewHandler(logger, partyService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})

	hooks := integration.NewHooks(journalService, accountsService, inventoryService)
	integrationHandler := integration.NewHandler(logger, hooks, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               pool,
		AccountsHandler:    accountsHandler,
		JournalHandler:     journalHandler,
		ProjectorHandler:   projectorHandler,
		ReportsHandler:     reportsHandler,
		PartyHandler:       partyHandler,
		IntegrationHandler: integrationHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
