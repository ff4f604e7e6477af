package main

import (
	"context"
	"errors"
	"os"
	"time"

	"academy/internal/aggregate"
	"academy/internal/amqp"
	"academy/internal/cache"
	"academy/internal/cli"
	"academy/internal/config"
	applog "academy/internal/log"
	"academy/internal/sheets"
	gsheet "academy/internal/sheets/google"
	memsheet "academy/internal/sheets/memory"
	"academy/internal/worker"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(applog.ComponentWorker, cfg.LogLevel)
	logger.Info("Starting academy-worker")
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	be := cli.OpenBackend(context.Background(), logger, cfg)
	engine := aggregate.New(be.Store, logger.WithComponent(applog.ComponentAggregate).Logger)

	caches := cache.NewManager(logger.Logger)
	var sheet sheets.KPISheet
	if cfg.SyncDryRun {
		sheet = memsheet.New()
		logger.Warn("SYNC_DRY_RUN set, KPI rows are kept in memory and never reach Google Sheets")
	} else {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		caches.Register(client.TabCache())
		sheet = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}
	caches.StartCleanup(cacheCleanupInterval)

	events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewKPISyncWorker(engine, sheet, logger)

	ctx, done := cli.GracefulShutdown(logger.Logger, shutdownTimeout, func(context.Context) {
		caches.Stop()
		if err := events.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err)
		}
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	// Recover changes published while the worker was down.
	if err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	go func() {
		err := events.ConsumeRecordsChanged(ctx, syncWorker.HandleRecordsChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	// The periodic pass catches anything a lost message would have missed.
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.SyncKnownYears(ctx); err != nil {
					logger.Error("Periodic KPI sync failed", applog.FieldError, err)
				}
			}
		}
	}()

	logger.Info("Worker running", "sync_interval", cfg.SyncInterval, "dry_run", cfg.SyncDryRun)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
