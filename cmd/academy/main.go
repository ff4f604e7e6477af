package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"academy/internal/aggregate"
	"academy/internal/auth"
	"academy/internal/backup"
	"academy/internal/cli"
	"academy/internal/config"
	apphttp "academy/internal/http"
	applog "academy/internal/log"
	"academy/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(applog.ComponentApp, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()
	be := cli.OpenBackend(ctx, logger, cfg)

	// Snapshot before anything touches the database.
	be.Backups.Snapshot(ctx, backup.ReasonStartup)

	deps := services.Deps{Store: be.Store, Backups: be.Backups, Logger: logger}
	events := cli.NewEventClient(logger, cfg)
	if events != nil {
		deps.Events = events
	}

	accounts := services.NewAccountService(deps)
	if err := accounts.EnsureSeed(ctx); err != nil {
		logger.Error("Failed to seed database", applog.FieldError, err)
		os.Exit(1)
	}

	var sessions auth.SessionStore = auth.NewMemorySessions()
	if cfg.RedisURL != "" {
		client, err := auth.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		sessions = auth.NewRedisSessions(client)
		logger.Info("Sessions stored in Redis")
	} else {
		logger.Info("Sessions kept in memory, restarting logs everyone out")
	}

	limiter := auth.NewLoginLimiter(auth.LimiterConfig{
		MaxAttempts: cfg.LoginMaxAttempts,
		Lockout:     cfg.LoginLockout,
	})
	gate := auth.NewGate(be.Store, limiter, sessions, auth.GateConfig{
		SessionTTL:  cfg.SessionTTL,
		RememberTTL: cfg.RememberTTL,
	}, logger)

	csrfKey, err := cfg.CSRFKey()
	if err != nil {
		logger.Error("Failed to load secret key", applog.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		Production:     cfg.Production,
		CSRFKey:        csrfKey,
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger,
	}, apphttp.Deps{
		Store:    be.Store,
		Engine:   aggregate.New(be.Store, logger.WithComponent(applog.ComponentAggregate).Logger),
		Centers:  services.NewCenterService(deps),
		Coaches:  services.NewCoachService(deps),
		Leaves:   services.NewLeaveService(deps),
		Accounts: accounts,
		Gate:     gate,
		Backups:  be.Backups,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger.Logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		limiter.Stop()
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting academy server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"production", cfg.Production,
		"backups", be.Backups.Enabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
