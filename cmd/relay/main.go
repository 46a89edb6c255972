package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cornjacket/outbox-relay/internal/services/relay"
	"github.com/cornjacket/outbox-relay/internal/shared/config"
	"github.com/cornjacket/outbox-relay/internal/shared/infra/postgres"
	"github.com/cornjacket/outbox-relay/internal/shared/infra/redpanda"
	"github.com/cornjacket/outbox-relay/internal/shared/leader"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting outbox relay",
		"lock_key", cfg.LockKey,
		"lock_backend", cfg.LockBackend,
		"batch_size", cfg.OutboxBatchSize,
		"max_concurrency", cfg.OutboxMaxConcurrency,
		"worker_count", cfg.OutboxWorkerCount,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, postgres.Migrations, postgres.MigrationsDir, postgres.MigrationsTable); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// One connection per in-flight message, plus one pinned by the advisory
	// lock and one spare for the poll query.
	pg, err := postgres.NewClient(ctx, cfg.DatabaseURL, postgres.ClientConfig{
		MaxConns: int32(cfg.OutboxMaxConcurrency + 2),
	}, logger)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	brokers := strings.Split(cfg.RedpandaBrokers, ",")
	producer, err := redpanda.NewProducer(brokers, logger)
	if err != nil {
		slog.Error("failed to create Redpanda producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	var locker leader.Locker
	switch cfg.LockBackend {
	case config.LockBackendLocal:
		slog.Warn("using in-process lock; only safe for a single relay instance")
		locker = leader.NewLocalLocker()
	default:
		locker = postgres.NewAdvisoryLocker(pg.Pool(), cfg.LeaseCheckInterval, logger)
	}

	relaySvc, err := relay.Start(ctx, relay.Config{
		BatchSize:         cfg.OutboxBatchSize,
		PollInterval:      cfg.OutboxPollInterval,
		ThrottleWindow:    cfg.OutboxThrottleWindow,
		PublishTimeout:    cfg.OutboxPublishTimeout,
		MaxConcurrency:    cfg.OutboxMaxConcurrency,
		WorkerCount:       cfg.OutboxWorkerCount,
		LockKey:           cfg.LockKey,
		LockRetryInterval: cfg.LockRetryInterval,
		LockRetryMax:      cfg.LockRetryMax,
	}, postgres.NewOutboxRepo(pg.Pool(), logger), producer, locker, logger)
	if err != nil {
		slog.Error("failed to start relay service", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled")
	}

	slog.Info("shutting down relay...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := relaySvc.Shutdown(shutdownCtx); err != nil {
		slog.Error("relay service shutdown error", "error", err)
	}

	slog.Info("outbox relay stopped")
}

// newLogger creates a structured logger based on configuration.
func newLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
