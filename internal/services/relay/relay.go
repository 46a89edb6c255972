package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cornjacket/outbox-relay/internal/shared/domain/clock"
	"github.com/cornjacket/outbox-relay/internal/shared/leader"
)

// Config holds configuration for the relay service.
type Config struct {
	BatchSize      int
	PollInterval   time.Duration
	ThrottleWindow time.Duration
	PublishTimeout time.Duration
	MaxConcurrency int
	WorkerCount    int

	LockKey           string
	LockRetryInterval time.Duration
	LockRetryMax      time.Duration
}

func (c Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.LockKey == "" {
		return fmt.Errorf("lock key is required")
	}
	return nil
}

// RunningService represents a started relay.
type RunningService struct {
	// Shutdown stops the poll loop, drains the pool and releases the lock.
	Shutdown func(ctx context.Context) error
}

// Start wires the pool, processor and poll loop and runs the loop behind the
// leader gate in the background. Only the instance holding cfg.LockKey relays.
func Start(
	ctx context.Context,
	cfg Config,
	store MessageStore,
	publisher Publisher,
	locker leader.Locker,
	logger *slog.Logger,
) (*RunningService, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}

	logger = logger.With("service", "relay")

	pool := NewPool(PoolConfig{
		MaxConcurrency: cfg.MaxConcurrency,
		WorkerCount:    cfg.WorkerCount,
	}, logger)

	proc := NewProcessor(store, publisher, clock.RealClock{}, ProcessorConfig{
		ThrottleWindow: cfg.ThrottleWindow,
		PublishTimeout: cfg.PublishTimeout,
	}, logger)

	poller := NewPoller(store, proc, pool, PollerConfig{
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
	}, logger)

	gate := leader.NewGate(locker, leader.GateConfig{
		RetryInterval: cfg.LockRetryInterval,
		RetryMax:      cfg.LockRetryMax,
	}, logger)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := gate.RunExclusively(runCtx, cfg.LockKey, poller.Run); err != nil {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	logger.Info("relay started",
		"lock_key", cfg.LockKey,
		"max_concurrency", cfg.MaxConcurrency,
		"workers", cfg.WorkerCount,
	)

	return &RunningService{
		Shutdown: func(shutdownCtx context.Context) error {
			logger.Info("shutting down relay")
			cancel()

			select {
			case <-done:
			case <-shutdownCtx.Done():
				// Stop the workers once the loop does finish.
				go func() {
					<-done
					pool.Close()
				}()
				return fmt.Errorf("relay did not stop in time: %w", shutdownCtx.Err())
			}

			pool.Close()
			return nil
		},
	}, nil
}
