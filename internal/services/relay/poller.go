package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PollerConfig holds configuration for the poll loop.
type PollerConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// Poller fetches waiting messages in batches and fans them out to the pool.
// A batch is fully processed before the next fetch starts.
type Poller struct {
	store   MessageStore
	handler MessageHandler
	pool    *Pool
	config  PollerConfig
	logger  *slog.Logger
}

// NewPoller creates a new poll loop.
func NewPoller(store MessageStore, handler MessageHandler, pool *Pool, config PollerConfig, logger *slog.Logger) *Poller {
	return &Poller{
		store:   store,
		handler: handler,
		pool:    pool,
		config:  config,
		logger:  logger.With("component", "poll-loop"),
	}
}

// Run polls until ctx is cancelled. Fetch and dispatch errors are logged and
// the loop carries on after PollInterval.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting poll loop",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval,
	)

	for {
		start := time.Now()
		fetched, err := p.PollOnce(ctx)

		var delay time.Duration
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("poll iteration failed", "error", err)
			delay = p.config.PollInterval
		} else {
			delay = NextDelay(fetched, p.config.BatchSize, p.config.PollInterval)
			if fetched > 0 {
				p.logger.Info("batch processed",
					"count", fetched,
					"duration", time.Since(start),
					"next_delay", delay,
				)
			}
		}

		if !sleep(ctx, delay) {
			break
		}
	}

	p.logger.Info("poll loop stopped")
	return nil
}

// PollOnce fetches one batch, dispatches every message and waits for all of
// them to finish. It returns the number of messages fetched.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	batch, err := p.store.FetchWaiting(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreFetchFailed, err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	p.logger.Debug("fetched batch from outbox", "count", len(batch))

	barrier := NewBarrier(len(batch))
	for i, msg := range batch {
		err := p.pool.Submit(ctx, barrier, func(ctx context.Context) error {
			return p.handler.Process(ctx, msg)
		})
		if err != nil {
			// Account for the messages that never reached the pool, then
			// drain what did before reporting.
			for range batch[i:] {
				barrier.Done()
			}
			barrier.Wait()
			return len(batch), fmt.Errorf("dispatch stopped after %d of %d messages: %w", i, len(batch), err)
		}
	}

	barrier.Wait()
	return len(batch), nil
}

// NextDelay returns how long to sleep before the next fetch. A full batch
// means the store probably holds more, so the next poll is immediate.
func NextDelay(fetched, batchSize int, pollInterval time.Duration) time.Duration {
	if fetched == batchSize {
		return 0
	}
	return pollInterval
}

// sleep waits for d or until ctx is done. Returns false if ctx is done.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
