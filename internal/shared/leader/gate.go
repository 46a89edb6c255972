package leader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

const releaseTimeout = 5 * time.Second

// GateConfig holds the acquisition backoff for a Gate.
type GateConfig struct {
	// RetryInterval is the first delay after a failed acquisition, doubled on each failure
	RetryInterval time.Duration
	// RetryMax caps the acquisition delay
	RetryMax time.Duration
}

// Gate runs a body exclusively across every process sharing the same Locker.
type Gate struct {
	locker Locker
	config GateConfig
	logger *slog.Logger
}

// NewGate creates a new Gate.
func NewGate(locker Locker, config GateConfig, logger *slog.Logger) *Gate {
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}
	if config.RetryMax < config.RetryInterval {
		config.RetryMax = config.RetryInterval
	}
	return &Gate{
		locker: locker,
		config: config,
		logger: logger.With("component", "leader-gate"),
	}
}

// RunExclusively blocks until it holds lockKey, then runs body once with the
// lock held. If body fails the error is logged, the lock is released and the
// gate competes for it again. It returns nil when ctx is cancelled or body
// returns nil.
func (g *Gate) RunExclusively(ctx context.Context, lockKey string, body func(ctx context.Context) error) error {
	logger := g.logger.With("lock_key", lockKey)

	for {
		lease, err := g.acquire(ctx, logger, lockKey)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		logger.Info("lock acquired, running as leader")
		err = g.runHeld(ctx, logger, lease, body)
		if err == nil || ctx.Err() != nil {
			logger.Info("leader body finished, lock released")
			return nil
		}

		if errors.Is(err, ErrLeaseLost) {
			logger.Warn("lease lost, re-acquiring lock")
		} else {
			logger.Error("leader body failed, re-acquiring lock", "error", err)
		}

		if !sleep(ctx, g.config.RetryInterval) {
			return nil
		}
	}
}

// acquire retries the Locker until it succeeds or ctx is done.
func (g *Gate) acquire(ctx context.Context, logger *slog.Logger, lockKey string) (Lease, error) {
	backoff := retry.WithCappedDuration(g.config.RetryMax, retry.NewExponential(g.config.RetryInterval))

	var lease Lease
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		l, err := g.locker.Acquire(ctx, lockKey)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("lock acquisition failed, retrying", "error", err)
			return retry.RetryableError(fmt.Errorf("%w: %w", ErrLockUnavailable, err))
		}
		lease = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// runHeld runs body under lease. The lease is released on every exit path,
// including a panicking body.
func (g *Gate) runHeld(ctx context.Context, logger *slog.Logger, lease Lease, body func(ctx context.Context) error) (err error) {
	bodyCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lost atomic.Bool
	go func() {
		select {
		case <-lease.Lost():
			lost.Store(true)
			cancel()
		case <-bodyCtx.Done():
		}
	}()

	defer func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer releaseCancel()
		if rerr := lease.Release(releaseCtx); rerr != nil {
			logger.Error("failed to release lock", "error", rerr)
		}
	}()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrBodyPanic, rec)
		}
		if lost.Load() {
			err = errors.Join(ErrLeaseLost, err)
		}
	}()

	return body(bodyCtx)
}

// sleep waits for d or until ctx is done. Returns false if ctx is done.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
