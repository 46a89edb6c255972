package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Task is one unit of dispatched work.
type Task func(ctx context.Context) error

// PoolConfig holds configuration for the dispatch pool.
type PoolConfig struct {
	// MaxConcurrency caps the number of tasks submitted but not yet finished
	MaxConcurrency int
	// WorkerCount is the number of goroutines executing tasks
	WorkerCount int
}

type job struct {
	ctx     context.Context
	task    Task
	barrier *Barrier
}

// Pool is a bounded-concurrency executor.
//
// Submit blocks until one of MaxConcurrency slots is free. Tasks run on a
// fixed set of WorkerCount goroutines. A slot is released, and the task's
// barrier decremented, when the task finishes, whether it returned an error
// or panicked.
type Pool struct {
	sem      *semaphore.Weighted
	jobs     chan job
	workers  errgroup.Group
	inFlight atomic.Int64

	mu     sync.RWMutex
	closed bool

	config PoolConfig
	logger *slog.Logger
}

// NewPool creates a pool and starts its workers.
func NewPool(config PoolConfig, logger *slog.Logger) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}

	p := &Pool{
		sem: semaphore.NewWeighted(int64(config.MaxConcurrency)),
		// Sized to the slot count so a submit holding a slot never blocks on the queue.
		jobs:   make(chan job, config.MaxConcurrency),
		config: config,
		logger: logger.With("component", "dispatch-pool"),
	}

	for i := 0; i < config.WorkerCount; i++ {
		workerID := i
		p.workers.Go(func() error {
			p.worker(workerID)
			return nil
		})
	}

	return p
}

// Submit waits for a free slot and queues task. The barrier, if not nil, is
// released exactly once when the task finishes. If Submit returns an error
// the task was not queued and the barrier was not touched.
func (p *Pool) Submit(ctx context.Context, barrier *Barrier, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire dispatch slot: %w", err)
	}
	p.inFlight.Add(1)

	p.jobs <- job{ctx: ctx, task: task, barrier: barrier}
	return nil
}

// InFlight returns the number of slots currently held.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Close stops accepting tasks, lets queued tasks finish and waits for the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	_ = p.workers.Wait()
	p.logger.Info("dispatch pool stopped")
}

func (p *Pool) worker(id int) {
	logger := p.logger.With("worker_id", id)
	for j := range p.jobs {
		p.run(logger, j)
	}
}

// run executes one job. The deferred func is the only place a slot is
// released, so accounting stays exact on every exit path.
func (p *Pool) run(logger *slog.Logger, j job) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("dispatch task panicked", "panic", rec)
		}
		p.inFlight.Add(-1)
		p.sem.Release(1)
		if j.barrier != nil {
			j.barrier.Done()
		}
	}()

	if err := j.task(j.ctx); err != nil {
		logger.Debug("dispatch task returned error", "error", err)
	}
}
