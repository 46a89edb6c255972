package leader

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyLocker fails the first failures acquisitions, then delegates.
type flakyLocker struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
	next     Locker
}

func (f *flakyLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	f.mu.Lock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, f.err
	}
	f.mu.Unlock()
	return f.next.Acquire(ctx, key)
}

func (f *flakyLocker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingLocker records releases of the leases it hands out.
type countingLocker struct {
	mu       sync.Mutex
	acquired int
	released int
	next     Locker
}

func (c *countingLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	lease, err := c.next.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.acquired++
	c.mu.Unlock()
	return &countingLease{Lease: lease, owner: c}, nil
}

func (c *countingLocker) Counts() (acquired, released int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired, c.released
}

type countingLease struct {
	Lease
	owner *countingLocker
}

func (l *countingLease) Release(ctx context.Context) error {
	l.owner.mu.Lock()
	l.owner.released++
	l.owner.mu.Unlock()
	return l.Lease.Release(ctx)
}
