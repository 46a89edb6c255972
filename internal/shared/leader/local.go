package leader

import (
	"context"
	"sync"
)

// LocalLocker provides mutual exclusion between gates in one process.
// It backs single-instance deployments and fleet simulations in tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	held  map[string]*localLease
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		slots: make(map[string]chan struct{}),
		held:  make(map[string]*localLease),
	}
}

// Acquire blocks until key is free or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	slot := l.slot(key)

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	lease := &localLease{locker: l, key: key, slot: slot, lost: make(chan struct{})}
	l.mu.Lock()
	l.held[key] = lease
	l.mu.Unlock()
	return lease, nil
}

// Revoke signals the current holder of key that its lease is lost.
// The key becomes available once the holder releases it. Returns false if
// nobody holds key.
func (l *LocalLocker) Revoke(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lease, ok := l.held[key]
	if !ok || lease.revoked {
		return false
	}
	lease.revoked = true
	close(lease.lost)
	return true
}

// Held reports whether key is currently held.
func (l *LocalLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	return slot
}

type localLease struct {
	locker   *LocalLocker
	key      string
	slot     chan struct{}
	lost     chan struct{}
	revoked  bool
	released bool
}

func (l *localLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if l.released {
		return nil
	}
	l.released = true
	if l.locker.held[l.key] == l {
		delete(l.locker.held, l.key)
	}
	<-l.slot
	return nil
}

func (l *localLease) Lost() <-chan struct{} {
	return l.lost
}
