// Package leader runs a function on exactly one instance of a fleet at a time.
//
// A Gate acquires a named cluster-wide lock through a Locker and runs the
// supplied body while holding it. The body is expected to run until its
// context is cancelled; if it fails, panics or the lease is lost, the gate
// releases the lock and competes for it again.
package leader

import (
	"context"
	"errors"
)

var (
	// ErrLockUnavailable means the lock provider could not be reached or refused the acquisition.
	ErrLockUnavailable = errors.New("lock unavailable")

	// ErrLeaseLost means the lock provider reported the lease gone while the body was running.
	ErrLeaseLost = errors.New("lease lost")

	// ErrBodyPanic wraps a panic recovered from the exclusive body.
	ErrBodyPanic = errors.New("exclusive body panicked")
)

// Locker acquires named cluster-wide locks.
// Acquire blocks until the lock is held or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is exclusive ownership of one lock.
type Lease interface {
	// Release gives the lock back. Releasing twice is a no-op.
	Release(ctx context.Context) error

	// Lost is closed when the provider detects the lease is no longer held
	// (session dropped, lock revoked).
	Lost() <-chan struct{}
}
