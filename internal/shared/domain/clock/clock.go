// Package clock provides time abstraction for testability.
//
// Components that make time-based decisions (throttle windows, attempt
// timestamps) take a Clock instead of calling time.Now() directly, so tests
// can pin or step time.
//
// Usage:
//
//	// Production code
//	proc := relay.NewProcessor(store, publisher, clock.RealClock{}, ...)
//
//	// Tests (inject fixed time)
//	proc := relay.NewProcessor(store, publisher, clock.FixedClock{Time: fixedTime}, ...)
//
//	// Tests that need time to move
//	c := clock.NewManualClock(start)
//	c.Advance(61 * time.Second)
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock uses the actual system time.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a predetermined time. Useful for unit tests.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.Time
}

// ManualClock is a clock that only moves when told to.
// Safe for concurrent use by relay workers.
type ManualClock struct {
	mu   sync.Mutex
	time time.Time
}

// NewManualClock returns a ManualClock starting at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{time: t}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = c.time.Add(d)
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = t
}
