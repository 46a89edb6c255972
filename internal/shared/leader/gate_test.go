package leader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "transaction-mq-task"

func fastConfig() GateConfig {
	return GateConfig{RetryInterval: time.Millisecond, RetryMax: 5 * time.Millisecond}
}

func TestRunExclusively_ReturnsWhenBodySucceeds(t *testing.T) {
	locker := &countingLocker{next: NewLocalLocker()}
	gate := NewGate(locker, fastConfig(), testLogger())

	var runs int
	err := gate.RunExclusively(context.Background(), testKey, func(ctx context.Context) error {
		runs++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	acquired, released := locker.Counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released, "lease must be released after the body returns")
}

func TestRunExclusively_ReacquiresAfterBodyError(t *testing.T) {
	locker := &countingLocker{next: NewLocalLocker()}
	gate := NewGate(locker, fastConfig(), testLogger())

	var runs int
	err := gate.RunExclusively(context.Background(), testKey, func(ctx context.Context) error {
		runs++
		if runs < 3 {
			return fmt.Errorf("store unreachable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, runs)
	acquired, released := locker.Counts()
	assert.Equal(t, 3, acquired)
	assert.Equal(t, 3, released)
}

func TestRunExclusively_RecoversPanicAndReleases(t *testing.T) {
	locker := &countingLocker{next: NewLocalLocker()}
	gate := NewGate(locker, fastConfig(), testLogger())

	var runs int
	err := gate.RunExclusively(context.Background(), testKey, func(ctx context.Context) error {
		runs++
		if runs == 1 {
			panic("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	_, released := locker.Counts()
	assert.Equal(t, 2, released, "panicking body must still release the lease")
}

func TestRunExclusively_RetriesUnavailableLock(t *testing.T) {
	locker := &flakyLocker{failures: 4, err: errors.New("connection refused"), next: NewLocalLocker()}
	gate := NewGate(locker, fastConfig(), testLogger())

	var ran bool
	err := gate.RunExclusively(context.Background(), testKey, func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 5, locker.Calls())
}

func TestRunExclusively_CancelWhileWaitingForLock(t *testing.T) {
	locker := NewLocalLocker()
	holder, err := locker.Acquire(context.Background(), testKey)
	require.NoError(t, err)
	defer holder.Release(context.Background())

	gate := NewGate(locker, fastConfig(), testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = gate.RunExclusively(ctx, testKey, func(ctx context.Context) error {
		t.Fatal("body must not run without the lock")
		return nil
	})

	assert.NoError(t, err)
}

func TestRunExclusively_CancelStopsBodyAndReleases(t *testing.T) {
	locker := NewLocalLocker()
	gate := NewGate(locker, fastConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- gate.RunExclusively(ctx, testKey, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	<-started
	assert.True(t, locker.Held(testKey))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("gate did not stop after cancel")
	}
	assert.False(t, locker.Held(testKey))
}

func TestRunExclusively_LeaseLostCancelsBodyAndReacquires(t *testing.T) {
	locker := NewLocalLocker()
	gate := NewGate(locker, fastConfig(), testLogger())

	var runs atomic.Int32
	firstStarted := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- gate.RunExclusively(context.Background(), testKey, func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				close(firstStarted)
				<-ctx.Done()
				return nil
			}
			return nil
		})
	}()

	<-firstStarted
	require.True(t, locker.Revoke(testKey))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("gate did not re-acquire after lease loss")
	}
	assert.Equal(t, int32(2), runs.Load())
}

func TestRunExclusively_FleetMutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	const fleetSize = 8

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var active, maxActive, runs atomic.Int32
	body := func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			cur := maxActive.Load()
			if n <= cur || maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		runs.Add(1)

		// Hold the lock briefly, then hand it over by failing.
		select {
		case <-time.After(2 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		return errors.New("yield")
	}

	var wg sync.WaitGroup
	for i := 0; i < fleetSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gate := NewGate(locker, fastConfig(), testLogger())
			assert.NoError(t, gate.RunExclusively(ctx, testKey, body))
		}()
	}

	// Partition the current leader a few times while the fleet runs.
	go func() {
		for i := 0; i < 5; i++ {
			time.Sleep(20 * time.Millisecond)
			locker.Revoke(testKey)
		}
	}()

	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load(), "more than one instance ran the body at once")
	assert.Greater(t, runs.Load(), int32(fleetSize), "lock should change hands repeatedly")
	assert.False(t, locker.Held(testKey))
}

func TestLocalLocker_ReleaseIsIdempotent(t *testing.T) {
	locker := NewLocalLocker()

	lease, err := locker.Acquire(context.Background(), testKey)
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))
	require.NoError(t, lease.Release(context.Background()))

	// Key is free exactly once: a second holder can acquire without blocking.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second, err := locker.Acquire(ctx, testKey)
	require.NoError(t, err)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	_, err = locker.Acquire(ctx2, testKey)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, second.Release(context.Background()))
}

func TestLocalLocker_RevokeWithoutHolder(t *testing.T) {
	locker := NewLocalLocker()
	assert.False(t, locker.Revoke(testKey))
}
