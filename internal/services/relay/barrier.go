package relay

import "sync/atomic"

// Barrier is a counting completion barrier for one batch.
// It starts at the batch size and is released once per finished task.
type Barrier struct {
	remaining atomic.Int64
	done      chan struct{}
}

// NewBarrier creates a barrier that opens after n calls to Done.
func NewBarrier(n int) *Barrier {
	b := &Barrier{done: make(chan struct{})}
	b.remaining.Store(int64(n))
	if n <= 0 {
		close(b.done)
	}
	return b
}

// Done records one finished task.
func (b *Barrier) Done() {
	n := b.remaining.Add(-1)
	switch {
	case n == 0:
		close(b.done)
	case n < 0:
		panic("relay: barrier released more times than its count")
	}
}

// Remaining returns the number of tasks still outstanding.
func (b *Barrier) Remaining() int {
	return int(b.remaining.Load())
}

// Wait blocks until every task has called Done.
func (b *Barrier) Wait() {
	<-b.done
}
