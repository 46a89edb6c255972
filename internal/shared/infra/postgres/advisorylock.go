package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/outbox-relay/internal/shared/leader"
)

const (
	lockQuery   = `SELECT pg_advisory_lock(hashtextextended($1, 0))`
	unlockQuery = `SELECT pg_advisory_unlock(hashtextextended($1, 0))`
)

// AdvisoryLocker implements leader.Locker with session-level PostgreSQL
// advisory locks. Each lease pins one pool connection; if the process dies
// its session ends and Postgres frees the lock.
type AdvisoryLocker struct {
	pool          *pgxpool.Pool
	checkInterval time.Duration
	logger        *slog.Logger
}

// NewAdvisoryLocker creates a new AdvisoryLocker. checkInterval is how often
// a held lease pings its session to detect a dropped connection.
func NewAdvisoryLocker(pool *pgxpool.Pool, checkInterval time.Duration, logger *slog.Logger) *AdvisoryLocker {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	return &AdvisoryLocker{
		pool:          pool,
		checkInterval: checkInterval,
		logger:        logger.With("component", "advisory-lock"),
	}
}

// Acquire blocks until the advisory lock for key is held or ctx is done.
func (l *AdvisoryLocker) Acquire(ctx context.Context, key string) (leader.Lease, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}

	if _, err := conn.Exec(ctx, lockQuery, key); err != nil {
		// The lock may or may not have been granted; dropping the session settles it.
		destroy(conn)
		return nil, fmt.Errorf("failed to take advisory lock %q: %w", key, err)
	}

	lease := &advisoryLease{
		conn:   conn,
		key:    key,
		lost:   make(chan struct{}),
		stop:   make(chan struct{}),
		logger: l.logger.With("lock_key", key),
	}
	lease.wg.Add(1)
	go lease.watch(l.checkInterval)

	l.logger.Debug("advisory lock taken", "lock_key", key, "pid", conn.Conn().PgConn().PID())
	return lease, nil
}

type advisoryLease struct {
	conn *pgxpool.Conn
	key  string

	lost     chan struct{}
	lostOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	released bool

	logger *slog.Logger
}

// watch pings the lock session until the lease is released or the ping fails.
func (l *advisoryLease) watch(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := l.conn.Ping(ctx)
			cancel()
			if err != nil {
				l.logger.Error("advisory lock session lost", "error", err)
				l.markLost()
				return
			}
		}
	}
}

func (l *advisoryLease) markLost() {
	l.lostOnce.Do(func() { close(l.lost) })
}

func (l *advisoryLease) isLost() bool {
	select {
	case <-l.lost:
		return true
	default:
		return false
	}
}

// Lost is closed when the lock session stops answering.
func (l *advisoryLease) Lost() <-chan struct{} {
	return l.lost
}

// Release unlocks and returns the connection to the pool.
func (l *advisoryLease) Release(ctx context.Context) error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return nil
	}
	l.released = true
	l.mu.Unlock()

	// The watcher shares the connection; stop it before using the conn here.
	close(l.stop)
	l.wg.Wait()

	if l.isLost() {
		destroy(l.conn)
		return nil
	}

	if _, err := l.conn.Exec(ctx, unlockQuery, l.key); err != nil {
		destroy(l.conn)
		return fmt.Errorf("failed to release advisory lock %q: %w", l.key, err)
	}

	l.conn.Release()
	return nil
}

// destroy closes the underlying connection so the pool discards it and
// Postgres drops every lock held by the session.
func destroy(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = conn.Conn().Close(ctx)
	conn.Release()
}

// Ensure AdvisoryLocker implements leader.Locker
var _ leader.Locker = (*AdvisoryLocker)(nil)
