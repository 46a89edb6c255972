package relay

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/outbox-relay/internal/shared/domain/messages"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

func newTestMessage() messages.OutboxMessage {
	return messages.OutboxMessage{
		ID:          uuid.Must(uuid.NewV7()),
		Destination: "order-events",
		Payload:     `{"order_id":42}`,
		MaxAttempts: 5,
		CreatedAt:   testNow.Add(-time.Hour),
	}
}

func sentAgo(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

// mockMessageStore implements MessageStore for testing.
type mockMessageStore struct {
	FetchWaitingFn     func(ctx context.Context, limit int) ([]messages.OutboxMessage, error)
	ConfirmDeadFn      func(ctx context.Context, id uuid.UUID) error
	IncrementAttemptFn func(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}

func (m *mockMessageStore) FetchWaiting(ctx context.Context, limit int) ([]messages.OutboxMessage, error) {
	return m.FetchWaitingFn(ctx, limit)
}

func (m *mockMessageStore) ConfirmDead(ctx context.Context, id uuid.UUID) error {
	return m.ConfirmDeadFn(ctx, id)
}

func (m *mockMessageStore) IncrementAttempt(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return m.IncrementAttemptFn(ctx, id, sentAt)
}

// mockPublisher implements Publisher for testing.
type mockPublisher struct {
	PublishFn func(ctx context.Context, destination, key string, value []byte) error
}

func (m *mockPublisher) Publish(ctx context.Context, destination, key string, value []byte) error {
	return m.PublishFn(ctx, destination, key, value)
}

// mockHandler implements MessageHandler for testing.
type mockHandler struct {
	ProcessFn func(ctx context.Context, msg messages.OutboxMessage) error
}

func (m *mockHandler) Process(ctx context.Context, msg messages.OutboxMessage) error {
	return m.ProcessFn(ctx, msg)
}

// memoryStore is an in-memory MessageStore that mimics the postgres adapter.
type memoryStore struct {
	mu        sync.Mutex
	msgs      map[uuid.UUID]*messages.OutboxMessage
	dead      map[uuid.UUID]int
	fetches   int
	fetchErr  error
	updateErr error
}

func newMemoryStore(msgs ...messages.OutboxMessage) *memoryStore {
	s := &memoryStore{
		msgs: make(map[uuid.UUID]*messages.OutboxMessage),
		dead: make(map[uuid.UUID]int),
	}
	for i := range msgs {
		m := msgs[i]
		s.msgs[m.ID] = &m
	}
	return s
}

func (s *memoryStore) FetchWaiting(_ context.Context, limit int) ([]messages.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	var out []messages.OutboxMessage
	for id, m := range s.msgs {
		if _, isDead := s.dead[id]; isDead {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ConfirmDead(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.dead[id]++
	return nil
}

func (s *memoryStore) IncrementAttempt(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	m := s.msgs[id]
	m.AttemptCount++
	m.LastSendTime = &sentAt
	return nil
}

func (s *memoryStore) get(id uuid.UUID) messages.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.msgs[id]
}

func (s *memoryStore) deadCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead[id]
}

func (s *memoryStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}
