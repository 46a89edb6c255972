package relay

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/outbox-relay/internal/shared/domain/messages"
)

// MessageStore reads waiting outbox messages and records delivery outcomes.
// Infrastructure adapters (e.g., postgres) implement this interface.
type MessageStore interface {
	// FetchWaiting returns up to limit waiting messages in store-defined order.
	FetchWaiting(ctx context.Context, limit int) ([]messages.OutboxMessage, error)
	// ConfirmDead moves a message to the dead state.
	ConfirmDead(ctx context.Context, id uuid.UUID) error
	// IncrementAttempt advances the attempt count and sets the last send time.
	IncrementAttempt(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}

// Publisher sends an encoded envelope to a broker destination.
// This interface is satisfied by redpanda.Producer.
type Publisher interface {
	Publish(ctx context.Context, destination, key string, value []byte) error
}

// MessageHandler processes a single outbox message.
// This interface is satisfied by Processor.
type MessageHandler interface {
	Process(ctx context.Context, msg messages.OutboxMessage) error
}
