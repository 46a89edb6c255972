package messages

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// OutboxMessage is one row of the outbox awaiting delivery to the broker.
// The relay never mutates it directly; attempt bookkeeping and dead-lettering
// go through the store.
type OutboxMessage struct {
	// ID is the unique message identifier, also used as the broker record key
	ID uuid.UUID

	// Destination is the queue/topic the message is published to
	Destination string

	// Payload is the opaque message body written by the producer
	Payload string

	// AttemptCount is the number of confirmed publishes so far
	AttemptCount int

	// MaxAttempts is the retry budget; the message dies once AttemptCount exceeds it
	MaxAttempts int

	// LastSendTime is the time of the last confirmed publish (nil = never attempted)
	LastSendTime *time.Time

	// CreatedAt is when the producer wrote the row
	CreatedAt time.Time
}

// NeverAttempted reports whether the message has no recorded send.
func (m OutboxMessage) NeverAttempted() bool {
	return m.LastSendTime == nil
}
