package relay

import (
	"time"

	"github.com/cornjacket/outbox-relay/internal/shared/domain/messages"
)

// Decision is the throttle policy's verdict for one message.
type Decision int

const (
	// DecisionSkip leaves the message for a later poll without touching it.
	DecisionSkip Decision = iota
	// DecisionDeliver publishes the message now.
	DecisionDeliver
	// DecisionDead dead-letters the message.
	DecisionDead
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionDeliver:
		return "deliver"
	case DecisionDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Decide applies the retry/throttle policy to msg at time now.
//
// A message gets MaxAttempts recorded deliveries; it is declared dead only
// once AttemptCount is strictly greater than MaxAttempts. Otherwise it is
// delivered if it was never sent or the last send is older than window.
func Decide(msg messages.OutboxMessage, now time.Time, window time.Duration) Decision {
	if msg.AttemptCount > msg.MaxAttempts {
		return DecisionDead
	}
	if msg.NeverAttempted() || now.Sub(*msg.LastSendTime) > window {
		return DecisionDeliver
	}
	return DecisionSkip
}
