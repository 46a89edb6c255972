package messages

import (
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// Envelope is the wire format published to the broker.
// Downstream consumers decode it with DecodeEnvelope; field names are part of
// the contract and must not change.
type Envelope struct {
	// MessageID lets consumers deduplicate at-least-once deliveries
	MessageID uuid.UUID `json:"message_id"`

	// Message is the producer's payload, passed through untouched
	Message string `json:"message"`
}

// NewEnvelope builds the transport envelope for an outbox message.
func NewEnvelope(msg OutboxMessage) Envelope {
	return Envelope{
		MessageID: msg.ID,
		Message:   msg.Payload,
	}
}

// Encode serializes the envelope. Output is deterministic for a given envelope.
func (e Envelope) Encode() ([]byte, error) {
	if e.MessageID.IsNil() {
		return nil, fmt.Errorf("envelope message_id is required")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope parses an encoded envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if e.MessageID.IsNil() {
		return Envelope{}, fmt.Errorf("envelope message_id is required")
	}
	return e, nil
}
