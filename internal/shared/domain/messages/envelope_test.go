package messages

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage() OutboxMessage {
	return OutboxMessage{
		ID:           uuid.Must(uuid.FromString("0192f4a8-7c1e-7d3a-9a3b-5f0e4c2d1b6a")),
		Destination:  "order-events",
		Payload:      `{"order_id":42,"status":"paid"}`,
		AttemptCount: 2,
		MaxAttempts:  5,
	}
}

func TestNewEnvelope(t *testing.T) {
	msg := testMessage()

	env := NewEnvelope(msg)

	assert.Equal(t, msg.ID, env.MessageID)
	assert.Equal(t, msg.Payload, env.Message)
}

func TestEnvelope_EncodeIsStable(t *testing.T) {
	env := NewEnvelope(testMessage())

	first, err := env.Encode()
	require.NoError(t, err)
	second, err := env.Encode()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.JSONEq(t,
		`{"message_id":"0192f4a8-7c1e-7d3a-9a3b-5f0e4c2d1b6a","message":"{\"order_id\":42,\"status\":\"paid\"}"}`,
		string(first),
	)
}

func TestEnvelope_EncodeRequiresID(t *testing.T) {
	_, err := Envelope{Message: "hello"}.Encode()
	assert.Error(t, err)
}

func TestDecodeEnvelope(t *testing.T) {
	env := NewEnvelope(testMessage())
	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `not-json`},
		{"missing id", `{"message":"x"}`},
		{"bad id", `{"message_id":"nope","message":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestOutboxMessage_NeverAttempted(t *testing.T) {
	msg := testMessage()
	assert.True(t, msg.NeverAttempted())

	sent := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	msg.LastSendTime = &sent
	assert.False(t, msg.NeverAttempted())
}
