package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cornjacket/outbox-relay/internal/shared/domain/messages"
)

// Config holds client configuration.
type Config struct {
	DatabaseURL string
	Brokers     []string
}

// SeedRequest describes an outbox row written by a producing application.
type SeedRequest struct {
	Destination  string
	Payload      string
	AttemptCount int
	MaxAttempts  int
	LastSendTime *time.Time
}

// MessageState is the relay-visible state of an outbox row.
type MessageState struct {
	Status       string
	AttemptCount int
	LastSendTime *time.Time
}

// Client writes outbox rows and observes what the relay does with them.
type Client struct {
	pool    *pgxpool.Pool
	brokers []string
}

// New connects to the outbox database.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to outbox database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping outbox database: %w", err)
	}
	return &Client{pool: pool, brokers: cfg.Brokers}, nil
}

// Close releases the database pool.
func (c *Client) Close() {
	c.pool.Close()
}

// UniqueID generates a unique ID for test isolation.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// SeedMessage inserts a waiting outbox row and returns its ID.
func (c *Client) SeedMessage(ctx context.Context, req *SeedRequest) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate message ID: %w", err)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, destination, payload, attempt_count, max_attempts, last_send_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, req.Destination, req.Payload, req.AttemptCount, maxAttempts, req.LastSendTime)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return id, nil
}

// GetMessage reads the current state of an outbox row.
func (c *Client) GetMessage(ctx context.Context, id uuid.UUID) (*MessageState, error) {
	var s MessageState
	err := c.pool.QueryRow(ctx,
		"SELECT status, attempt_count, last_send_time FROM outbox_messages WHERE id = $1", id,
	).Scan(&s.Status, &s.AttemptCount, &s.LastSendTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", id, err)
	}
	return &s, nil
}

// WaitForMessage polls the outbox row until match returns true or timeout expires.
func (c *Client) WaitForMessage(ctx context.Context, id uuid.UUID, timeout time.Duration, match func(*MessageState) bool) (*MessageState, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		state, err := c.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if match(state) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("timeout waiting for message %s", id)
}

// WaitForEnvelope consumes destination from the start until it sees an
// envelope for id, and returns every envelope seen for that id.
func (c *Client) WaitForEnvelope(ctx context.Context, destination string, id uuid.UUID, timeout time.Duration) ([]*messages.Envelope, error) {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(c.brokers...),
		kgo.ConsumeTopics(destination),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var found []*messages.Envelope
	for len(found) == 0 {
		fetches := consumer.PollFetches(pollCtx)
		if pollCtx.Err() != nil {
			return nil, fmt.Errorf("timeout waiting for envelope %s on %s", id, destination)
		}

		var decodeErr error
		fetches.EachRecord(func(r *kgo.Record) {
			env, err := messages.DecodeEnvelope(r.Value)
			if err != nil {
				decodeErr = err
				return
			}
			if env.MessageID == id {
				found = append(found, env)
			}
		})
		if decodeErr != nil {
			return nil, fmt.Errorf("unexpected record on %s: %w", destination, decodeErr)
		}
	}

	return found, nil
}
