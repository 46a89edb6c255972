package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/outbox-relay/internal/services/relay"
	"github.com/cornjacket/outbox-relay/internal/shared/domain/messages"
)

// OutboxRepo implements relay.MessageStore using PostgreSQL.
type OutboxRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(pool *pgxpool.Pool, logger *slog.Logger) *OutboxRepo {
	return &OutboxRepo{
		pool:   pool,
		logger: logger.With("repository", "outbox"),
	}
}

// FetchWaiting retrieves waiting messages, oldest first.
func (r *OutboxRepo) FetchWaiting(ctx context.Context, limit int) ([]messages.OutboxMessage, error) {
	query := `
		SELECT id, destination, payload, attempt_count, max_attempts, last_send_time, created_at
		FROM outbox_messages
		WHERE status = 'waiting'
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	msgs := make([]messages.OutboxMessage, 0, limit)
	for rows.Next() {
		var msg messages.OutboxMessage
		var lastSend *time.Time

		if err := rows.Scan(
			&msg.ID,
			&msg.Destination,
			&msg.Payload,
			&msg.AttemptCount,
			&msg.MaxAttempts,
			&lastSend,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		msg.LastSendTime = lastSend

		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}

	return msgs, nil
}

// ConfirmDead marks a waiting message as dead.
func (r *OutboxRepo) ConfirmDead(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_messages
		SET status = 'dead', died_at = now()
		WHERE id = $1 AND status = 'waiting'
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to confirm dead message: %w", err)
	}

	if result.RowsAffected() == 0 {
		r.logger.Warn("no waiting outbox message to mark dead", "message_id", id)
	}

	return nil
}

// IncrementAttempt advances the attempt count and records the send time.
func (r *OutboxRepo) IncrementAttempt(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE outbox_messages
		SET attempt_count = attempt_count + 1, last_send_time = $2
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, sentAt)
	if err != nil {
		return fmt.Errorf("failed to increment attempt count: %w", err)
	}

	if result.RowsAffected() == 0 {
		r.logger.Warn("outbox message not found for attempt update", "message_id", id)
	}

	return nil
}

// Ensure OutboxRepo implements relay.MessageStore
var _ relay.MessageStore = (*OutboxRepo)(nil)
