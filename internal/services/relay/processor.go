package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cornjacket/outbox-relay/internal/shared/domain/clock"
	"github.com/cornjacket/outbox-relay/internal/shared/domain/messages"
)

// recordTimeout bounds a store write made after the poll context is gone.
const recordTimeout = 5 * time.Second

// ProcessorConfig holds configuration for the message processor.
type ProcessorConfig struct {
	ThrottleWindow time.Duration
	PublishTimeout time.Duration
}

// Processor applies the throttle policy to one message, publishes it and
// records the outcome in the store.
type Processor struct {
	store     MessageStore
	publisher Publisher
	clock     clock.Clock
	config    ProcessorConfig
	logger    *slog.Logger
}

// NewProcessor creates a new message processor.
func NewProcessor(
	store MessageStore,
	publisher Publisher,
	clk clock.Clock,
	config ProcessorConfig,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		store:     store,
		publisher: publisher,
		clock:     clk,
		config:    config,
		logger:    logger.With("component", "message-processor"),
	}
}

// Process handles one outbox message.
//
// Only a confirmed publish advances the attempt counter: a broker failure
// leaves the message untouched so transport outages do not consume its retry
// budget.
func (p *Processor) Process(ctx context.Context, msg messages.OutboxMessage) error {
	logger := p.logger.With(
		"message_id", msg.ID,
		"destination", msg.Destination,
		"attempt_count", msg.AttemptCount,
		"max_attempts", msg.MaxAttempts,
	)

	decision := Decide(msg, p.clock.Now(), p.config.ThrottleWindow)
	switch decision {
	case DecisionDead:
		return p.confirmDead(ctx, logger, msg)
	case DecisionSkip:
		logger.Debug("message inside throttle window, skipping")
		return nil
	}

	body, err := messages.NewEnvelope(msg).Encode()
	if err != nil {
		logger.Error("failed to encode envelope", "stage", "encode", "error", err)
		return fmt.Errorf("%w: message %s: %w", ErrEncodeFailed, msg.ID, err)
	}

	if err := p.publish(ctx, msg, body); err != nil {
		logger.Error("failed to publish message, will retry on a later poll", "stage", "publish", "error", err)
		return fmt.Errorf("%w: message %s: %w", ErrPublishFailed, msg.ID, err)
	}

	sentAt := p.clock.Now()
	recordCtx, cancel := outcomeContext(ctx)
	defer cancel()
	if err := p.store.IncrementAttempt(recordCtx, msg.ID, sentAt); err != nil {
		// Published but not recorded: the message will be sent again later.
		logger.Error("failed to record delivery attempt", "stage", "record_attempt", "error", err)
		return fmt.Errorf("%w: message %s: %w", ErrStoreUpdateFailed, msg.ID, err)
	}

	logger.Debug("message published", "sent_at", sentAt)
	return nil
}

func (p *Processor) publish(ctx context.Context, msg messages.OutboxMessage, body []byte) error {
	if p.config.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.PublishTimeout)
		defer cancel()
	}
	return p.publisher.Publish(ctx, msg.Destination, msg.ID.String(), body)
}

func (p *Processor) confirmDead(ctx context.Context, logger *slog.Logger, msg messages.OutboxMessage) error {
	recordCtx, cancel := outcomeContext(ctx)
	defer cancel()
	if err := p.store.ConfirmDead(recordCtx, msg.ID); err != nil {
		logger.Error("failed to confirm dead message", "stage", "confirm_dead", "error", err)
		return fmt.Errorf("%w: message %s: %w", ErrStoreUpdateFailed, msg.ID, err)
	}
	logger.Warn("message exceeded retry budget, dead-lettered")
	return nil
}

// outcomeContext detaches a store write from cancellation of the poll context.
// Shutdown or lease loss landing right after a broker ack must not drop the
// record of that publish, or the next leader sends it again.
func outcomeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}
