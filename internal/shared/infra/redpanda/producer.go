package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cornjacket/outbox-relay/internal/services/relay"
)

// Producer implements relay.Publisher using Redpanda (Kafka-compatible).
// The outbox destination is used as the topic name.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

var _ relay.Publisher = (*Producer)(nil)

// NewProducer creates a new Redpanda producer.
func NewProducer(brokers []string, logger *slog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redpanda client: %w", err)
	}

	return &Producer{
		client: client,
		logger: logger.With("component", "redpanda-producer"),
	}, nil
}

// Publish sends value to the destination topic and waits for the broker ack.
func (p *Producer) Publish(ctx context.Context, destination, key string, value []byte) error {
	record := &kgo.Record{
		Topic: destination,
		Key:   []byte(key), // message ID, so redeliveries land on the same partition
		Value: value,
	}

	results := p.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", destination, err)
	}

	p.logger.Debug("message published to Redpanda",
		"destination", destination,
		"key", key,
	)

	return nil
}

// Close closes the producer connection.
func (p *Producer) Close() {
	p.client.Close()
	p.logger.Info("Redpanda producer closed")
}
