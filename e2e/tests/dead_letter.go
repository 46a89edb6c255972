package tests

import (
	"context"
	"fmt"
	"time"

	"github.com/cornjacket/outbox-relay/e2e/client"
	"github.com/cornjacket/outbox-relay/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "dead-letter",
		Description: "Seed a row past its attempt budget, verify it is confirmed dead",
		Run:         runDeadLetterTest,
	})
}

func runDeadLetterTest(ctx context.Context, cfg *runner.Config) error {
	c, err := client.New(ctx, &client.Config{DatabaseURL: cfg.DatabaseURL, Brokers: cfg.Brokers})
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.SeedMessage(ctx, &client.SeedRequest{
		Destination:  client.UniqueID("e2e-orders"),
		Payload:      `{"order_id": 7}`,
		AttemptCount: 6,
		MaxAttempts:  5,
	})
	if err != nil {
		return err
	}

	state, err := c.WaitForMessage(ctx, id, 30*time.Second, func(s *client.MessageState) bool {
		return s.Status == "dead"
	})
	if err != nil {
		return fmt.Errorf("message was not confirmed dead: %w", err)
	}

	// A dead message is never sent again
	if state.AttemptCount != 6 {
		return fmt.Errorf("expected attempt count to stay at 6, got %d", state.AttemptCount)
	}

	return nil
}
