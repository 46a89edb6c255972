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
		Name:        "deliver",
		Description: "Seed a fresh outbox row, verify envelope on the broker and recorded attempt",
		Run:         runDeliverTest,
	})
}

func runDeliverTest(ctx context.Context, cfg *runner.Config) error {
	c, err := client.New(ctx, &client.Config{DatabaseURL: cfg.DatabaseURL, Brokers: cfg.Brokers})
	if err != nil {
		return err
	}
	defer c.Close()

	destination := client.UniqueID("e2e-orders")
	payload := `{"order_id": 42, "status": "paid"}`

	// 1. Seed a message the way a producing application would
	id, err := c.SeedMessage(ctx, &client.SeedRequest{
		Destination: destination,
		Payload:     payload,
	})
	if err != nil {
		return err
	}

	// 2. Wait for the envelope on the destination
	envs, err := c.WaitForEnvelope(ctx, destination, id, 30*time.Second)
	if err != nil {
		return err
	}
	if envs[0].Message != payload {
		return fmt.Errorf("expected message %q, got %q", payload, envs[0].Message)
	}

	// 3. The send is recorded after the publish succeeds
	state, err := c.WaitForMessage(ctx, id, 5*time.Second, func(s *client.MessageState) bool {
		return s.AttemptCount >= 1
	})
	if err != nil {
		return fmt.Errorf("attempt was not recorded: %w", err)
	}
	if state.AttemptCount != 1 {
		return fmt.Errorf("expected attempt count 1, got %d", state.AttemptCount)
	}
	if state.LastSendTime == nil {
		return fmt.Errorf("expected last send time to be set")
	}
	if state.Status != "waiting" {
		return fmt.Errorf("expected status waiting, got %s", state.Status)
	}

	return nil
}
