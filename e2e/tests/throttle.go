package tests

import (
	"context"
	"fmt"
	"time"

	"github.com/cornjacket/outbox-relay/e2e/client"
	"github.com/cornjacket/outbox-relay/e2e/runner"
)

// throttleObservation must span at least one relay poll interval.
const throttleObservation = 15 * time.Second

func init() {
	runner.Register(&runner.Test{
		Name:        "throttle",
		Description: "Seed a recently sent row, verify it is not resent inside the window",
		Run:         runThrottleTest,
	})
}

func runThrottleTest(ctx context.Context, cfg *runner.Config) error {
	c, err := client.New(ctx, &client.Config{DatabaseURL: cfg.DatabaseURL, Brokers: cfg.Brokers})
	if err != nil {
		return err
	}
	defer c.Close()

	sentAt := time.Now().UTC()
	id, err := c.SeedMessage(ctx, &client.SeedRequest{
		Destination:  client.UniqueID("e2e-orders"),
		Payload:      `{"order_id": 9}`,
		AttemptCount: 1,
		LastSendTime: &sentAt,
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(throttleObservation):
	}

	state, err := c.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if state.AttemptCount != 1 {
		return fmt.Errorf("message resent inside throttle window: attempt count %d", state.AttemptCount)
	}
	if state.Status != "waiting" {
		return fmt.Errorf("expected status waiting, got %s", state.Status)
	}

	return nil
}
