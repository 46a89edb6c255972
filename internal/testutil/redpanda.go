//go:build integration

package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

const defaultBrokers = "localhost:9092"

// TestBrokers returns the Redpanda broker addresses for integration tests.
// Override with INTEGRATION_REDPANDA_BROKERS environment variable.
func TestBrokers() []string {
	brokers := os.Getenv("INTEGRATION_REDPANDA_BROKERS")
	if brokers == "" {
		brokers = defaultBrokers
	}
	return strings.Split(brokers, ",")
}

// TestTopicName generates a unique destination topic from the test name and current timestamp.
func TestTopicName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("test-%s-%d", sanitize(t.Name()), time.Now().UnixNano())
}

// sanitize replaces / and spaces with dashes.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	return strings.ReplaceAll(name, " ", "-")
}
