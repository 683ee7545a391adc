//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
)

// RedpandaContainer wraps a Kafka-compatible broker for notification fan-out
// tests.
type RedpandaContainer struct {
	Container testcontainers.Container
	Brokers   []string
}

// NewRedpandaContainer starts a Redpanda container and registers teardown on
// t.
func NewRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "redpandadata/redpanda:v24.2.1")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		t.Fatalf("failed to get redpanda broker address: %v", err)
	}

	return &RedpandaContainer{
		Container: container,
		Brokers:   []string{broker},
	}
}
