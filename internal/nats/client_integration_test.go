package nats

import (
	"context"
	"testing"
	"time"

	"github.com/aerotrace/flight-tracker/internal/types"
	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startNATS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := natscontainer.Run(ctx, "nats:2.9-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server is ready"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start NATS container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate NATS container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}
	return url
}

func TestClient_Integration_Connection(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client, err := New(startNATS(t))
	if err != nil {
		t.Fatalf("Failed to create NATS client: %v", err)
	}
	defer client.Close()

	if client.conn == nil {
		t.Error("Expected connection to be initialized")
	}
	if client.js == nil {
		t.Error("Expected JetStream context to be initialized")
	}
}

func TestClient_Integration_PublishAndSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	url := startNATS(t)
	publisher, err := New(url)
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	subscriber, err := New(url)
	if err != nil {
		t.Fatalf("Failed to create subscriber: %v", err)
	}
	defer subscriber.Close()

	received := make(chan *types.TelemetryEnvelope, 1)
	if err := subscriber.SubscribeTelemetry(func(env *types.TelemetryEnvelope) {
		received <- env
	}); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	sent := &types.TelemetryEnvelope{
		Raw:       `{"vehicle_id":"UA100","latitude":40.6413,"longitude":-73.7781,"altitude":35000,"speed":450,"heading":270,"status":"en-route","timestamp":"2026-03-14T12:00:00Z"}`,
		Timestamp: time.Now().UTC(),
		Source:    "integration-test",
	}
	if err := publisher.PublishTelemetry(sent); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case env := <-received:
		if env.Raw != sent.Raw {
			t.Errorf("Received raw = %q, want %q", env.Raw, sent.Raw)
		}
		if env.Source != "integration-test" {
			t.Errorf("Received source = %q", env.Source)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for the published envelope")
	}
}

func TestClient_Integration_Redelivery(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	url := startNATS(t)
	client, err := New(url)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	// Publish before subscribing; JetStream retains and replays
	sent := &types.TelemetryEnvelope{Raw: "retained line", Timestamp: time.Now().UTC(), Source: "test"}
	if err := client.PublishTelemetry(sent); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	received := make(chan *types.TelemetryEnvelope, 1)
	if err := client.SubscribeTelemetry(func(env *types.TelemetryEnvelope) {
		received <- env
	}); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	select {
	case env := <-received:
		if env.Raw != "retained line" {
			t.Errorf("Received raw = %q", env.Raw)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for the retained envelope")
	}
}
