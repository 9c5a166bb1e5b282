package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aerotrace/flight-tracker/internal/types"
	"github.com/nats-io/nats.go"
)

const (
	SubjectTelemetry = "telemetry.points"
)

// Client represents a NATS client
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client. JetStream gives the telemetry stream
// at-least-once delivery; the engine's idempotent ingest absorbs
// redelivered points.
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "TELEMETRY",
		Subjects: []string{SubjectTelemetry},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// PublishTelemetry publishes a telemetry envelope to NATS
func (c *Client) PublishTelemetry(env *types.TelemetryEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if _, err := c.js.Publish(SubjectTelemetry, data); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}
	return nil
}

// SubscribeTelemetry subscribes to raw telemetry envelopes
func (c *Client) SubscribeTelemetry(handler func(*types.TelemetryEnvelope)) error {
	_, err := c.js.Subscribe(SubjectTelemetry, func(msg *nats.Msg) {
		var env types.TelemetryEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Printf("Error unmarshaling envelope: %v", err)
			return
		}
		handler(&env)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
