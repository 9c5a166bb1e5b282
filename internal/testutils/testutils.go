package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/aerotrace/flight-tracker/internal/types"
)

// MockPoint builds a valid telemetry point for testing.
func MockPoint(vehicleID string, eventTime time.Time) types.TelemetryPoint {
	return types.TelemetryPoint{
		VehicleID: vehicleID,
		Latitude:  40.6413,
		Longitude: -73.7781,
		Altitude:  35000,
		Speed:     450,
		Heading:   270,
		Status:    "en-route",
		EventTime: eventTime.UTC(),
	}
}

// MockEnvelope wraps a raw telemetry line the way a feed would deliver it.
func MockEnvelope(vehicleID string, eventTime time.Time) *types.TelemetryEnvelope {
	raw := fmt.Sprintf(
		`{"vehicle_id":%q,"latitude":40.6413,"longitude":-73.7781,"altitude":35000,"speed":450,"heading":270,"status":"en-route","timestamp":%q,"source":"JFK","destination":"LAX"}`,
		vehicleID, eventTime.UTC().Format(time.RFC3339),
	)
	return &types.TelemetryEnvelope{
		Raw:       raw,
		Timestamp: time.Now().UTC(),
		Source:    "test-source",
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
