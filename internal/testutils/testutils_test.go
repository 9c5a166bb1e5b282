package testutils

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aerotrace/flight-tracker/internal/types"
)

func TestMockPoint(t *testing.T) {
	eventTime := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	p := MockPoint("UA100", eventTime)

	if p.VehicleID != "UA100" {
		t.Errorf("VehicleID = %q, want UA100", p.VehicleID)
	}
	if !p.EventTime.Equal(eventTime) {
		t.Errorf("EventTime = %v, want %v", p.EventTime, eventTime)
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		t.Errorf("Position out of range: (%v, %v)", p.Latitude, p.Longitude)
	}
}

func TestMockEnvelope(t *testing.T) {
	env := MockEnvelope("UA100", time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	if env.Source != "test-source" {
		t.Errorf("Source = %q", env.Source)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(env.Raw), &decoded); err != nil {
		t.Fatalf("Raw payload is not valid JSON: %v", err)
	}
	if decoded["vehicle_id"] != "UA100" {
		t.Errorf("Raw vehicle_id = %v, want UA100", decoded["vehicle_id"])
	}
	if decoded["source"] != "JFK" || decoded["destination"] != "LAX" {
		t.Errorf("Raw route = %v -> %v", decoded["source"], decoded["destination"])
	}
}

func TestMockEnvelope_RoundTripsThroughTypes(t *testing.T) {
	env := MockEnvelope("UA100", time.Now().UTC())
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded types.TelemetryEnvelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Raw != env.Raw {
		t.Error("Raw payload did not survive the round trip")
	}
}

func TestWaitForCondition(t *testing.T) {
	calls := 0
	err := WaitForCondition(func() bool {
		calls++
		return calls >= 2
	}, 2*time.Second)
	if err != nil {
		t.Errorf("WaitForCondition() failed: %v", err)
	}

	if err := WaitForCondition(func() bool { return false }, 300*time.Millisecond); err == nil {
		t.Error("WaitForCondition() should time out")
	}
}
