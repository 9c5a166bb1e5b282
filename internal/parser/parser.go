// Package parser turns raw telemetry feed lines into validated
// TelemetryPoints.
package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aerotrace/flight-tracker/internal/types"
)

// Report is the wire format of one telemetry line: the point itself plus
// optional static route and vehicle metadata supplied at ingestion.
type Report struct {
	VehicleID    string  `json:"vehicle_id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Altitude     float64 `json:"altitude"`
	Speed        float64 `json:"speed"`
	Heading      float64 `json:"heading"`
	Status       string  `json:"status"`
	Timestamp    string  `json:"timestamp"`
	Source       string  `json:"source,omitempty"`
	Destination  string  `json:"destination,omitempty"`
	AircraftType string  `json:"aircraft_type,omitempty"`
	Airline      string  `json:"airline,omitempty"`

	point types.TelemetryPoint
}

// Point returns the validated telemetry point built by ParseReport.
func (r *Report) Point() types.TelemetryPoint { return r.point }

// ParseReport parses a raw telemetry line and validates its geospatial
// fields. The receipt time is always assigned here, never taken from the
// caller.
func ParseReport(raw string, receipt time.Time) (*Report, error) {
	var r Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("malformed telemetry line: %w", err)
	}

	if strings.TrimSpace(r.VehicleID) == "" {
		return nil, &types.ValidationError{Field: "vehicle_id", Reason: "is required"}
	}
	eventTime, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return nil, &types.ValidationError{Field: "timestamp", Reason: "must be RFC3339"}
	}

	point := types.TelemetryPoint{
		VehicleID:   r.VehicleID,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Altitude:    r.Altitude,
		Speed:       r.Speed,
		Heading:     r.Heading,
		Status:      r.Status,
		EventTime:   eventTime.UTC(),
		ReceiptTime: receipt.UTC(),
	}
	if err := ValidatePoint(&point); err != nil {
		return nil, err
	}
	r.point = point
	return &r, nil
}

// ValidatePoint checks the physical ranges of a telemetry point. A nil
// return means the point is safe to ingest.
func ValidatePoint(p *types.TelemetryPoint) error {
	switch {
	case p.VehicleID == "":
		return &types.ValidationError{Field: "vehicle_id", Reason: "is required"}
	case p.EventTime.IsZero():
		return &types.ValidationError{Field: "event_time", Reason: "is required"}
	case math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90:
		return &types.ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	case math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180:
		return &types.ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
	case math.IsNaN(p.Altitude) || p.Altitude < 0:
		return &types.ValidationError{Field: "altitude", Reason: "must be positive"}
	case math.IsNaN(p.Speed) || p.Speed < 0:
		return &types.ValidationError{Field: "speed", Reason: "must be positive"}
	case math.IsNaN(p.Heading) || p.Heading < 0 || p.Heading > 360:
		return &types.ValidationError{Field: "heading", Reason: "must be between 0 and 360"}
	}
	return nil
}
