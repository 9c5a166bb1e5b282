package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a vehicle has no telemetry anywhere,
// neither active nor archived.
var ErrNotFound = errors.New("vehicle not found")

// ErrAlreadyArchived is returned when an archival step finds the vehicle
// already present in the flight log. Lifecycle passes treat it as a no-op.
var ErrAlreadyArchived = errors.New("vehicle already archived")

// ValidationError describes a telemetry point rejected at the ingestion
// boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid telemetry: %s %s", e.Field, e.Reason)
}

// IngestStatus is the outcome of applying one telemetry point.
type IngestStatus string

const (
	IngestAccepted   IngestStatus = "accepted"
	IngestSuperseded IngestStatus = "superseded"
	IngestRejected   IngestStatus = "rejected"
)

// IngestResult reports the outcome of an Ingest call.
type IngestResult struct {
	Status    IngestStatus `json:"status"`
	VehicleID string       `json:"vehicle_id"`
}

// TelemetryEnvelope represents a raw telemetry report as received from a
// feed, before parsing and validation.
type TelemetryEnvelope struct {
	Raw       string    `json:"raw"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// TelemetryPoint is one validated position report for a vehicle.
// EventTime is caller-supplied and may arrive out of order or duplicated;
// ReceiptTime is assigned by ingestion.
type TelemetryPoint struct {
	VehicleID   string    `json:"vehicle_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Altitude    float64   `json:"altitude"`
	Speed       float64   `json:"speed"`
	Heading     float64   `json:"heading"`
	Status      string    `json:"status"`
	EventTime   time.Time `json:"event_time"`
	ReceiptTime time.Time `json:"receipt_time"`
}

// Endpoint is one end of a route: an airport code with display name and
// coordinates.
type Endpoint struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Waypoint is a display point along a route with its progress percentage.
type Waypoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Percent   float64 `json:"percent"`
}

// RouteDescriptor describes a vehicle's declared source and destination.
// Immutable once attached to a journey.
type RouteDescriptor struct {
	Source      Endpoint   `json:"source"`
	Destination Endpoint   `json:"destination"`
	Waypoints   []Waypoint `json:"waypoints,omitempty"`
}

// ActiveState is the current snapshot of a vehicle that has not completed
// its journey: the latest telemetry point plus optional static metadata.
type ActiveState struct {
	Point              TelemetryPoint   `json:"point"`
	Route              *RouteDescriptor `json:"route,omitempty"`
	AircraftType       string           `json:"aircraft_type,omitempty"`
	Airline            string           `json:"airline,omitempty"`
	StartedAt          time.Time        `json:"started_at"`
	Progress           float64          `json:"progress"`
	ReadyForCompletion bool             `json:"ready_for_completion"`
}

// Position is an estimated or projected coordinate pair.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// EstimateBasis describes how an EstimatedState was composed.
type EstimateBasis string

const (
	EstimateExact         EstimateBasis = "exact"
	EstimateInterpolated  EstimateBasis = "interpolated"
	EstimateNearestBefore EstimateBasis = "nearest_before"
	EstimateNearestAfter  EstimateBasis = "nearest_after"
)

// EstimatedState is the reconstructed state of a vehicle at a requested
// time. RequestedTime and ActualTime differ when the answer is a
// nearest-match rather than an exact or interpolated hit.
type EstimatedState struct {
	VehicleID     string        `json:"vehicle_id"`
	RequestedTime time.Time     `json:"requested_time"`
	ActualTime    time.Time     `json:"actual_time"`
	Basis         EstimateBasis `json:"basis"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	Altitude      float64       `json:"altitude"`
	Speed         float64       `json:"speed"`
	Heading       float64       `json:"heading"`
	Status        string        `json:"status"`
}

// ProgressReport is the route-progress view of an active vehicle.
type ProgressReport struct {
	VehicleID         string   `json:"vehicle_id"`
	Percent           float64  `json:"percent"`
	Source            Endpoint `json:"source"`
	Destination       Endpoint `json:"destination"`
	ProjectedPosition Position `json:"projected_position"`
}

// FlightLogEntry is the archive record of one completed journey. Created
// exactly once per journey; immutable thereafter.
type FlightLogEntry struct {
	LogID          string           `json:"log_id"`
	VehicleID      string           `json:"vehicle_id"`
	Path           []TelemetryPoint `json:"path"`
	Route          *RouteDescriptor `json:"route,omitempty"`
	CompletedAt    time.Time        `json:"completed_at"`
	DepartureTime  time.Time        `json:"departure_time"`
	ArrivalTime    time.Time        `json:"arrival_time"`
	Duration       time.Duration    `json:"duration"`
	PointCount     int              `json:"point_count"`
	PathDistanceKM float64          `json:"path_distance_km"`
	AutoCompleted  bool             `json:"auto_completed"`
	FinalProgress  float64          `json:"final_progress"`
	AircraftType   string           `json:"aircraft_type,omitempty"`
	Airline        string           `json:"airline,omitempty"`
}
