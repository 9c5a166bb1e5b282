package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aerotrace/flight-tracker/internal/types"
	_ "github.com/lib/pq"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// StoreTelemetryPoint upserts one telemetry point. A duplicate
// (vehicle_id, event_time) pair overwrites the stored row so retries and
// superseding writes resolve deterministically.
func (c *Client) StoreTelemetryPoint(p *types.TelemetryPoint) error {
	query := `
		INSERT INTO telemetry_points (
			event_time, vehicle_id, latitude, longitude, altitude,
			speed, heading, status, receipt_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (vehicle_id, event_time) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			altitude = EXCLUDED.altitude,
			speed = EXCLUDED.speed,
			heading = EXCLUDED.heading,
			status = EXCLUDED.status,
			receipt_time = EXCLUDED.receipt_time
	`
	_, err := c.db.Exec(query,
		p.EventTime, p.VehicleID, p.Latitude, p.Longitude, p.Altitude,
		p.Speed, p.Heading, p.Status, p.ReceiptTime,
	)
	return err
}

// GetHistory retrieves a vehicle's telemetry ordered by event time
func (c *Client) GetHistory(vehicleID string) ([]types.TelemetryPoint, error) {
	query := `
		SELECT event_time, vehicle_id, latitude, longitude, altitude,
			speed, heading, status, receipt_time
		FROM telemetry_points
		WHERE vehicle_id = $1
		ORDER BY event_time ASC
	`
	rows, err := c.db.Query(query, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []types.TelemetryPoint
	for rows.Next() {
		var p types.TelemetryPoint
		if err := rows.Scan(
			&p.EventTime, &p.VehicleID, &p.Latitude, &p.Longitude, &p.Altitude,
			&p.Speed, &p.Heading, &p.Status, &p.ReceiptTime,
		); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// GetActiveStates retrieves all active flight snapshots
func (c *Client) GetActiveStates() ([]*types.ActiveState, error) {
	query := `
		SELECT vehicle_id, latitude, longitude, altitude, speed, heading,
			status, event_time, receipt_time, started_at, progress,
			ready_for_completion, aircraft_type, airline, route
		FROM active_flights
	`
	rows, err := c.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*types.ActiveState
	for rows.Next() {
		var s types.ActiveState
		var route []byte
		if err := rows.Scan(
			&s.Point.VehicleID, &s.Point.Latitude, &s.Point.Longitude,
			&s.Point.Altitude, &s.Point.Speed, &s.Point.Heading,
			&s.Point.Status, &s.Point.EventTime, &s.Point.ReceiptTime,
			&s.StartedAt, &s.Progress, &s.ReadyForCompletion,
			&s.AircraftType, &s.Airline, &route,
		); err != nil {
			return nil, err
		}
		if len(route) > 0 {
			var r types.RouteDescriptor
			if err := json.Unmarshal(route, &r); err != nil {
				return nil, fmt.Errorf("failed to decode route for %s: %w", s.Point.VehicleID, err)
			}
			s.Route = &r
		}
		states = append(states, &s)
	}
	return states, rows.Err()
}

// UpsertActiveState creates or updates a vehicle's active snapshot
func (c *Client) UpsertActiveState(s *types.ActiveState) error {
	route, err := marshalRoute(s.Route)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO active_flights (
			vehicle_id, latitude, longitude, altitude, speed, heading,
			status, event_time, receipt_time, started_at, progress,
			ready_for_completion, aircraft_type, airline, route
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (vehicle_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			altitude = EXCLUDED.altitude,
			speed = EXCLUDED.speed,
			heading = EXCLUDED.heading,
			status = EXCLUDED.status,
			event_time = EXCLUDED.event_time,
			receipt_time = EXCLUDED.receipt_time,
			progress = EXCLUDED.progress,
			ready_for_completion = EXCLUDED.ready_for_completion
	`
	_, err = c.db.Exec(query,
		s.Point.VehicleID, s.Point.Latitude, s.Point.Longitude,
		s.Point.Altitude, s.Point.Speed, s.Point.Heading,
		s.Point.Status, s.Point.EventTime, s.Point.ReceiptTime,
		s.StartedAt, s.Progress, s.ReadyForCompletion,
		s.AircraftType, s.Airline, route,
	)
	return err
}

// DeleteActiveState removes a vehicle's active snapshot
func (c *Client) DeleteActiveState(vehicleID string) error {
	_, err := c.db.Exec(`DELETE FROM active_flights WHERE vehicle_id = $1`, vehicleID)
	return err
}

// CreateFlightLog writes one completed journey to the flight log. Returns
// types.ErrAlreadyArchived when the journey was written by an earlier,
// interrupted pass.
func (c *Client) CreateFlightLog(entry *types.FlightLogEntry) error {
	path, err := json.Marshal(entry.Path)
	if err != nil {
		return fmt.Errorf("failed to encode path: %w", err)
	}
	route, err := marshalRoute(entry.Route)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO flight_logs (
			log_id, vehicle_id, departure_time, arrival_time, completed_at,
			duration_seconds, point_count, path_distance_km, auto_completed,
			final_progress, aircraft_type, airline, route, path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (vehicle_id, departure_time) DO NOTHING
	`
	res, err := c.db.Exec(query,
		entry.LogID, entry.VehicleID, entry.DepartureTime, entry.ArrivalTime,
		entry.CompletedAt, int64(entry.Duration.Seconds()), entry.PointCount,
		entry.PathDistanceKM, entry.AutoCompleted, entry.FinalProgress,
		entry.AircraftType, entry.Airline, route, path,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return types.ErrAlreadyArchived
	}
	return nil
}

// GetFlightLog retrieves a vehicle's most recent completed journey,
// including its full path
func (c *Client) GetFlightLog(vehicleID string) (*types.FlightLogEntry, error) {
	query := `
		SELECT log_id, vehicle_id, departure_time, arrival_time, completed_at,
			duration_seconds, point_count, path_distance_km, auto_completed,
			final_progress, aircraft_type, airline, route, path
		FROM flight_logs
		WHERE vehicle_id = $1
		ORDER BY completed_at DESC
		LIMIT 1
	`
	row := c.db.QueryRow(query, vehicleID)

	entry, err := scanFlightLog(row.Scan, true)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// ListFlightLogs retrieves completed journey summaries, most recent
// first. Paths are omitted; use GetFlightLog for the full path.
func (c *Client) ListFlightLogs() ([]*types.FlightLogEntry, error) {
	query := `
		SELECT log_id, vehicle_id, departure_time, arrival_time, completed_at,
			duration_seconds, point_count, path_distance_km, auto_completed,
			final_progress, aircraft_type, airline, route
		FROM flight_logs
		ORDER BY completed_at DESC
	`
	rows, err := c.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*types.FlightLogEntry
	for rows.Next() {
		entry, err := scanFlightLog(rows.Scan, false)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanFlightLog(scan func(...interface{}) error, withPath bool) (*types.FlightLogEntry, error) {
	var e types.FlightLogEntry
	var durationSeconds int64
	var route, path []byte

	dest := []interface{}{
		&e.LogID, &e.VehicleID, &e.DepartureTime, &e.ArrivalTime, &e.CompletedAt,
		&durationSeconds, &e.PointCount, &e.PathDistanceKM, &e.AutoCompleted,
		&e.FinalProgress, &e.AircraftType, &e.Airline, &route,
	}
	if withPath {
		dest = append(dest, &path)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}

	e.Duration = time.Duration(durationSeconds) * time.Second
	if len(route) > 0 {
		var r types.RouteDescriptor
		if err := json.Unmarshal(route, &r); err != nil {
			return nil, fmt.Errorf("failed to decode route for %s: %w", e.VehicleID, err)
		}
		e.Route = &r
	}
	if withPath && len(path) > 0 {
		if err := json.Unmarshal(path, &e.Path); err != nil {
			return nil, fmt.Errorf("failed to decode path for %s: %w", e.VehicleID, err)
		}
	}
	return &e, nil
}

func marshalRoute(route *types.RouteDescriptor) ([]byte, error) {
	if route == nil {
		return nil, nil
	}
	data, err := json.Marshal(route)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route: %w", err)
	}
	return data, nil
}

// StoreEngineStats stores engine statistics
func (c *Client) StoreEngineStats(stats map[string]interface{}) error {
	query := `
		INSERT INTO engine_stats (
			time, total_reports, accepted, superseded, rejected,
			out_of_order, created_flights, completed_flights,
			locate_queries, progress_queries, storage_errors,
			active_vehicles, processing_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	processingTime := stats["processing_time"].(time.Duration).Milliseconds()

	_, err := c.db.Exec(query,
		time.Now(),
		stats["total_reports"],
		stats["accepted"],
		stats["superseded"],
		stats["rejected"],
		stats["out_of_order"],
		stats["created_flights"],
		stats["completed_flights"],
		stats["locate_queries"],
		stats["progress_queries"],
		stats["storage_errors"],
		stats["active_vehicles"],
		processingTime,
	)
	return err
}
