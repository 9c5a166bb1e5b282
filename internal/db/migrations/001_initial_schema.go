package migrations

import "time"

// InitialSchema creates the initial database schema
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		-- Enable TimescaleDB extension
		CREATE EXTENSION IF NOT EXISTS timescaledb;

		-- Telemetry store: append-only, time-ordered, one row per
		-- (vehicle, event time); the unique constraint makes ingestion
		-- retries and superseding writes upsert instead of duplicate
		CREATE TABLE IF NOT EXISTS telemetry_points (
			event_time TIMESTAMPTZ NOT NULL,
			vehicle_id TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			altitude DOUBLE PRECISION NOT NULL,
			speed DOUBLE PRECISION NOT NULL,
			heading DOUBLE PRECISION NOT NULL,
			status TEXT,
			receipt_time TIMESTAMPTZ NOT NULL,
			UNIQUE (vehicle_id, event_time)
		);

		-- Create hypertable
		SELECT create_hypertable('telemetry_points', 'event_time');

		CREATE INDEX IF NOT EXISTS idx_telemetry_points_vehicle_id ON telemetry_points (vehicle_id, event_time);

		-- Active-state table: one snapshot per in-flight vehicle
		CREATE TABLE IF NOT EXISTS active_flights (
			vehicle_id TEXT PRIMARY KEY,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			altitude DOUBLE PRECISION NOT NULL,
			speed DOUBLE PRECISION NOT NULL,
			heading DOUBLE PRECISION NOT NULL,
			status TEXT,
			event_time TIMESTAMPTZ NOT NULL,
			receipt_time TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			progress DOUBLE PRECISION NOT NULL DEFAULT 0,
			ready_for_completion BOOLEAN NOT NULL DEFAULT FALSE,
			aircraft_type TEXT NOT NULL DEFAULT '',
			airline TEXT NOT NULL DEFAULT '',
			route JSONB
		);

		CREATE INDEX IF NOT EXISTS idx_active_flights_event_time ON active_flights (event_time);

		-- Flight log: archive of completed journeys. The unique pair
		-- keeps an interrupted archival from writing a second entry
		CREATE TABLE IF NOT EXISTS flight_logs (
			log_id TEXT PRIMARY KEY,
			vehicle_id TEXT NOT NULL,
			departure_time TIMESTAMPTZ NOT NULL,
			arrival_time TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL,
			duration_seconds BIGINT NOT NULL,
			point_count INTEGER NOT NULL,
			path_distance_km DOUBLE PRECISION NOT NULL,
			auto_completed BOOLEAN NOT NULL,
			final_progress DOUBLE PRECISION NOT NULL,
			aircraft_type TEXT NOT NULL DEFAULT '',
			airline TEXT NOT NULL DEFAULT '',
			route JSONB,
			path JSONB NOT NULL,
			UNIQUE (vehicle_id, departure_time)
		);

		CREATE INDEX IF NOT EXISTS idx_flight_logs_vehicle_id ON flight_logs (vehicle_id);
		CREATE INDEX IF NOT EXISTS idx_flight_logs_completed_at ON flight_logs (completed_at DESC);

		-- Engine statistics table
		CREATE TABLE IF NOT EXISTS engine_stats (
			time TIMESTAMPTZ NOT NULL,
			total_reports BIGINT NOT NULL,
			accepted BIGINT NOT NULL,
			superseded BIGINT NOT NULL,
			rejected BIGINT NOT NULL,
			out_of_order BIGINT NOT NULL,
			created_flights BIGINT NOT NULL,
			completed_flights BIGINT NOT NULL,
			locate_queries BIGINT NOT NULL,
			progress_queries BIGINT NOT NULL,
			storage_errors BIGINT NOT NULL,
			active_vehicles BIGINT NOT NULL,
			processing_time_ms BIGINT NOT NULL
		);

		-- Create hypertable for statistics
		SELECT create_hypertable('engine_stats', 'time');

		CREATE INDEX IF NOT EXISTS idx_engine_stats_time ON engine_stats (time DESC);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS engine_stats;
		DROP TABLE IF EXISTS flight_logs;
		DROP TABLE IF EXISTS active_flights;
		DROP TABLE IF EXISTS telemetry_points;
	`,
	CreatedAt: time.Now(),
}
