package migrations

var RetentionPolicies = &Migration{
	ID:   "002_retention_policies",
	Name: "002_retention_policies",
	UpSQL: `
	-- Raw telemetry is kept for audit after archival; drop it after 30
	-- days. Flight logs are the permanent record and have no policy.
	SELECT add_retention_policy('telemetry_points', INTERVAL '30 days');

	-- Set retention policy for engine_stats (90 days)
	SELECT add_retention_policy('engine_stats', INTERVAL '90 days');

	-- Create continuous aggregate for daily ingest totals
	CREATE MATERIALIZED VIEW IF NOT EXISTS engine_stats_daily
	WITH (timescaledb.continuous) AS
	SELECT
		time_bucket('1 day', time) AS day,
		SUM(total_reports) AS total_reports,
		SUM(accepted) AS accepted,
		SUM(superseded) AS superseded,
		SUM(rejected) AS rejected,
		SUM(out_of_order) AS out_of_order,
		SUM(created_flights) AS created_flights,
		SUM(completed_flights) AS completed_flights
	FROM engine_stats
	GROUP BY day
	WITH NO DATA;

	-- Create continuous aggregate for hourly telemetry volume
	CREATE MATERIALIZED VIEW IF NOT EXISTS telemetry_points_hourly
	WITH (timescaledb.continuous) AS
	SELECT
		time_bucket('1 hour', event_time) AS hour,
		COUNT(*) AS point_count
	FROM telemetry_points
	GROUP BY hour
	WITH NO DATA;
	`,
	DownSQL: `
	DROP MATERIALIZED VIEW IF EXISTS engine_stats_daily;
	DROP MATERIALIZED VIEW IF EXISTS telemetry_points_hourly;
	-- Remove retention policies
	SELECT remove_retention_policy('telemetry_points');
	SELECT remove_retention_policy('engine_stats');
	`,
}
