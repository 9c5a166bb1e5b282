package tracker

import (
	"errors"
	"fmt"

	"github.com/aerotrace/flight-tracker/internal/geo"
	"github.com/aerotrace/flight-tracker/internal/types"
)

// ErrNoRoute is returned when a vehicle has no declared source and
// destination to measure progress against.
var ErrNoRoute = errors.New("no route information for vehicle")

// Progress computes the vehicle's completion percentage along its
// declared route and projects its position onto the great-circle path.
func (t *Tracker) Progress(vehicleID string) (*types.ProgressReport, error) {
	t.stats.IncrementProgressQueries()

	state, err := t.Current(vehicleID)
	if err != nil {
		return nil, err
	}
	if state.Route == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, vehicleID)
	}
	return progressReport(state.Point, state.Route), nil
}

// RouteInfo returns the full route view for display callers: endpoints,
// waypoints, current progress, and the projected position.
type RouteInfo struct {
	VehicleID string                `json:"vehicle_id"`
	Route     types.RouteDescriptor `json:"route"`
	Progress  types.ProgressReport  `json:"progress"`
	Current   types.Position        `json:"current_position"`
}

// Route returns route and progress information for an active vehicle.
func (t *Tracker) Route(vehicleID string) (*RouteInfo, error) {
	state, err := t.Current(vehicleID)
	if err != nil {
		return nil, err
	}
	if state.Route == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, vehicleID)
	}
	return &RouteInfo{
		VehicleID: vehicleID,
		Route:     *state.Route,
		Progress:  *progressReport(state.Point, state.Route),
		Current:   types.Position{Latitude: state.Point.Latitude, Longitude: state.Point.Longitude},
	}, nil
}

func progressReport(point types.TelemetryPoint, route *types.RouteDescriptor) *types.ProgressReport {
	percent, projected := projectOntoRoute(point, route)
	return &types.ProgressReport{
		VehicleID:         point.VehicleID,
		Percent:           percent,
		Source:            route.Source,
		Destination:       route.Destination,
		ProjectedPosition: projected,
	}
}

// computePercent returns only the clamped completion percentage.
func computePercent(point types.TelemetryPoint, route *types.RouteDescriptor) float64 {
	percent, _ := projectOntoRoute(point, route)
	return percent
}

// projectOntoRoute measures the along-track distance of the current
// position on the source to destination great circle. Clamping absorbs
// measurement noise slightly before departure or past arrival. A
// zero-length route counts as complete once any telemetry exists.
func projectOntoRoute(point types.TelemetryPoint, route *types.RouteDescriptor) (float64, types.Position) {
	src := route.Source
	dst := route.Destination

	total := geo.HaversineKM(src.Latitude, src.Longitude, dst.Latitude, dst.Longitude)
	if total == 0 {
		return 100, types.Position{Latitude: src.Latitude, Longitude: src.Longitude}
	}

	along := geo.AlongTrackKM(
		src.Latitude, src.Longitude,
		dst.Latitude, dst.Longitude,
		point.Latitude, point.Longitude,
	)
	percent := geo.Clamp(100*along/total, 0, 100)

	bearing := geo.InitialBearing(src.Latitude, src.Longitude, dst.Latitude, dst.Longitude)
	lat, lon := geo.PointAtDistance(src.Latitude, src.Longitude, bearing, geo.Clamp(along, 0, total))
	return percent, types.Position{Latitude: lat, Longitude: lon}
}

// pathDistanceKM sums the leg distances of a flown path.
func pathDistanceKM(path []types.TelemetryPoint) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += geo.HaversineKM(
			path[i-1].Latitude, path[i-1].Longitude,
			path[i].Latitude, path[i].Longitude,
		)
	}
	return total
}
