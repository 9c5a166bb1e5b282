package tracker

import (
	"sort"
	"time"

	"github.com/aerotrace/flight-tracker/internal/geo"
	"github.com/aerotrace/flight-tracker/internal/types"
)

// Locate reconstructs the vehicle's state at the requested time from its
// sparse history. Exact hits return the stored point verbatim; a request
// between two points interpolates them; a request outside the known range
// returns the nearest point flagged as an estimate.
func (t *Tracker) Locate(vehicleID string, requested time.Time) (*types.EstimatedState, error) {
	t.stats.IncrementLocateQueries()

	history, err := t.History(vehicleID)
	if err != nil {
		return nil, err
	}

	requested = requested.UTC()
	idx := sort.Search(len(history), func(i int) bool {
		return !history[i].EventTime.Before(requested)
	})

	if idx < len(history) && history[idx].EventTime.Equal(requested) {
		return estimateFrom(&history[idx], requested, requested, types.EstimateExact), nil
	}

	switch {
	case idx == 0:
		// Before the first known point.
		ceiling := &history[0]
		return estimateFrom(ceiling, requested, ceiling.EventTime, types.EstimateNearestAfter), nil
	case idx == len(history):
		// After the last known point.
		floor := &history[len(history)-1]
		return estimateFrom(floor, requested, floor.EventTime, types.EstimateNearestBefore), nil
	}

	return interpolate(&history[idx-1], &history[idx], requested), nil
}

func estimateFrom(p *types.TelemetryPoint, requested, actual time.Time, basis types.EstimateBasis) *types.EstimatedState {
	return &types.EstimatedState{
		VehicleID:     p.VehicleID,
		RequestedTime: requested,
		ActualTime:    actual,
		Basis:         basis,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		Altitude:      p.Altitude,
		Speed:         p.Speed,
		Heading:       p.Heading,
		Status:        p.Status,
	}
}

// interpolate composes a state between floor and ceiling proportional to
// elapsed time. Heading takes the shorter angular path since headings
// wrap at 360. Status has no in-between, so the floor's status is used.
func interpolate(floor, ceiling *types.TelemetryPoint, requested time.Time) *types.EstimatedState {
	span := ceiling.EventTime.Sub(floor.EventTime)
	frac := float64(requested.Sub(floor.EventTime)) / float64(span)

	return &types.EstimatedState{
		VehicleID:     floor.VehicleID,
		RequestedTime: requested,
		ActualTime:    requested,
		Basis:         types.EstimateInterpolated,
		Latitude:      geo.Lerp(floor.Latitude, ceiling.Latitude, frac),
		Longitude:     geo.Lerp(floor.Longitude, ceiling.Longitude, frac),
		Altitude:      geo.Lerp(floor.Altitude, ceiling.Altitude, frac),
		Speed:         geo.Lerp(floor.Speed, ceiling.Speed, frac),
		Heading:       geo.LerpAngle(floor.Heading, ceiling.Heading, frac),
		Status:        floor.Status,
	}
}
