package tracker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/aerotrace/flight-tracker/internal/types"
	"github.com/google/uuid"
)

// Run executes lifecycle passes on a fixed interval until the context is
// canceled. Each pass is independent; a failed pass is retried on the
// next tick.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			completed, err := t.RunLifecyclePass(ctx)
			if err != nil {
				log.Printf("Lifecycle pass failed: %v", err)
				continue
			}
			if completed > 0 {
				log.Printf("Lifecycle pass completed %d flight(s)", completed)
			}
		}
	}
}

// RunLifecyclePass scans active vehicles, archives those whose journey
// has ended, and reports how many completed. Completing zero vehicles is
// not an error, and running the pass twice in a row has no extra effect.
func (t *Tracker) RunLifecyclePass(ctx context.Context) (int, error) {
	t.mu.RLock()
	candidates := make(map[string]*vehicle, len(t.vehicles))
	for id, v := range t.vehicles {
		candidates[id] = v
	}
	t.mu.RUnlock()

	completed := 0
	for id, v := range candidates {
		done, err := t.maybeArchive(ctx, id, v)
		if err != nil {
			// Storage unavailability aborts the pass; the next tick
			// retries with the vehicle still active.
			return completed, err
		}
		if done {
			completed++
		}
	}

	t.stats.SetActiveVehicles(uint64(t.activeCount()))
	return completed, nil
}

// maybeArchive checks the trigger condition and, when met, migrates the
// vehicle's history into the flight log. The vehicle lock serializes this
// read-build-write-delete sequence against concurrent ingestion.
func (t *Tracker) maybeArchive(ctx context.Context, vehicleID string, v *vehicle) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == nil || len(v.history) == 0 {
		return false, nil
	}
	if !t.shouldComplete(v.state) {
		return false, nil
	}

	entry := t.buildLogEntry(v)
	switch err := t.db.CreateFlightLog(entry); {
	case errors.Is(err, types.ErrAlreadyArchived):
		// An earlier pass wrote the log but crashed before removing the
		// active state. Finish the removal; this is a no-op race, not an
		// error.
		log.Printf("Flight log for %s already written, finishing archival", vehicleID)
	case err != nil:
		t.stats.IncrementStorageErrors()
		return false, err
	}

	// Log entry is durable; removing the active state last means a crash
	// here leaves the vehicle active and retriggers rather than losing
	// data.
	if err := t.db.DeleteActiveState(vehicleID); err != nil {
		t.stats.IncrementStorageErrors()
		return false, err
	}
	if err := t.cache.DeleteActiveState(ctx, vehicleID); err != nil {
		log.Printf("Warning: failed to evict active state for %s: %v", vehicleID, err)
	}

	v.state = nil
	v.history = nil
	t.mu.Lock()
	delete(t.vehicles, vehicleID)
	t.mu.Unlock()

	t.stats.IncrementCompletedFlights()
	return true, nil
}

// shouldComplete decides the active to completed transition: a terminal
// status reported by the telemetry itself, or telemetry gone stale while
// the vehicle was already near its destination.
func (t *Tracker) shouldComplete(state *types.ActiveState) bool {
	if t.policy.terminal(state.Point.Status) {
		return true
	}
	if t.now().Sub(state.Point.EventTime) < t.policy.StaleAfter {
		return false
	}
	if state.Route == nil {
		return false
	}
	return state.ReadyForCompletion || state.Progress >= t.policy.NearDestPercent
}

func (t *Tracker) buildLogEntry(v *vehicle) *types.FlightLogEntry {
	path := make([]types.TelemetryPoint, len(v.history))
	copy(path, v.history)

	first := path[0]
	last := path[len(path)-1]
	return &types.FlightLogEntry{
		LogID:          uuid.New().String(),
		VehicleID:      first.VehicleID,
		Path:           path,
		Route:          v.state.Route,
		CompletedAt:    t.now().UTC(),
		DepartureTime:  first.EventTime,
		ArrivalTime:    last.EventTime,
		Duration:       last.EventTime.Sub(first.EventTime),
		PointCount:     len(path),
		PathDistanceKM: pathDistanceKM(path),
		AutoCompleted:  !t.policy.terminal(last.Status),
		FinalProgress:  v.state.Progress,
		AircraftType:   v.state.AircraftType,
		Airline:        v.state.Airline,
	}
}
