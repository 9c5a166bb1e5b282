// Package tracker implements the temporal flight state engine: telemetry
// ingestion, the active-state table, point-in-time location queries,
// route progress, and the active to completed lifecycle.
package tracker

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/aerotrace/flight-tracker/internal/airports"
	"github.com/aerotrace/flight-tracker/internal/parser"
	"github.com/aerotrace/flight-tracker/internal/stats"
	"github.com/aerotrace/flight-tracker/internal/types"
)

// DBClient is the persistence surface the engine needs. Declared here for
// testability.
type DBClient interface {
	GetActiveStates() ([]*types.ActiveState, error)
	GetHistory(vehicleID string) ([]types.TelemetryPoint, error)
	StoreTelemetryPoint(p *types.TelemetryPoint) error
	UpsertActiveState(s *types.ActiveState) error
	DeleteActiveState(vehicleID string) error
	// CreateFlightLog returns types.ErrAlreadyArchived when the journey
	// is already in the log.
	CreateFlightLog(entry *types.FlightLogEntry) error
	GetFlightLog(vehicleID string) (*types.FlightLogEntry, error)
	ListFlightLogs() ([]*types.FlightLogEntry, error)
}

// CacheClient mirrors active states into the hot read path. Cache
// failures are logged and swallowed; the in-memory table stays
// authoritative.
type CacheClient interface {
	StoreActiveState(ctx context.Context, state *types.ActiveState) error
	DeleteActiveState(ctx context.Context, vehicleID string) error
}

// Policy holds the lifecycle thresholds. They are configuration, not
// constants.
type Policy struct {
	StaleAfter       time.Duration
	NearDestPercent  float64
	TerminalStatuses []string
}

func (p Policy) terminal(status string) bool {
	for _, s := range p.TerminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// vehicle is the per-vehicle engine entry. Its mutex serializes ingestion
// against archival for that vehicle; different vehicles never contend.
type vehicle struct {
	mu      sync.Mutex
	state   *types.ActiveState
	history []types.TelemetryPoint // sorted by EventTime
}

// Tracker is the engine. The in-memory table is authoritative for active
// vehicles; every mutation is written through to the database and
// mirrored to the cache.
type Tracker struct {
	db     DBClient
	cache  CacheClient
	policy Policy
	stats  *stats.Stats

	mu       sync.RWMutex
	vehicles map[string]*vehicle

	now func() time.Time
}

// New creates a new Tracker.
func New(db DBClient, cache CacheClient, policy Policy) *Tracker {
	return &Tracker{
		db:       db,
		cache:    cache,
		policy:   policy,
		stats:    stats.New(),
		vehicles: make(map[string]*vehicle),
		now:      time.Now,
	}
}

// Stats returns the engine counters.
func (t *Tracker) Stats() *stats.Stats { return t.stats }

// LoadActive restores active states and their histories from the
// database, typically at startup after a restart mid-journey.
func (t *Tracker) LoadActive(ctx context.Context) error {
	states, err := t.db.GetActiveStates()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, state := range states {
		history, err := t.db.GetHistory(state.Point.VehicleID)
		if err != nil {
			return err
		}
		t.vehicles[state.Point.VehicleID] = &vehicle{state: state, history: history}
		if err := t.cache.StoreActiveState(ctx, state); err != nil {
			log.Printf("Warning: failed to cache active state for %s: %v", state.Point.VehicleID, err)
		}
	}
	t.stats.SetActiveVehicles(uint64(len(t.vehicles)))
	return nil
}

// Metadata carries the optional static attributes a report may attach to
// a journey at ingestion time.
type Metadata struct {
	SourceCode      string
	DestinationCode string
	AircraftType    string
	Airline         string
}

// IngestReport applies a parsed feed report.
func (t *Tracker) IngestReport(ctx context.Context, r *parser.Report) (types.IngestResult, error) {
	point := r.Point()
	return t.Ingest(ctx, point, &Metadata{
		SourceCode:      r.Source,
		DestinationCode: r.Destination,
		AircraftType:    r.AircraftType,
		Airline:         r.Airline,
	})
}

// Ingest validates and applies one telemetry point. Duplicate event times
// supersede the stored point (last write wins); out-of-order points are
// appended to history without touching the active snapshot. The receipt
// time is always assigned here. The database writes commit before the
// in-memory table so a storage failure leaves no partial state behind.
func (t *Tracker) Ingest(ctx context.Context, point types.TelemetryPoint, meta *Metadata) (types.IngestResult, error) {
	start := t.now()
	t.stats.IncrementTotalReports()
	t.stats.UpdateLastReportTime()

	if err := parser.ValidatePoint(&point); err != nil {
		t.stats.IncrementRejected()
		return types.IngestResult{Status: types.IngestRejected, VehicleID: point.VehicleID}, err
	}
	point.ReceiptTime = t.now().UTC()

	v, created := t.getOrCreate(point.VehicleID)
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == nil && !created {
		// Raced with archival: the entry was removed from the table while
		// we waited on the vehicle lock. This point opens a new journey,
		// so put the vehicle back where readers can see it. Same
		// v.mu then t.mu order as archival.
		v.history = nil
		t.mu.Lock()
		t.vehicles[point.VehicleID] = v
		t.mu.Unlock()
		created = true
	}

	state := v.state
	if created {
		state = t.newActiveState(point, meta)
	}

	idx, status := classifyPoint(v.history, point)
	next := *state
	t.refreshSnapshot(&next, v.history, point, idx, status)

	if err := t.db.StoreTelemetryPoint(&point); err != nil {
		t.abortIngest(v, point.VehicleID, created)
		return types.IngestResult{Status: status, VehicleID: point.VehicleID}, err
	}
	if err := t.db.UpsertActiveState(&next); err != nil {
		t.abortIngest(v, point.VehicleID, created)
		return types.IngestResult{Status: status, VehicleID: point.VehicleID}, err
	}

	commitPoint(v, point, idx, status)
	v.state = &next
	if created {
		t.stats.IncrementCreatedFlights()
	}
	if status == types.IngestSuperseded {
		t.stats.IncrementSuperseded()
	} else {
		if idx != len(v.history)-1 {
			t.stats.IncrementOutOfOrder()
		}
		t.stats.IncrementAccepted()
	}

	if err := t.cache.StoreActiveState(ctx, v.state); err != nil {
		log.Printf("Warning: failed to cache active state for %s: %v", point.VehicleID, err)
	}

	t.stats.SetActiveVehicles(uint64(t.activeCount()))
	t.stats.AddProcessingTime(t.now().Sub(start))
	return types.IngestResult{Status: status, VehicleID: point.VehicleID}, nil
}

// classifyPoint finds the merge position for the point in the ordered
// history and reports whether it supersedes a stored point.
func classifyPoint(history []types.TelemetryPoint, point types.TelemetryPoint) (int, types.IngestStatus) {
	idx := sort.Search(len(history), func(i int) bool {
		return !history[i].EventTime.Before(point.EventTime)
	})
	if idx < len(history) && history[idx].EventTime.Equal(point.EventTime) {
		return idx, types.IngestSuperseded
	}
	return idx, types.IngestAccepted
}

// commitPoint merges the point into the ordered history at idx.
func commitPoint(v *vehicle, point types.TelemetryPoint, idx int, status types.IngestStatus) {
	if status == types.IngestSuperseded {
		v.history[idx] = point
		return
	}
	v.history = append(v.history, types.TelemetryPoint{})
	copy(v.history[idx+1:], v.history[idx:])
	v.history[idx] = point
}

// refreshSnapshot applies the point to the prospective snapshot when it
// will be the newest known point for the vehicle. Superseding a
// non-newest point never regresses the snapshot.
func (t *Tracker) refreshSnapshot(next *types.ActiveState, history []types.TelemetryPoint, point types.TelemetryPoint, idx int, status types.IngestStatus) {
	newest := idx == len(history)
	if status == types.IngestSuperseded {
		newest = idx == len(history)-1
	}
	if !newest {
		return
	}
	next.Point = point
	if next.Route != nil {
		next.Progress = computePercent(point, next.Route)
		if next.Progress >= t.policy.NearDestPercent {
			next.ReadyForCompletion = true
		}
	}
}

// abortIngest unwinds a failed ingest. A journey opened by this call is
// removed again so the vehicle is not left active on telemetry the
// database never accepted.
func (t *Tracker) abortIngest(v *vehicle, vehicleID string, created bool) {
	t.stats.IncrementStorageErrors()
	if created {
		v.state = nil
		v.history = nil
		t.mu.Lock()
		delete(t.vehicles, vehicleID)
		t.mu.Unlock()
	}
}

func (t *Tracker) newActiveState(point types.TelemetryPoint, meta *Metadata) *types.ActiveState {
	state := &types.ActiveState{
		Point:     point,
		StartedAt: point.EventTime,
	}
	if meta == nil {
		return state
	}
	state.AircraftType = meta.AircraftType
	state.Airline = meta.Airline
	if meta.SourceCode != "" && meta.DestinationCode != "" {
		route, err := airports.Route(meta.SourceCode, meta.DestinationCode)
		if err != nil {
			log.Printf("Warning: no route for %s: %v", point.VehicleID, err)
		} else {
			state.Route = route
		}
	}
	return state
}

func (t *Tracker) getOrCreate(vehicleID string) (*vehicle, bool) {
	t.mu.RLock()
	v, ok := t.vehicles[vehicleID]
	t.mu.RUnlock()
	if ok {
		return v, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.vehicles[vehicleID]; ok {
		return v, false
	}
	v = &vehicle{}
	t.vehicles[vehicleID] = v
	return v, true
}

func (t *Tracker) lookup(vehicleID string) *vehicle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vehicles[vehicleID]
}

func (t *Tracker) activeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.vehicles)
}

// Current returns the active snapshot for a vehicle.
func (t *Tracker) Current(vehicleID string) (*types.ActiveState, error) {
	v := t.lookup(vehicleID)
	if v == nil {
		return nil, types.ErrNotFound
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == nil {
		return nil, types.ErrNotFound
	}
	state := *v.state
	return &state, nil
}

// ListActive returns a snapshot of every active vehicle.
func (t *Tracker) ListActive() []*types.ActiveState {
	t.mu.RLock()
	entries := make([]*vehicle, 0, len(t.vehicles))
	for _, v := range t.vehicles {
		entries = append(entries, v)
	}
	t.mu.RUnlock()

	states := make([]*types.ActiveState, 0, len(entries))
	for _, v := range entries {
		v.mu.Lock()
		if v.state != nil {
			state := *v.state
			states = append(states, &state)
		}
		v.mu.Unlock()
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].Point.VehicleID < states[j].Point.VehicleID
	})
	return states
}

// FlightsByRoute returns active vehicles flying the given route.
func (t *Tracker) FlightsByRoute(source, destination string) []*types.ActiveState {
	var out []*types.ActiveState
	for _, state := range t.ListActive() {
		if state.Route == nil {
			continue
		}
		if state.Route.Source.Code == source && state.Route.Destination.Code == destination {
			out = append(out, state)
		}
	}
	return out
}

// History returns the full ordered telemetry history for a vehicle,
// falling back to the archived path once the journey has completed.
func (t *Tracker) History(vehicleID string) ([]types.TelemetryPoint, error) {
	if v := t.lookup(vehicleID); v != nil {
		v.mu.Lock()
		if len(v.history) > 0 {
			out := make([]types.TelemetryPoint, len(v.history))
			copy(out, v.history)
			v.mu.Unlock()
			return out, nil
		}
		v.mu.Unlock()
	}

	entry, err := t.db.GetFlightLog(vehicleID)
	if err != nil {
		return nil, err
	}
	if entry == nil || len(entry.Path) == 0 {
		return nil, types.ErrNotFound
	}
	return entry.Path, nil
}

// ListCompleted returns the flight log, most recent first.
func (t *Tracker) ListCompleted() ([]*types.FlightLogEntry, error) {
	return t.db.ListFlightLogs()
}
