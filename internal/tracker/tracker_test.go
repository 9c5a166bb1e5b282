package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aerotrace/flight-tracker/internal/testutils"
	"github.com/aerotrace/flight-tracker/internal/types"
)

// mockDB is an in-memory DBClient for engine tests.
type mockDB struct {
	mu           sync.Mutex
	states       map[string]*types.ActiveState
	logs         []*types.FlightLogEntry
	storeErr     error
	upsertErr    error
	createLogErr error
	deleteHook   func(vehicleID string)
}

func newMockDB() *mockDB {
	return &mockDB{states: make(map[string]*types.ActiveState)}
}

func (m *mockDB) GetActiveStates() ([]*types.ActiveState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.ActiveState
	for _, s := range m.states {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockDB) GetHistory(vehicleID string) ([]types.TelemetryPoint, error) {
	return nil, nil
}

func (m *mockDB) StoreTelemetryPoint(p *types.TelemetryPoint) error {
	return m.storeErr
}

func (m *mockDB) UpsertActiveState(s *types.ActiveState) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.states[s.Point.VehicleID] = &copied
	return nil
}

func (m *mockDB) DeleteActiveState(vehicleID string) error {
	if m.deleteHook != nil {
		m.deleteHook(vehicleID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, vehicleID)
	return nil
}

func (m *mockDB) CreateFlightLog(entry *types.FlightLogEntry) error {
	if m.createLogErr != nil {
		return m.createLogErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.logs {
		if existing.VehicleID == entry.VehicleID && existing.DepartureTime.Equal(entry.DepartureTime) {
			return types.ErrAlreadyArchived
		}
	}
	m.logs = append(m.logs, entry)
	return nil
}

func (m *mockDB) GetFlightLog(vehicleID string) (*types.FlightLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].VehicleID == vehicleID {
			return m.logs[i], nil
		}
	}
	return nil, nil
}

func (m *mockDB) ListFlightLogs() ([]*types.FlightLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.FlightLogEntry, len(m.logs))
	copy(out, m.logs)
	return out, nil
}

// mockCache is an in-memory CacheClient.
type mockCache struct {
	mu     sync.Mutex
	states map[string]*types.ActiveState
	err    error
}

func newMockCache() *mockCache {
	return &mockCache{states: make(map[string]*types.ActiveState)}
}

func (m *mockCache) StoreActiveState(_ context.Context, state *types.ActiveState) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[state.Point.VehicleID] = &copied
	return nil
}

func (m *mockCache) DeleteActiveState(_ context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, vehicleID)
	return nil
}

func testPolicy() Policy {
	return Policy{
		StaleAfter:       5 * time.Minute,
		NearDestPercent:  95,
		TerminalStatuses: []string{"landed"},
	}
}

func newTestTracker() (*Tracker, *mockDB, *mockCache) {
	db := newMockDB()
	cache := newMockCache()
	return New(db, cache, testPolicy()), db, cache
}

var baseTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func ingestAt(t *testing.T, tr *Tracker, vehicleID string, offset time.Duration, meta *Metadata) types.IngestResult {
	t.Helper()
	res, err := tr.Ingest(context.Background(), testutils.MockPoint(vehicleID, baseTime.Add(offset)), meta)
	if err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}
	return res
}

func TestIngest_CreatesActiveState(t *testing.T) {
	tr, db, cache := newTestTracker()

	res := ingestAt(t, tr, "UA100", 0, nil)
	if res.Status != types.IngestAccepted {
		t.Errorf("Ingest() status = %v, want %v", res.Status, types.IngestAccepted)
	}

	state, err := tr.Current("UA100")
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if !state.Point.EventTime.Equal(baseTime) {
		t.Errorf("Current() event time = %v, want %v", state.Point.EventTime, baseTime)
	}
	if !state.StartedAt.Equal(baseTime) {
		t.Errorf("Current() started at = %v, want %v", state.StartedAt, baseTime)
	}

	db.mu.Lock()
	if _, ok := db.states["UA100"]; !ok {
		t.Error("Expected active state written through to the database")
	}
	db.mu.Unlock()
	cache.mu.Lock()
	if _, ok := cache.states["UA100"]; !ok {
		t.Error("Expected active state mirrored to the cache")
	}
	cache.mu.Unlock()
}

func TestIngest_ActiveStateTracksNewestEventTime(t *testing.T) {
	tr, _, _ := newTestTracker()

	ingestAt(t, tr, "UA100", 0, nil)
	ingestAt(t, tr, "UA100", 2*time.Minute, nil)
	// Out of order: older than the newest point
	res := ingestAt(t, tr, "UA100", time.Minute, nil)
	if res.Status != types.IngestAccepted {
		t.Errorf("Out-of-order ingest status = %v, want %v", res.Status, types.IngestAccepted)
	}

	state, err := tr.Current("UA100")
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	want := baseTime.Add(2 * time.Minute)
	if !state.Point.EventTime.Equal(want) {
		t.Errorf("Active state event time = %v, want newest %v", state.Point.EventTime, want)
	}

	history, err := tr.History("UA100")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() length = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if !history[i].EventTime.After(history[i-1].EventTime) {
			t.Errorf("History not strictly ordered at index %d", i)
		}
	}
}

func TestIngest_DuplicateEventTimeSupersedes(t *testing.T) {
	tr, _, _ := newTestTracker()

	ingestAt(t, tr, "UA100", 0, nil)

	// Same event time, different payload: later write wins, no duplicate
	point := testutils.MockPoint("UA100", baseTime)
	point.Altitude = 36000
	res, err := tr.Ingest(context.Background(), point, nil)
	if err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}
	if res.Status != types.IngestSuperseded {
		t.Errorf("Duplicate ingest status = %v, want %v", res.Status, types.IngestSuperseded)
	}

	history, err := tr.History("UA100")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History() length = %d, want 1 after superseding write", len(history))
	}
	if history[0].Altitude != 36000 {
		t.Errorf("History altitude = %v, want superseding value 36000", history[0].Altitude)
	}

	state, _ := tr.Current("UA100")
	if state.Point.Altitude != 36000 {
		t.Errorf("Active state altitude = %v, want 36000", state.Point.Altitude)
	}
}

func TestIngest_SupersedingOlderPointKeepsSnapshot(t *testing.T) {
	tr, _, _ := newTestTracker()

	ingestAt(t, tr, "UA100", 0, nil)
	ingestAt(t, tr, "UA100", time.Minute, nil)

	point := testutils.MockPoint("UA100", baseTime)
	point.Altitude = 12000
	res, err := tr.Ingest(context.Background(), point, nil)
	if err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}
	if res.Status != types.IngestSuperseded {
		t.Errorf("Ingest() status = %v, want %v", res.Status, types.IngestSuperseded)
	}

	state, _ := tr.Current("UA100")
	if state.Point.Altitude == 12000 {
		t.Error("Superseding a non-newest point must not change the active snapshot")
	}
	if !state.Point.EventTime.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("Active state event time = %v, want %v", state.Point.EventTime, baseTime.Add(time.Minute))
	}
}

func TestIngest_RejectsOutOfRangeFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.TelemetryPoint)
	}{
		{"latitude too large", func(p *types.TelemetryPoint) { p.Latitude = 95 }},
		{"longitude too small", func(p *types.TelemetryPoint) { p.Longitude = -181 }},
		{"negative altitude", func(p *types.TelemetryPoint) { p.Altitude = -10 }},
		{"negative speed", func(p *types.TelemetryPoint) { p.Speed = -1 }},
		{"heading above 360", func(p *types.TelemetryPoint) { p.Heading = 361 }},
		{"missing vehicle id", func(p *types.TelemetryPoint) { p.VehicleID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _, _ := newTestTracker()
			point := testutils.MockPoint("UA100", baseTime)
			tt.mutate(&point)

			res, err := tr.Ingest(context.Background(), point, nil)
			if res.Status != types.IngestRejected {
				t.Errorf("Ingest() status = %v, want %v", res.Status, types.IngestRejected)
			}
			var verr *types.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Ingest() error = %v, want ValidationError", err)
			}
			if point.VehicleID != "" {
				if _, err := tr.Current("UA100"); !errors.Is(err, types.ErrNotFound) {
					t.Error("Rejected point must not create state")
				}
			}
		})
	}
}

func TestIngest_AssignsReceiptTime(t *testing.T) {
	tr, _, _ := newTestTracker()
	now := baseTime.Add(time.Hour)
	tr.now = func() time.Time { return now }

	point := testutils.MockPoint("UA100", baseTime)
	point.ReceiptTime = baseTime.Add(-time.Hour) // caller-supplied, must be ignored
	if _, err := tr.Ingest(context.Background(), point, nil); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	state, _ := tr.Current("UA100")
	if !state.Point.ReceiptTime.Equal(now) {
		t.Errorf("Receipt time = %v, want processing time %v", state.Point.ReceiptTime, now)
	}
}

func TestIngest_CacheFailureIsNotFatal(t *testing.T) {
	tr, _, cache := newTestTracker()
	cache.err = errors.New("redis down")

	if _, err := tr.Ingest(context.Background(), testutils.MockPoint("UA100", baseTime), nil); err != nil {
		t.Fatalf("Ingest() failed on cache error: %v", err)
	}
	if _, err := tr.Current("UA100"); err != nil {
		t.Errorf("Current() failed: %v", err)
	}
}

func TestIngest_StorageFailureLeavesNoState(t *testing.T) {
	tr, db, cache := newTestTracker()
	db.storeErr = errors.New("db down")

	_, err := tr.Ingest(context.Background(), testutils.MockPoint("UA100", baseTime), nil)
	if err == nil {
		t.Fatal("Ingest() should propagate storage errors")
	}
	if _, err := tr.Current("UA100"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Current() after failed ingest error = %v, want ErrNotFound", err)
	}
	if got := tr.ListActive(); len(got) != 0 {
		t.Errorf("ListActive() after failed ingest length = %d, want 0", len(got))
	}
	cache.mu.Lock()
	if _, ok := cache.states["UA100"]; ok {
		t.Error("Failed ingest must not reach the cache")
	}
	cache.mu.Unlock()

	// The caller retries once storage recovers
	db.storeErr = nil
	res := ingestAt(t, tr, "UA100", 0, nil)
	if res.Status != types.IngestAccepted {
		t.Errorf("Retry status = %v, want %v", res.Status, types.IngestAccepted)
	}
}

func TestIngest_StorageFailureKeepsPriorState(t *testing.T) {
	tr, db, _ := newTestTracker()
	ingestAt(t, tr, "UA100", 0, nil)
	db.storeErr = errors.New("db down")

	point := testutils.MockPoint("UA100", baseTime.Add(time.Minute))
	point.Altitude = 36000
	if _, err := tr.Ingest(context.Background(), point, nil); err == nil {
		t.Fatal("Ingest() should propagate storage errors")
	}

	state, err := tr.Current("UA100")
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if !state.Point.EventTime.Equal(baseTime) {
		t.Errorf("Active state event time = %v, want prior %v", state.Point.EventTime, baseTime)
	}
	history, err := tr.History("UA100")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("History() length = %d, want 1 after failed ingest", len(history))
	}
}

func TestIngest_UpsertFailureKeepsPriorState(t *testing.T) {
	tr, db, _ := newTestTracker()
	ingestAt(t, tr, "UA100", 0, nil)
	db.upsertErr = errors.New("db down")

	if _, err := tr.Ingest(context.Background(), testutils.MockPoint("UA100", baseTime.Add(time.Minute)), nil); err == nil {
		t.Fatal("Ingest() should propagate storage errors")
	}

	state, err := tr.Current("UA100")
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if !state.Point.EventTime.Equal(baseTime) {
		t.Errorf("Active state event time = %v, want prior %v", state.Point.EventTime, baseTime)
	}
	if history, _ := tr.History("UA100"); len(history) != 1 {
		t.Errorf("History() length = %d, want 1 after failed ingest", len(history))
	}
}

func TestListActive(t *testing.T) {
	tr, _, _ := newTestTracker()
	ingestAt(t, tr, "UA100", 0, nil)
	ingestAt(t, tr, "DL200", 0, nil)

	states := tr.ListActive()
	if len(states) != 2 {
		t.Fatalf("ListActive() length = %d, want 2", len(states))
	}
	if states[0].Point.VehicleID != "DL200" || states[1].Point.VehicleID != "UA100" {
		t.Errorf("ListActive() order = [%s %s], want [DL200 UA100]",
			states[0].Point.VehicleID, states[1].Point.VehicleID)
	}
}

func TestFlightsByRoute(t *testing.T) {
	tr, _, _ := newTestTracker()
	ingestAt(t, tr, "UA100", 0, &Metadata{SourceCode: "JFK", DestinationCode: "LAX"})
	ingestAt(t, tr, "DL200", 0, &Metadata{SourceCode: "JFK", DestinationCode: "SFO"})
	ingestAt(t, tr, "AA300", 0, nil)

	onRoute := tr.FlightsByRoute("JFK", "LAX")
	if len(onRoute) != 1 || onRoute[0].Point.VehicleID != "UA100" {
		t.Errorf("FlightsByRoute(JFK, LAX) = %d vehicles, want exactly UA100", len(onRoute))
	}
}

func TestListCompleted(t *testing.T) {
	tr, db, _ := newTestTracker()
	db.logs = append(db.logs, &types.FlightLogEntry{LogID: "log-1", VehicleID: "UA100"})

	entries, err := tr.ListCompleted()
	if err != nil {
		t.Fatalf("ListCompleted() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].VehicleID != "UA100" {
		t.Errorf("ListCompleted() = %d entries", len(entries))
	}
}

func TestHistory_UnknownVehicle(t *testing.T) {
	tr, _, _ := newTestTracker()
	if _, err := tr.History("GHOST"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("History() error = %v, want ErrNotFound", err)
	}
}

func TestIngest_RouteMetadataAttached(t *testing.T) {
	tr, _, _ := newTestTracker()
	ingestAt(t, tr, "UA100", 0, &Metadata{
		SourceCode:      "JFK",
		DestinationCode: "LAX",
		AircraftType:    "B789",
		Airline:         "United",
	})

	state, err := tr.Current("UA100")
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if state.Route == nil {
		t.Fatal("Expected route descriptor from airport lookup")
	}
	if state.Route.Source.Code != "JFK" || state.Route.Destination.Code != "LAX" {
		t.Errorf("Route = %s->%s, want JFK->LAX", state.Route.Source.Code, state.Route.Destination.Code)
	}
	if len(state.Route.Waypoints) == 0 {
		t.Error("Expected route waypoints")
	}
	if state.AircraftType != "B789" || state.Airline != "United" {
		t.Errorf("Metadata = (%s, %s), want (B789, United)", state.AircraftType, state.Airline)
	}
}
