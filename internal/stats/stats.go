package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aerotrace/flight-tracker/internal/db"
)

// Stats tracks engine processing statistics.
type Stats struct {
	// Ingest outcomes
	TotalReports uint64
	Accepted     uint64
	Superseded   uint64
	Rejected     uint64
	OutOfOrder   uint64

	// Lifecycle
	CreatedFlights   uint64
	CompletedFlights uint64

	// Queries
	LocateQueries   uint64
	ProgressQueries uint64

	// Failures
	StorageErrors uint64

	// Active tracking
	ActiveVehicles uint64

	// Timing
	LastReportTime time.Time
	ProcessingTime time.Duration

	// Database client for persistence
	db *db.Client

	mu sync.RWMutex
}

// New creates a new Stats instance.
func New() *Stats {
	return &Stats{
		LastReportTime: time.Now(),
	}
}

// SetDB sets the database client for persistence.
func (s *Stats) SetDB(db *db.Client) {
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
}

// Persist stores the current statistics in the database.
func (s *Stats) Persist() error {
	s.mu.RLock()
	if s.db == nil {
		s.mu.RUnlock()
		return fmt.Errorf("database client not set")
	}
	s.mu.RUnlock()

	return s.db.StoreEngineStats(s.GetStats())
}

func (s *Stats) IncrementTotalReports() { atomic.AddUint64(&s.TotalReports, 1) }

func (s *Stats) IncrementAccepted() { atomic.AddUint64(&s.Accepted, 1) }

func (s *Stats) IncrementSuperseded() { atomic.AddUint64(&s.Superseded, 1) }

func (s *Stats) IncrementRejected() { atomic.AddUint64(&s.Rejected, 1) }

func (s *Stats) IncrementOutOfOrder() { atomic.AddUint64(&s.OutOfOrder, 1) }

func (s *Stats) IncrementCreatedFlights() { atomic.AddUint64(&s.CreatedFlights, 1) }

func (s *Stats) IncrementCompletedFlights() { atomic.AddUint64(&s.CompletedFlights, 1) }

func (s *Stats) IncrementLocateQueries() { atomic.AddUint64(&s.LocateQueries, 1) }

func (s *Stats) IncrementProgressQueries() { atomic.AddUint64(&s.ProgressQueries, 1) }

func (s *Stats) IncrementStorageErrors() { atomic.AddUint64(&s.StorageErrors, 1) }

// SetActiveVehicles sets the number of active vehicles.
func (s *Stats) SetActiveVehicles(count uint64) {
	atomic.StoreUint64(&s.ActiveVehicles, count)
}

// UpdateLastReportTime updates the last report time.
func (s *Stats) UpdateLastReportTime() {
	s.mu.Lock()
	s.LastReportTime = time.Now()
	s.mu.Unlock()
}

// AddProcessingTime adds to the total processing time.
func (s *Stats) AddProcessingTime(duration time.Duration) {
	s.mu.Lock()
	s.ProcessingTime += duration
	s.mu.Unlock()
}

// GetStats returns a copy of the current statistics.
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"total_reports":     atomic.LoadUint64(&s.TotalReports),
		"accepted":          atomic.LoadUint64(&s.Accepted),
		"superseded":        atomic.LoadUint64(&s.Superseded),
		"rejected":          atomic.LoadUint64(&s.Rejected),
		"out_of_order":      atomic.LoadUint64(&s.OutOfOrder),
		"created_flights":   atomic.LoadUint64(&s.CreatedFlights),
		"completed_flights": atomic.LoadUint64(&s.CompletedFlights),
		"locate_queries":    atomic.LoadUint64(&s.LocateQueries),
		"progress_queries":  atomic.LoadUint64(&s.ProgressQueries),
		"storage_errors":    atomic.LoadUint64(&s.StorageErrors),
		"active_vehicles":   atomic.LoadUint64(&s.ActiveVehicles),
		"last_report_time":  s.LastReportTime,
		"processing_time":   s.ProcessingTime,
	}
}

// String returns a string representation of the statistics.
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Total Reports: %d\n"+
			"Accepted: %d\n"+
			"Superseded: %d\n"+
			"Rejected: %d\n"+
			"Out Of Order: %d\n"+
			"Created Flights: %d\n"+
			"Completed Flights: %d\n"+
			"Locate Queries: %d\n"+
			"Progress Queries: %d\n"+
			"Storage Errors: %d\n"+
			"Active Vehicles: %d\n"+
			"Last Report Time: %s\n"+
			"Processing Time: %s",
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
		stats["last_report_time"],
		stats["processing_time"],
	)
}

// StartPersistence starts periodic persistence of statistics.
func (s *Stats) StartPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final persistence before shutdown
			if err := s.Persist(); err != nil {
				fmt.Printf("Failed to persist final statistics: %v\n", err)
			}
			return
		case <-ticker.C:
			if err := s.Persist(); err != nil {
				fmt.Printf("Failed to persist statistics: %v\n", err)
			}
		}
	}
}
