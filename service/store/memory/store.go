package memory

import (
	"context"
	"sync"

	"github.com/grovekit/grove/internal/clock"
	"github.com/grovekit/grove/service/store"
)

// Service is the in-memory output store. It never fails - persistence
// durability is an external concern handled by the fs implementation.
type Service struct {
	mu      sync.RWMutex
	records map[string]map[int]*store.Record
	latest  map[string]int
}

// New creates an empty in-memory output store.
func New() *Service {
	return &Service{
		records: make(map[string]map[int]*store.Record),
		latest:  make(map[string]int),
	}
}

// Write stores or overwrites the record for (nodeID, iteration).
func (s *Service) Write(_ context.Context, nodeID string, iteration int, payload map[string]interface{}) error {
	record := &store.Record{
		NodeID:     nodeID,
		Iteration:  iteration,
		Payload:    payload,
		ProducedAt: clock.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	iterations, ok := s.records[nodeID]
	if !ok {
		iterations = make(map[int]*store.Record)
		s.records[nodeID] = iterations
	}
	iterations[iteration] = record
	if current, ok := s.latest[nodeID]; !ok || iteration > current {
		s.latest[nodeID] = iteration
	}
	return nil
}

// Read returns the record for (nodeID, iteration), or nil when absent.
func (s *Service) Read(_ context.Context, nodeID string, iteration int) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[nodeID][iteration], nil
}

// ReadLatest returns the record with the highest written iteration.
func (s *Service) ReadLatest(_ context.Context, nodeID string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iteration, ok := s.latest[nodeID]
	if !ok {
		return nil, nil
	}
	return s.records[nodeID][iteration], nil
}

// History returns a restartable iterator over nodeID's records in ascending
// iteration order. The scan is driven by the store's own presence signal:
// it stops at the first absent iteration rather than any fixed upper bound.
func (s *Service) History(ctx context.Context, nodeID string) store.Iterator {
	iteration := 0
	return func() (*store.Record, bool) {
		record, _ := s.Read(ctx, nodeID, iteration)
		if record == nil {
			return nil, false
		}
		iteration++
		return record, true
	}
}

var _ store.Service = (*Service)(nil)
