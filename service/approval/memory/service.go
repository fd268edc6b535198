// Package memory provides the in-process approval service used by default.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grovekit/grove/internal/clock"
	"github.com/grovekit/grove/internal/idgen"
	"github.com/grovekit/grove/service/approval"
	daostore "github.com/grovekit/grove/service/dao/store"
	"github.com/grovekit/grove/service/messaging"
	queue "github.com/grovekit/grove/service/messaging/memory"
)

// Service implements approval.Service over in-memory DAO stores and a
// fan-out queue. Await is channel based so the engine can suspend a branch
// without polling.
type Service struct {
	requests  *daostore.MemoryStore[string, approval.Request]
	decisions *daostore.MemoryStore[string, approval.Decision]
	queue     messaging.Queue[approval.Request]

	mux      sync.Mutex
	preseeds map[string]*approval.Decision
	waiters  map[string][]chan *approval.Decision
}

// New creates an in-memory approval service.
func New(config queue.Config) *Service {
	return &Service{
		requests:  daostore.NewMemoryStore[string, approval.Request](func(r *approval.Request) string { return r.ID }),
		decisions: daostore.NewMemoryStore[string, approval.Decision](func(d *approval.Decision) string { return d.RequestID }),
		queue:     queue.NewQueue[approval.Request](config),
		preseeds:  map[string]*approval.Decision{},
		waiters:   map[string][]chan *approval.Decision{},
	}
}

// Request records a pending request and publishes it to the fan-out queue.
func (s *Service) Request(ctx context.Context, request *approval.Request) error {
	if request.ID == "" {
		request.ID = idgen.New()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = clock.Now()
	}
	if err := s.requests.Save(ctx, request); err != nil {
		return err
	}
	return s.queue.Publish(ctx, request)
}

// Pending lists undecided requests, newest last; runID narrows the listing
// when non-empty.
func (s *Service) Pending(ctx context.Context, runID string) ([]*approval.Request, error) {
	all, err := s.requests.List(ctx)
	if err != nil {
		return nil, err
	}
	var result []*approval.Request
	for _, request := range all {
		if runID != "" && request.RunID != runID {
			continue
		}
		if decided, _ := s.decisions.Load(ctx, request.ID); decided != nil {
			continue
		}
		result = append(result, request)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// Decide resolves a pending request and wakes every waiter.
func (s *Service) Decide(ctx context.Context, requestID string, decision *approval.Decision) error {
	request, err := s.requests.Load(ctx, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("unknown approval request %s", requestID)
	}
	decision.RequestID = requestID
	if decision.NodeID == "" {
		decision.NodeID = request.NodeID
	}
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = clock.Now()
	}
	if err = s.decisions.Save(ctx, decision); err != nil {
		return err
	}
	s.mux.Lock()
	waiters := s.waiters[requestID]
	delete(s.waiters, requestID)
	s.mux.Unlock()
	for _, waiter := range waiters {
		waiter <- decision
	}
	return nil
}

// Await blocks until the request is decided or ctx is done.
func (s *Service) Await(ctx context.Context, requestID string) (*approval.Decision, error) {
	// The decided check and waiter registration share the lock held by
	// Decide's wake-up, so a decision can never slip between them.
	s.mux.Lock()
	if decided, _ := s.decisions.Load(ctx, requestID); decided != nil {
		s.mux.Unlock()
		return decided, nil
	}
	waiter := make(chan *approval.Decision, 1)
	s.waiters[requestID] = append(s.waiters[requestID], waiter)
	s.mux.Unlock()

	select {
	case decision := <-waiter:
		return decision, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Preseed supplies a decision for a gate before it is reached.
func (s *Service) Preseed(_ context.Context, nodeID string, decision *approval.Decision) error {
	if decision == nil {
		return fmt.Errorf("nil decision for node %s", nodeID)
	}
	decision.NodeID = nodeID
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = clock.Now()
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.preseeds[nodeID] = decision
	return nil
}

// Preseeded returns a previously supplied decision for the gate, if any.
func (s *Service) Preseeded(_ context.Context, nodeID string) (*approval.Decision, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	decision, ok := s.preseeds[nodeID]
	return decision, ok
}

// Queue exposes the request fan-out stream.
func (s *Service) Queue() messaging.Queue[approval.Request] {
	return s.queue
}
