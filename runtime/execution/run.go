package execution

import (
	"context"
	"sync"
	"time"

	"github.com/grovekit/grove/internal/clock"
	"github.com/grovekit/grove/internal/idgen"
	"github.com/grovekit/grove/model"
	"github.com/grovekit/grove/service/event"
)

// Run states.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Run is one execution of a workflow. The engine mutates it through the
// methods below; callers observe it through Wait, Outcome and Events.
type Run struct {
	ID         string                 `json:"id"`
	Workflow   *model.Workflow        `json:"-"`
	Name       string                 `json:"name"`
	Init       map[string]interface{} `json:"init,omitempty"`
	State      string                 `json:"state"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`

	mux     sync.RWMutex
	events  []*event.Event
	outcome *Outcome
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRun creates a pending run for the supplied workflow.
func NewRun(workflow *model.Workflow, init map[string]interface{}) *Run {
	now := clock.Now()
	return &Run{
		ID:        idgen.New(),
		Workflow:  workflow,
		Name:      workflow.Name,
		Init:      init,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
		done:      make(chan struct{}),
	}
}

// Begin marks the run as running and arms cancellation.
func (r *Run) Begin(cancel context.CancelFunc) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.State = StateRunning
	r.UpdatedAt = clock.Now()
	r.cancel = cancel
}

// Cancel requests cooperative cancellation of the run. Nodes already in
// flight are interrupted through their context; the run settles with a
// cancelled outcome once they unwind.
func (r *Run) Cancel() {
	r.mux.Lock()
	cancel := r.cancel
	r.mux.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Finish records the terminal outcome exactly once and releases waiters.
func (r *Run) Finish(outcome *Outcome) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.outcome != nil {
		return
	}
	if outcome.Err != nil {
		outcome.Error = outcome.Err.Error()
	}
	r.outcome = outcome
	now := clock.Now()
	r.UpdatedAt = now
	r.FinishedAt = &now
	switch outcome.Kind {
	case OutcomeFailed:
		r.State = StateFailed
	case OutcomeCancelled:
		r.State = StateCancelled
	default:
		r.State = StateCompleted
	}
	close(r.done)
}

// Outcome returns the terminal outcome, or nil while the run is in flight.
func (r *Run) Outcome() *Outcome {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.outcome
}

// Done returns a channel closed when the run settles.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// AppendEvent records a lifecycle event in emission order.
func (r *Run) AppendEvent(e *event.Event) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of the lifecycle events recorded so far.
func (r *Run) Events() []*event.Event {
	r.mux.RLock()
	defer r.mux.RUnlock()
	result := make([]*event.Event, len(r.events))
	copy(result, r.events)
	return result
}

// Wait blocks until the run settles, the timeout elapses or ctx is done.
func (r *Run) Wait(ctx context.Context, timeout time.Duration) (*Outcome, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.done:
		return r.Outcome(), nil
	case <-timer.C:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait resolves a started run's terminal outcome.
type Wait func(ctx context.Context, timeout time.Duration) (*Outcome, error)
