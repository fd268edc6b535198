package event

import (
	"time"

	"github.com/grovekit/grove/internal/clock"
	"github.com/grovekit/grove/internal/idgen"
)

// Type identifies a lifecycle event emitted during a run.
type Type string

const (
	RunStarted  Type = "run.started"
	RunFinished Type = "run.finished"
	RunFailed   Type = "run.failed"

	NodeStarted  Type = "node.started"
	NodeFinished Type = "node.finished"
	NodeFailed   Type = "node.failed"
	NodeSkipped  Type = "node.skipped"

	LoopIteration     Type = "loop.iteration"
	ApprovalRequested Type = "approval.requested"
)

// Event is one lifecycle notification. Events carry node identity - node id
// plus the enclosing loop's current iteration - so an observer can attribute
// every start/finish/failure without holding any engine state.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	RunID     string    `json:"runId"`
	NodeID    string    `json:"nodeId,omitempty"`
	Iteration int       `json:"iteration"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// New creates a lifecycle event.
func New(eventType Type, runID, nodeID string, iteration int) *Event {
	return &Event{
		ID:        idgen.New(),
		Type:      eventType,
		RunID:     runID,
		NodeID:    nodeID,
		Iteration: iteration,
		CreatedAt: clock.Now(),
	}
}

// WithError attaches a failure cause and returns the event for chaining.
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
