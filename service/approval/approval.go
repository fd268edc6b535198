// Package approval coordinates human decisions for approval gates. A gate
// suspends its branch until a decision arrives; decisions may also be
// supplied ahead of time so unattended runs pass straight through.
package approval

import (
	"context"
	"time"

	"github.com/grovekit/grove/service/messaging"
)

// Request asks for a decision on behalf of an approval gate.
type Request struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	NodeID    string    `json:"nodeId"`
	Iteration int       `json:"iteration"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Decision resolves a request. Payload, when present, becomes the gate
// node's output for downstream readers.
type Decision struct {
	RequestID string                 `json:"requestId"`
	NodeID    string                 `json:"nodeId,omitempty"`
	Approved  bool                   `json:"approved"`
	Reason    string                 `json:"reason,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	DecidedAt time.Time              `json:"decidedAt"`
}

// Service manages approval requests and their decisions.
type Service interface {
	// Request records a pending request and fans it out to subscribers.
	Request(ctx context.Context, request *Request) error

	// Pending lists requests that have not been decided yet; runID narrows
	// the listing when non-empty.
	Pending(ctx context.Context, runID string) ([]*Request, error)

	// Decide resolves a pending request and wakes its waiters.
	Decide(ctx context.Context, requestID string, decision *Decision) error

	// Await blocks until the request is decided or ctx is done.
	Await(ctx context.Context, requestID string) (*Decision, error)

	// Preseed supplies a decision for a gate before it is reached; the gate
	// then resolves without suspending.
	Preseed(ctx context.Context, nodeID string, decision *Decision) error

	// Preseeded returns a previously supplied decision for the gate, if any.
	Preseeded(ctx context.Context, nodeID string) (*Decision, bool)

	// Queue exposes the request fan-out stream for external responders.
	Queue() messaging.Queue[Request]
}
