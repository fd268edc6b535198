package execution

import "time"

// OutcomeKind classifies how a run (or a loop inside it) ended.
type OutcomeKind string

const (
	// OutcomeCompleted means the root node finished without failure.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeConverged means a root-level loop satisfied its predicate.
	OutcomeConverged OutcomeKind = "converged"
	// OutcomeExhausted means a root-level loop hit its cap under the
	// return-last overflow policy.
	OutcomeExhausted OutcomeKind = "exhausted"
	// OutcomeFailed means execution stopped on a failure.
	OutcomeFailed OutcomeKind = "failed"
	// OutcomeCancelled means an external cancellation was honoured.
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the terminal result of a run.
type Outcome struct {
	Kind      OutcomeKind            `json:"kind"`
	Output    map[string]interface{} `json:"output,omitempty"`
	Err       error                  `json:"-"`
	Error     string                 `json:"error,omitempty"`
	TimeTaken time.Duration          `json:"timeTaken"`
}

// Failed reports whether the outcome is a failure or a cancellation.
func (o *Outcome) Failed() bool {
	return o.Kind == OutcomeFailed || o.Kind == OutcomeCancelled
}
