package execution

import (
	"fmt"
	"strings"
)

// The engine never retries or masks a failure - retry is expressed as a
// convergence loop around the failing node. Each failure class below keeps
// enough identity (node id, iteration) to make the failure attributable.

// ExecutorError reports that the external task backend itself errored or
// timed out.
type ExecutorError struct {
	NodeID    string
	Iteration int
	Err       error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor failed at %s[%d]: %v", e.NodeID, e.Iteration, e.Err)
}

func (e *ExecutorError) Unwrap() error { return e.Err }

// ValidationError reports that an executor result does not conform to the
// node's declared schema. Raw carries the unvalidated payload so the
// mismatch can be diagnosed; nothing was written to the store.
type ValidationError struct {
	NodeID     string
	Iteration  int
	Raw        map[string]interface{}
	Violations []error
}

func (e *ValidationError) Error() string {
	issues := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		issues = append(issues, violation.Error())
	}
	return fmt.Sprintf("invalid output at %s[%d]: %s", e.NodeID, e.Iteration, strings.Join(issues, "; "))
}

func (e *ValidationError) Unwrap() []error { return e.Violations }

// LoopExhaustedError reports that a convergence predicate was never
// satisfied within the iteration cap, under a fail overflow policy.
type LoopExhaustedError struct {
	NodeID     string
	Iterations int
}

func (e *LoopExhaustedError) Error() string {
	return fmt.Sprintf("loop %s exhausted after %d iterations without converging", e.NodeID, e.Iterations)
}

// CancelledError reports that an external cancellation request was honoured
// before or during the node's execution.
type CancelledError struct {
	NodeID string
	Err    error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled at %s: %v", e.NodeID, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// RejectedError reports that an approval gate received a negative decision.
type RejectedError struct {
	NodeID string
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("approval %s rejected", e.NodeID)
	}
	return fmt.Sprintf("approval %s rejected: %s", e.NodeID, e.Reason)
}

// DefinitionError reports a malformed workflow tree; Issues lists every
// structural problem found.
type DefinitionError struct {
	Workflow string
	Issues   []error
}

func (e *DefinitionError) Error() string {
	issues := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		issues = append(issues, issue.Error())
	}
	return fmt.Sprintf("invalid workflow %s: %s", e.Workflow, strings.Join(issues, "; "))
}

func (e *DefinitionError) Unwrap() []error { return e.Issues }

// ParallelError aggregates the failures of a parallel composite's children,
// preserving each child's original error kind and node id so a caller sees
// every broken branch in one pass.
type ParallelError struct {
	NodeID    string
	Iteration int
	Errors    []error
}

func (e *ParallelError) Error() string {
	issues := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		issues = append(issues, err.Error())
	}
	return fmt.Sprintf("%d of parallel %s[%d] children failed: %s", len(e.Errors), e.NodeID, e.Iteration, strings.Join(issues, "; "))
}

func (e *ParallelError) Unwrap() []error { return e.Errors }
