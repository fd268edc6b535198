package graph

import (
	"context"

	"github.com/grovekit/grove/model/schema"
)

// Kind discriminates the node variants of a workflow tree.
type Kind string

const (
	KindTask     Kind = "task"
	KindSequence Kind = "sequence"
	KindParallel Kind = "parallel"
	KindLoop     Kind = "loop"
	KindApproval Kind = "approval"
)

// OverflowPolicy decides what a loop yields when the iteration cap is hit
// before the convergence predicate is satisfied.
type OverflowPolicy string

const (
	// OverflowFail turns cap exhaustion into a loop failure. This is the
	// default - an unsatisfied predicate is never silently truncated.
	OverflowFail OverflowPolicy = "fail"

	// OverflowReturnLast treats exhaustion as success carrying the last
	// iteration's output.
	OverflowReturnLast OverflowPolicy = "returnLast"
)

type (
	// Iterator yields successive output payloads; ok reports whether a
	// payload was produced. Obtaining a fresh Iterator restarts the scan.
	Iterator func() (payload map[string]interface{}, ok bool)

	// Outputs is the engine-supplied, read-only view over results produced
	// earlier in the run. Nodes never receive the store itself - all
	// cross-node communication flows through this interface, keyed by node
	// identity and iteration.
	Outputs interface {
		// Read returns the payload written by nodeID at the given iteration;
		// ok is false when nothing has been produced for that identity.
		Read(ctx context.Context, nodeID string, iteration int) (map[string]interface{}, bool)

		// ReadLatest returns the payload with the highest iteration written
		// for nodeID together with that iteration.
		ReadLatest(ctx context.Context, nodeID string) (map[string]interface{}, int, bool)

		// History returns a restartable iterator over nodeID's payloads in
		// ascending iteration order, stopping at the first absent iteration.
		History(ctx context.Context, nodeID string) Iterator
	}

	// InputFunc builds a task's executor input, freely referencing earlier
	// outputs including cross-iteration history.
	InputFunc func(ctx context.Context, outputs Outputs, iteration int) (map[string]interface{}, error)

	// SkipFunc decides whether a node is skipped at the current iteration.
	SkipFunc func(ctx context.Context, outputs Outputs, iteration int) bool

	// ConvergeFunc decides whether a loop may stop, given the latest output
	// of its designated target node (nil when the target produced nothing).
	ConvergeFunc func(payload map[string]interface{}) bool
)

type (
	// Node is one element of a workflow tree. Exactly one variant applies
	// depending on Kind; the YAML decoder and Workflow.Validate enforce it.
	Node struct {
		ID          string `json:"id,omitempty" yaml:"id,omitempty"`
		Name        string `json:"name,omitempty" yaml:"name,omitempty"`
		Kind        Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
		Description string `json:"description,omitempty" yaml:"description,omitempty"`

		// Task parameters
		Executor    string                 `json:"executor,omitempty" yaml:"executor,omitempty"`
		Instruction string                 `json:"instruction,omitempty" yaml:"instruction,omitempty"`
		Payload     map[string]interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
		Input       InputFunc              `json:"-" yaml:"-"`
		Schema      *schema.Schema         `json:"schema,omitempty" yaml:"schema,omitempty"`

		// Skip predicate; defaults to never-skip. SkipWhen is the
		// declarative expression form used by YAML definitions.
		Skip     SkipFunc `json:"-" yaml:"-"`
		SkipWhen string   `json:"skipWhen,omitempty" yaml:"skipWhen,omitempty"`

		// Composite children (sequence, parallel)
		Nodes []*Node `json:"nodes,omitempty" yaml:"nodes,omitempty"`

		// Loop parameters; the loop body is Nodes[0]
		Loop *Loop `json:"loop,omitempty" yaml:"loop,omitempty"`

		// Approval gate parameters
		Approval *Approval `json:"approval,omitempty" yaml:"approval,omitempty"`
	}

	// Loop bounds a convergence loop: re-run the body, evaluating the
	// predicate against the designated target node's latest output, until it
	// converges or MaxIterations passes have completed.
	Loop struct {
		Target        string         `json:"target,omitempty" yaml:"target,omitempty"`
		MaxIterations int            `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
		Overflow      OverflowPolicy `json:"overflow,omitempty" yaml:"overflow,omitempty"`
		Until         ConvergeFunc   `json:"-" yaml:"-"`
		UntilWhen     string         `json:"untilWhen,omitempty" yaml:"untilWhen,omitempty"`

		// ContinueOnError tolerates body failures and keeps looping. It is
		// an explicit opt-in; the default propagates the failure.
		ContinueOnError bool `json:"continueOnError,omitempty" yaml:"continueOnError,omitempty"`
	}

	// Approval configures an approval gate node.
	Approval struct {
		Message string `json:"message,omitempty" yaml:"message,omitempty"`
	}
)

// NewTask creates a task node bound to a registered executor.
func NewTask(id, executor string) *Node {
	return &Node{ID: id, Name: id, Kind: KindTask, Executor: executor}
}

// NewSequence creates a sequence composite running children in order.
func NewSequence(id string, children ...*Node) *Node {
	return &Node{ID: id, Name: id, Kind: KindSequence, Nodes: children}
}

// NewParallel creates a parallel composite running children concurrently.
func NewParallel(id string, children ...*Node) *Node {
	return &Node{ID: id, Name: id, Kind: KindParallel, Nodes: children}
}

// NewLoop creates a convergence loop around body, evaluating the predicate
// against target's latest output, capped at maxIterations passes.
func NewLoop(id string, body *Node, target string, maxIterations int) *Node {
	return &Node{
		ID:    id,
		Name:  id,
		Kind:  KindLoop,
		Nodes: []*Node{body},
		Loop:  &Loop{Target: target, MaxIterations: maxIterations, Overflow: OverflowFail},
	}
}

// NewApproval creates an approval gate node.
func NewApproval(id, message string) *Node {
	return &Node{ID: id, Name: id, Kind: KindApproval, Approval: &Approval{Message: message}}
}

// WithDescription sets the node description.
func (n *Node) WithDescription(description string) *Node {
	n.Description = description
	return n
}

// WithInstruction sets the free-form instruction text passed to the executor.
func (n *Node) WithInstruction(instruction string) *Node {
	n.Instruction = instruction
	return n
}

// WithPayload sets a static executor input payload.
func (n *Node) WithPayload(payload map[string]interface{}) *Node {
	n.Payload = payload
	return n
}

// WithInput sets the input builder; it takes precedence over Payload.
func (n *Node) WithInput(input InputFunc) *Node {
	n.Input = input
	return n
}

// WithSchema declares the output shape the executor result must conform to.
func (n *Node) WithSchema(s *schema.Schema) *Node {
	n.Schema = s
	return n
}

// WithSkip sets a programmatic skip predicate.
func (n *Node) WithSkip(skip SkipFunc) *Node {
	n.Skip = skip
	return n
}

// WithSkipWhen sets a declarative skip expression evaluated against the
// node's own latest output from a previous iteration.
func (n *Node) WithSkipWhen(expr string) *Node {
	n.SkipWhen = expr
	return n
}

// WithUntil sets the loop convergence predicate.
func (n *Node) WithUntil(until ConvergeFunc) *Node {
	n.ensureLoop().Until = until
	return n
}

// WithUntilWhen sets the declarative convergence expression.
func (n *Node) WithUntilWhen(expr string) *Node {
	n.ensureLoop().UntilWhen = expr
	return n
}

// WithOverflow sets the loop's cap-exhaustion policy.
func (n *Node) WithOverflow(policy OverflowPolicy) *Node {
	n.ensureLoop().Overflow = policy
	return n
}

// WithContinueOnError opts the loop into tolerating body failures.
func (n *Node) WithContinueOnError(tolerate bool) *Node {
	n.ensureLoop().ContinueOnError = tolerate
	return n
}

func (n *Node) ensureLoop() *Loop {
	if n.Loop == nil {
		n.Loop = &Loop{Overflow: OverflowFail}
	}
	return n.Loop
}

// AddNode appends a child to a composite node and returns the child.
func (n *Node) AddNode(child *Node) *Node {
	n.Nodes = append(n.Nodes, child)
	return child
}

// Body returns the loop body node, or nil when the node is not a loop.
func (n *Node) Body() *Node {
	if n.Kind != KindLoop || len(n.Nodes) == 0 {
		return nil
	}
	return n.Nodes[0]
}

// IsComposite reports whether the node owns children.
func (n *Node) IsComposite() bool {
	switch n.Kind {
	case KindSequence, KindParallel, KindLoop:
		return true
	}
	return false
}

// Clone creates a deep copy of the node tree. Function fields and schema
// pointers reference immutable data and are shared, not copied.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	if n.Payload != nil {
		clone.Payload = make(map[string]interface{}, len(n.Payload))
		for k, v := range n.Payload {
			clone.Payload[k] = v
		}
	}
	if n.Loop != nil {
		loop := *n.Loop
		clone.Loop = &loop
	}
	if n.Approval != nil {
		approval := *n.Approval
		clone.Approval = &approval
	}
	if n.Nodes != nil {
		clone.Nodes = make([]*Node, len(n.Nodes))
		for i, child := range n.Nodes {
			clone.Nodes[i] = child.Clone()
		}
	}
	return &clone
}
