package model

import (
	"fmt"

	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/model/predicate"
	"gopkg.in/yaml.v3"
)

// Workflow represents a workflow definition: a named tree of nodes rooted at
// Root. A definition is pure configuration - it carries no execution state
// and a single definition may back any number of concurrent runs.
type Workflow struct {

	// Source provides information about the origin of the workflow
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`

	// Name is the unique identifier for the workflow
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description of the workflow
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Version specifies the workflow version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Init seeds the run's initial input payload
	Init map[string]interface{} `json:"init,omitempty" yaml:"init,omitempty"`

	// Root is the execution tree
	Root *graph.Node `json:"root,omitempty" yaml:"root,omitempty"`
}

type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// New creates a new workflow with the given name.
func New(name string) *Workflow {
	return &Workflow{Name: name}
}

// WithDescription sets the description of the workflow.
func (w *Workflow) WithDescription(description string) *Workflow {
	w.Description = description
	return w
}

// WithVersion sets the version of the workflow.
func (w *Workflow) WithVersion(version string) *Workflow {
	w.Version = version
	return w
}

// WithInit adds an initial input parameter to the workflow.
func (w *Workflow) WithInit(name string, value interface{}) *Workflow {
	if w.Init == nil {
		w.Init = make(map[string]interface{})
	}
	w.Init[name] = value
	return w
}

// WithRoot sets the root node of the execution tree.
func (w *Workflow) WithRoot(root *graph.Node) *Workflow {
	w.Root = root
	return w
}

// AllNodes returns every node in the tree keyed by id and by name, so that
// loop targets may reference either form.
func (w *Workflow) AllNodes() map[string]*graph.Node {
	nodes := make(map[string]*graph.Node)
	w.traverse(w.Root, nodes)
	return nodes
}

func (w *Workflow) traverse(node *graph.Node, nodes map[string]*graph.Node) {
	if node == nil {
		return
	}
	if _, exists := nodes[node.ID]; !exists {
		nodes[node.ID] = node
		if node.Name != "" {
			nodes[node.Name] = node
		}
		for _, child := range node.Nodes {
			w.traverse(child, nodes)
		}
	}
}

// Validate performs a best-effort structural validation of the workflow. The
// returned slice is empty when the definition is sound; otherwise it contains
// human-readable error descriptions. The function does NOT execute anything -
// it only verifies static properties, so a definition that passes can still
// fail at run time (an executor may be unregistered, a predicate may never
// hold).
func (w *Workflow) Validate() []error {
	var issues []error

	if w.Root == nil {
		issues = append(issues, fmt.Errorf("root is nil"))
		return issues
	}

	seen := map[string]bool{}
	var walk func(n *graph.Node)
	walk = func(n *graph.Node) {
		if n == nil {
			return
		}
		if n.ID == "" {
			issues = append(issues, fmt.Errorf("node %q has empty id", n.Name))
		} else if seen[n.ID] {
			issues = append(issues, fmt.Errorf("duplicate node id %s", n.ID))
		}
		seen[n.ID] = true
		seen[n.Name] = true

		switch n.Kind {
		case graph.KindTask:
			if n.Executor == "" {
				issues = append(issues, fmt.Errorf("task %s has no executor", n.ID))
			}
			if len(n.Nodes) > 0 {
				issues = append(issues, fmt.Errorf("task %s must not have children", n.ID))
			}
		case graph.KindSequence, graph.KindParallel:
		case graph.KindLoop:
			issues = append(issues, w.validateLoop(n)...)
		case graph.KindApproval:
			if len(n.Nodes) > 0 {
				issues = append(issues, fmt.Errorf("approval %s must not have children", n.ID))
			}
		default:
			issues = append(issues, fmt.Errorf("node %s has unknown kind %q", n.ID, n.Kind))
		}

		if n.SkipWhen != "" {
			if _, err := predicate.Parse(n.SkipWhen); err != nil {
				issues = append(issues, fmt.Errorf("node %s has invalid skipWhen expression: %v", n.ID, err))
			}
		}

		for _, child := range n.Nodes {
			walk(child)
		}
	}
	walk(w.Root)

	// Loop targets may reference any node in the tree, so they are checked
	// only after the full id set has been collected.
	var check func(n *graph.Node)
	check = func(n *graph.Node) {
		if n == nil {
			return
		}
		if n.Kind == graph.KindLoop && n.Loop != nil && n.Loop.Target != "" && !seen[n.Loop.Target] {
			issues = append(issues, fmt.Errorf("loop %s targets unknown node %s", n.ID, n.Loop.Target))
		}
		for _, child := range n.Nodes {
			check(child)
		}
	}
	check(w.Root)

	return issues
}

func (w *Workflow) validateLoop(n *graph.Node) []error {
	var issues []error
	if len(n.Nodes) != 1 {
		issues = append(issues, fmt.Errorf("loop %s must have exactly one body node", n.ID))
	}
	loop := n.Loop
	if loop == nil {
		return append(issues, fmt.Errorf("loop %s has no loop parameters", n.ID))
	}
	if loop.MaxIterations <= 0 {
		issues = append(issues, fmt.Errorf("loop %s maxIterations must be > 0", n.ID))
	}
	if loop.Target == "" {
		issues = append(issues, fmt.Errorf("loop %s has no target node", n.ID))
	}
	switch loop.Overflow {
	case "", graph.OverflowFail, graph.OverflowReturnLast:
	default:
		issues = append(issues, fmt.Errorf("loop %s has unknown overflow policy %q", n.ID, loop.Overflow))
	}
	if loop.UntilWhen != "" {
		if _, err := predicate.Parse(loop.UntilWhen); err != nil {
			issues = append(issues, fmt.Errorf("loop %s has invalid untilWhen expression: %v", n.ID, err))
		}
	}
	return issues
}

// DecodeYAML decodes a workflow definition from YAML, assigns hierarchical
// ids to nodes that declare only a name, and validates the result.
func DecodeYAML(data []byte) (*Workflow, error) {
	workflow := &Workflow{}
	if err := yaml.Unmarshal(data, workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}
	if workflow.Root != nil {
		assignNodeIDs(workflow.Root, "")
	}
	if issues := workflow.Validate(); len(issues) > 0 {
		return nil, issues[0]
	}
	return workflow, nil
}

// assignNodeIDs gives every node without an explicit id a hierarchical one
// derived from its position, e.g. "review/reviewers/security".
func assignNodeIDs(node *graph.Node, prefix string) {
	if node == nil {
		return
	}
	if node.ID == "" {
		if prefix == "" {
			node.ID = node.Name
		} else {
			node.ID = prefix + "/" + node.Name
		}
	}
	if node.Name == "" {
		node.Name = node.ID
	}
	for _, child := range node.Nodes {
		assignNodeIDs(child, node.ID)
	}
}
