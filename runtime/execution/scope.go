package execution

// Scope is an immutable chain of loop cursors. Each enclosing convergence
// loop pushes one frame; the innermost frame decides which iteration a node
// executes under. Immutability keeps concurrent branches of a parallel
// composite from observing each other's cursors.
type Scope struct {
	Parent    *Scope
	NodeID    string
	Iteration int
}

// Push derives a child scope with the given loop cursor.
func (s *Scope) Push(nodeID string, iteration int) *Scope {
	return &Scope{Parent: s, NodeID: nodeID, Iteration: iteration}
}

// At returns the innermost iteration cursor; outside of any loop it is 0.
func (s *Scope) At() int {
	if s == nil {
		return 0
	}
	return s.Iteration
}

// Cursor is one (loop, iteration) frame of a scope chain.
type Cursor struct {
	NodeID    string `json:"nodeId"`
	Iteration int    `json:"iteration"`
}

// Cursors lists the scope frames from outermost to innermost.
func (s *Scope) Cursors() []Cursor {
	if s == nil {
		return nil
	}
	parent := s.Parent.Cursors()
	return append(parent, Cursor{NodeID: s.NodeID, Iteration: s.Iteration})
}
