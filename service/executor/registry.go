package executor

import (
	"fmt"
	"sync"
)

// Registry resolves executor names declared by task nodes to registered
// implementations. Registration happens at wiring time; lookups are
// concurrent-safe.
type Registry struct {
	mux       sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor, replacing any previous one with the same name.
func (r *Registry) Register(executor Executor) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.executors[executor.Name()] = executor
}

// Lookup resolves a name to an executor.
func (r *Registry) Lookup(name string) (Executor, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	executor, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("executor %q is not registered", name)
	}
	return executor, nil
}

// Names lists registered executor names.
func (r *Registry) Names() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}
