// Package executor defines the boundary between the engine and external
// task backends. An executor receives an instruction plus an input payload
// and returns an output payload; it never touches the output store or the
// workflow tree.
package executor

import (
	"context"

	"github.com/viant/structology/conv"
)

// Request carries everything an executor may see for one invocation.
type Request struct {
	NodeID      string                 `json:"nodeId"`
	Iteration   int                    `json:"iteration"`
	Instruction string                 `json:"instruction,omitempty"`
	Input       map[string]interface{} `json:"input,omitempty"`
}

// Executor performs the work of a task node.
type Executor interface {
	// Name identifies the executor for task bindings.
	Name() string

	// Execute performs the task and returns its output payload. The engine
	// treats a non-nil error as an executor failure and ctx carries
	// cancellation; implementations should honour it for long work.
	Execute(ctx context.Context, request *Request) (map[string]interface{}, error)
}

// Func adapts a plain function to the Executor interface.
type Func struct {
	name string
	fn   func(ctx context.Context, request *Request) (map[string]interface{}, error)
}

// NewFunc creates a function-backed executor.
func NewFunc(name string, fn func(ctx context.Context, request *Request) (map[string]interface{}, error)) *Func {
	return &Func{name: name, fn: fn}
}

// Name returns the executor name.
func (f *Func) Name() string { return f.name }

// Execute invokes the wrapped function.
func (f *Func) Execute(ctx context.Context, request *Request) (map[string]interface{}, error) {
	return f.fn(ctx, request)
}

// NewConverter creates the input converter shared by typed executors. It
// maps loosely-typed payloads onto executor input structs.
func NewConverter() *conv.Converter {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	return conv.NewConverter(options)
}
