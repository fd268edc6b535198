// Package nop provides a pass-through executor. It echoes its input payload
// as the output, which makes it useful for wiring tests and for tasks whose
// only purpose is to materialise a derived payload into the store.
package nop

import (
	"context"

	"github.com/grovekit/grove/service/executor"
)

// Name is the registry name of the pass-through executor.
const Name = "nop"

// Executor echoes the request input.
type Executor struct{}

// New creates the pass-through executor.
func New() *Executor { return &Executor{} }

// Name returns the registry name.
func (e *Executor) Name() string { return Name }

// Execute returns a copy of the request input, or an empty payload when the
// request carried none.
func (e *Executor) Execute(_ context.Context, request *executor.Request) (map[string]interface{}, error) {
	output := make(map[string]interface{}, len(request.Input))
	for k, v := range request.Input {
		output[k] = v
	}
	return output, nil
}
