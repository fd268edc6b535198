package engine

import (
	"context"

	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/event"
)

// runSequence executes children strictly in order. The first child failure
// stops the sequence; later children are never started. An empty sequence
// completes immediately.
func (e *Engine) runSequence(ctx context.Context, run *execution.Run, node *graph.Node, scope *execution.Scope) (*nodeResult, error) {
	iteration := scope.At()
	e.publish(run, event.New(event.NodeStarted, run.ID, node.ID, iteration))

	var last *nodeResult
	for _, child := range node.Nodes {
		result, err := e.runNode(ctx, run, child, scope)
		if err != nil {
			e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(err))
			return nil, err
		}
		last = result
	}

	e.publish(run, event.New(event.NodeFinished, run.ID, node.ID, iteration))
	if last == nil {
		return &nodeResult{Kind: execution.OutcomeCompleted}, nil
	}
	return &nodeResult{Kind: execution.OutcomeCompleted, Output: last.Output}, nil
}
