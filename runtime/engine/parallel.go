package engine

import (
	"context"
	"sync"

	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/event"
)

// runParallel starts every child concurrently and joins on all of them,
// including after failures - a failed branch never abandons its siblings
// mid-flight. When any branch failed the aggregate failure lists every
// branch error with its original kind intact.
func (e *Engine) runParallel(ctx context.Context, run *execution.Run, node *graph.Node, scope *execution.Scope) (*nodeResult, error) {
	iteration := scope.At()
	e.publish(run, event.New(event.NodeStarted, run.ID, node.ID, iteration))

	var wg sync.WaitGroup
	errs := make([]error, len(node.Nodes))
	for i, child := range node.Nodes {
		wg.Add(1)
		go func(i int, child *graph.Node) {
			defer wg.Done()
			_, errs[i] = e.runNode(ctx, run, child, scope)
		}(i, child)
	}
	wg.Wait()

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		aggregate := &execution.ParallelError{NodeID: node.ID, Iteration: iteration, Errors: failures}
		e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(aggregate))
		return nil, aggregate
	}

	e.publish(run, event.New(event.NodeFinished, run.ID, node.ID, iteration))
	return &nodeResult{Kind: execution.OutcomeCompleted}, nil
}
