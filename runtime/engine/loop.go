package engine

import (
	"context"

	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/model/predicate"
	"github.com/grovekit/grove/progress"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/event"
)

// runLoop re-runs the body under successive iteration cursors until the
// convergence predicate holds against the target node's latest output, the
// iteration cap is reached, or a body failure propagates. Earlier
// iterations' outputs remain readable throughout; only the cursor advances.
func (e *Engine) runLoop(ctx context.Context, run *execution.Run, node *graph.Node, scope *execution.Scope) (*nodeResult, error) {
	iteration := scope.At()
	e.publish(run, event.New(event.NodeStarted, run.ID, node.ID, iteration))

	body := node.Body()
	targetID := e.resolveTarget(run, node.Loop.Target)
	converge := e.convergePredicate(node.Loop)
	outputs := e.Outputs()

	for i := 0; i < node.Loop.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			cancelled := &execution.CancelledError{NodeID: node.ID, Err: err}
			e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(cancelled))
			return nil, cancelled
		}

		e.publish(run, event.New(event.LoopIteration, run.ID, node.ID, i))
		progress.UpdateCtx(ctx, progress.Delta{Iterations: 1})

		_, err := e.runNode(ctx, run, body, scope.Push(node.ID, i))
		if err != nil {
			if !node.Loop.ContinueOnError || isCancelled(err) {
				e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(err))
				return nil, err
			}
		}

		// The predicate always sees the target's latest output, which may
		// stem from an earlier iteration when this pass skipped the target.
		if converge != nil {
			payload, _, _ := outputs.ReadLatest(ctx, targetID)
			if converge(payload) {
				e.publish(run, event.New(event.NodeFinished, run.ID, node.ID, iteration))
				return &nodeResult{Kind: execution.OutcomeConverged, Output: payload}, nil
			}
		}
	}

	if node.Loop.Overflow == graph.OverflowReturnLast {
		payload, _, _ := outputs.ReadLatest(ctx, targetID)
		e.publish(run, event.New(event.NodeFinished, run.ID, node.ID, iteration))
		return &nodeResult{Kind: execution.OutcomeExhausted, Output: payload}, nil
	}

	exhausted := &execution.LoopExhaustedError{NodeID: node.ID, Iterations: node.Loop.MaxIterations}
	e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(exhausted))
	return nil, exhausted
}

// resolveTarget maps a loop target, given by node id or name, to the node id
// the store is keyed by.
func (e *Engine) resolveTarget(run *execution.Run, target string) string {
	if node, ok := run.Workflow.AllNodes()[target]; ok {
		return node.ID
	}
	return target
}

// convergePredicate compiles the loop's predicate. The programmatic form
// wins; with neither form present the loop never converges and runs as a
// bounded repeat.
func (e *Engine) convergePredicate(loop *graph.Loop) graph.ConvergeFunc {
	if loop.Until != nil {
		return loop.Until
	}
	if loop.UntilWhen == "" {
		return nil
	}
	expr, err := predicate.Parse(loop.UntilWhen)
	if err != nil {
		// Validate rejects unparsable expressions before the run starts.
		return nil
	}
	return expr.Eval
}
