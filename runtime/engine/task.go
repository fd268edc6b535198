package engine

import (
	"context"

	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/model/predicate"
	"github.com/grovekit/grove/progress"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/event"
	"github.com/grovekit/grove/service/executor"
	"github.com/grovekit/grove/tracing"
)

// runTask executes one task node at the scope's iteration: skip check,
// input build, executor invocation, schema validation and finally the store
// write. The write happens only after validation succeeds, so readers never
// observe a non-conforming payload.
func (e *Engine) runTask(ctx context.Context, run *execution.Run, node *graph.Node, scope *execution.Scope) (*nodeResult, error) {
	iteration := scope.At()
	outputs := e.Outputs()

	if e.skipped(ctx, node, outputs, iteration) {
		e.publish(run, event.New(event.NodeSkipped, run.ID, node.ID, iteration))
		progress.UpdateCtx(ctx, progress.Delta{Total: 1, Skipped: 1})
		return &nodeResult{Kind: execution.OutcomeCompleted}, nil
	}

	e.publish(run, event.New(event.NodeStarted, run.ID, node.ID, iteration))
	progress.UpdateCtx(ctx, progress.Delta{Total: 1, Running: 1})

	payload, err := e.executeTask(ctx, node, outputs, iteration)
	if err != nil {
		e.publish(run, event.New(event.NodeFailed, run.ID, node.ID, iteration).WithError(err))
		progress.UpdateCtx(ctx, progress.Delta{Running: -1, Failed: 1})
		return nil, err
	}

	e.publish(run, event.New(event.NodeFinished, run.ID, node.ID, iteration))
	progress.UpdateCtx(ctx, progress.Delta{Running: -1, Completed: 1})
	return &nodeResult{Kind: execution.OutcomeCompleted, Output: payload}, nil
}

func (e *Engine) executeTask(ctx context.Context, node *graph.Node, outputs graph.Outputs, iteration int) (map[string]interface{}, error) {
	input, err := e.buildInput(ctx, node, outputs, iteration)
	if err != nil {
		return nil, &execution.ExecutorError{NodeID: node.ID, Iteration: iteration, Err: err}
	}

	impl, err := e.executors.Lookup(node.Executor)
	if err != nil {
		return nil, &execution.ExecutorError{NodeID: node.ID, Iteration: iteration, Err: err}
	}

	taskCtx, span := tracing.StartSpan(ctx, "task "+node.ID, "INTERNAL")
	span.WithAttributes(map[string]string{"executor": node.Executor})
	payload, err := impl.Execute(taskCtx, &executor.Request{
		NodeID:      node.ID,
		Iteration:   iteration,
		Instruction: node.Instruction,
		Input:       input,
	})
	tracing.EndSpan(span, err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &execution.CancelledError{NodeID: node.ID, Err: ctx.Err()}
		}
		return nil, &execution.ExecutorError{NodeID: node.ID, Iteration: iteration, Err: err}
	}

	if violations := node.Schema.Validate(payload); len(violations) > 0 {
		return nil, &execution.ValidationError{NodeID: node.ID, Iteration: iteration, Raw: payload, Violations: violations}
	}

	if err = e.store.Write(ctx, node.ID, iteration, payload); err != nil {
		return nil, &execution.ExecutorError{NodeID: node.ID, Iteration: iteration, Err: err}
	}
	return payload, nil
}

// buildInput resolves the executor input: the programmatic builder wins,
// otherwise the node's static payload is copied.
func (e *Engine) buildInput(ctx context.Context, node *graph.Node, outputs graph.Outputs, iteration int) (map[string]interface{}, error) {
	if node.Input != nil {
		return node.Input(ctx, outputs, iteration)
	}
	if node.Payload == nil {
		return nil, nil
	}
	input := make(map[string]interface{}, len(node.Payload))
	for k, v := range node.Payload {
		input[k] = v
	}
	return input, nil
}

// skipped evaluates the node's skip predicate. The declarative form tests
// the node's own latest output, so a node can skip re-work once a previous
// iteration already produced an acceptable result.
func (e *Engine) skipped(ctx context.Context, node *graph.Node, outputs graph.Outputs, iteration int) bool {
	if node.Skip != nil && node.Skip(ctx, outputs, iteration) {
		return true
	}
	if node.SkipWhen == "" {
		return false
	}
	expr, err := predicate.Parse(node.SkipWhen)
	if err != nil {
		// Validate rejects unparsable expressions before the run starts.
		return false
	}
	payload, _, ok := outputs.ReadLatest(ctx, node.ID)
	return ok && expr.Eval(payload)
}
