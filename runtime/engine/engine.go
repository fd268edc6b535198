// Package engine executes workflow trees. The engine walks the tree from the
// root, runs task nodes through registered executors, persists every result
// in the output store and emits lifecycle events along the way. All engine
// state for a run lives in the run itself and the store, so a single engine
// serves any number of concurrent runs.
package engine

import (
	"context"
	"errors"
	"log"

	"github.com/grovekit/grove/internal/clock"
	"github.com/grovekit/grove/model"
	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/approval"
	"github.com/grovekit/grove/service/event"
	"github.com/grovekit/grove/service/executor"
	"github.com/grovekit/grove/service/store"
	"github.com/grovekit/grove/tracing"
)

// InitNodeID is the store identity under which the run's initial payload is
// written, making it readable by any input builder.
const InitNodeID = "init"

// Engine runs workflows.
type Engine struct {
	store     store.Service
	executors *executor.Registry
	approvals approval.Service
	events    *event.Service
}

// New creates an engine over the supplied collaborators. events and
// approvals may be nil when the caller needs neither lifecycle events nor
// approval gates.
func New(storeService store.Service, executors *executor.Registry, approvals approval.Service, events *event.Service) *Engine {
	return &Engine{
		store:     storeService,
		executors: executors,
		approvals: approvals,
		events:    events,
	}
}

// Outputs returns the read-only view over the engine's output store.
func (e *Engine) Outputs() graph.Outputs {
	return &storeOutputs{store: e.store}
}

// Run validates the workflow and starts executing it asynchronously. The
// returned run settles once the root node finishes; use run.Wait or
// run.Done to observe the terminal outcome. init overrides entries of the
// workflow's own Init payload.
func (e *Engine) Run(ctx context.Context, workflow *model.Workflow, init map[string]interface{}) (*execution.Run, error) {
	if issues := workflow.Validate(); len(issues) > 0 {
		return nil, &execution.DefinitionError{Workflow: workflow.Name, Issues: issues}
	}
	run := execution.NewRun(workflow, init)
	runCtx, cancel := context.WithCancel(ctx)
	run.Begin(cancel)
	go e.execute(runCtx, run)
	return run, nil
}

func (e *Engine) execute(ctx context.Context, run *execution.Run) {
	started := clock.Now()
	ctx, span := tracing.StartSpan(ctx, "run "+run.Workflow.Name, "INTERNAL")
	e.publish(run, event.New(event.RunStarted, run.ID, "", 0))

	var err error
	if seed := e.seed(run); len(seed) > 0 {
		err = e.store.Write(ctx, InitNodeID, 0, seed)
	}

	var result *nodeResult
	if err == nil {
		result, err = e.runNode(ctx, run, run.Workflow.Root, nil)
	}
	tracing.EndSpan(span, err)

	outcome := &execution.Outcome{TimeTaken: clock.Now().Sub(started)}
	switch {
	case err == nil:
		outcome.Kind = execution.OutcomeCompleted
		if result != nil {
			outcome.Kind = result.Kind
			outcome.Output = result.Output
		}
		e.publish(run, event.New(event.RunFinished, run.ID, "", 0))
	case isCancelled(err):
		outcome.Kind = execution.OutcomeCancelled
		outcome.Err = err
		e.publish(run, event.New(event.RunFailed, run.ID, "", 0).WithError(err))
	default:
		outcome.Kind = execution.OutcomeFailed
		outcome.Err = err
		e.publish(run, event.New(event.RunFailed, run.ID, "", 0).WithError(err))
	}
	run.Finish(outcome)
}

// seed merges the workflow's declared Init with the per-run override.
func (e *Engine) seed(run *execution.Run) map[string]interface{} {
	if len(run.Workflow.Init) == 0 && len(run.Init) == 0 {
		return nil
	}
	seed := make(map[string]interface{}, len(run.Workflow.Init)+len(run.Init))
	for k, v := range run.Workflow.Init {
		seed[k] = v
	}
	for k, v := range run.Init {
		seed[k] = v
	}
	return seed
}

// nodeResult carries a node's contribution to the run outcome. Kind is
// OutcomeCompleted except for loops, which report convergence or (tolerated)
// exhaustion.
type nodeResult struct {
	Kind   execution.OutcomeKind
	Output map[string]interface{}
}

func (e *Engine) runNode(ctx context.Context, run *execution.Run, node *graph.Node, scope *execution.Scope) (*nodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &execution.CancelledError{NodeID: node.ID, Err: err}
	}
	switch node.Kind {
	case graph.KindTask:
		return e.runTask(ctx, run, node, scope)
	case graph.KindSequence:
		return e.runSequence(ctx, run, node, scope)
	case graph.KindParallel:
		return e.runParallel(ctx, run, node, scope)
	case graph.KindLoop:
		return e.runLoop(ctx, run, node, scope)
	case graph.KindApproval:
		return e.runApproval(ctx, run, node, scope)
	}
	return nil, &execution.DefinitionError{
		Workflow: run.Workflow.Name,
		Issues:   []error{errors.New("node " + node.ID + " has unknown kind " + string(node.Kind))},
	}
}

// publish records the event on the run and forwards it to the event service.
// Forwarding uses a detached context so terminal events survive cancellation.
func (e *Engine) publish(run *execution.Run, ev *event.Event) {
	run.AppendEvent(ev)
	if e.events == nil {
		return
	}
	if err := e.events.Publish(context.Background(), ev); err != nil {
		log.Printf("failed to publish event %s: %v", ev.Type, err)
	}
}

func isCancelled(err error) bool {
	var cancelled *execution.CancelledError
	return errors.As(err, &cancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
