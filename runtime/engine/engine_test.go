package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovekit/grove/model"
	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/model/schema"
	"github.com/grovekit/grove/policy"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/approval"
	approvalmemory "github.com/grovekit/grove/service/approval/memory"
	"github.com/grovekit/grove/service/event"
	"github.com/grovekit/grove/service/executor"
	"github.com/grovekit/grove/service/executor/nop"
	queue "github.com/grovekit/grove/service/messaging/memory"
	storememory "github.com/grovekit/grove/service/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, approvals approval.Service) (*Engine, *storememory.Service, *executor.Registry) {
	t.Helper()
	st := storememory.New()
	registry := executor.NewRegistry()
	registry.Register(nop.New())
	return New(st, registry, approvals, nil), st, registry
}

func mustRun(t *testing.T, e *Engine, workflow *model.Workflow, init map[string]interface{}) *execution.Outcome {
	t.Helper()
	run, err := e.Run(context.Background(), workflow, init)
	require.NoError(t, err)
	outcome, err := run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	return outcome
}

func eventTypes(run *execution.Run) []event.Type {
	events := run.Events()
	types := make([]event.Type, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestEngine_TaskWritesOutput(t *testing.T) {
	e, st, _ := newEngine(t, nil)
	workflow := model.New("single").WithRoot(
		graph.NewTask("plan", nop.Name).WithPayload(map[string]interface{}{"goal": "draft"}))

	run, err := e.Run(context.Background(), workflow, nil)
	require.NoError(t, err)
	outcome, err := run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, execution.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, "draft", outcome.Output["goal"])

	record, err := st.Read(context.Background(), "plan", 0)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "draft", record.Payload["goal"])

	assert.Equal(t, []event.Type{event.RunStarted, event.NodeStarted, event.NodeFinished, event.RunFinished}, eventTypes(run))
}

func TestEngine_SequenceFailsFast(t *testing.T) {
	e, st, registry := newEngine(t, nil)
	var started atomic.Int32
	registry.Register(executor.NewFunc("count", func(_ context.Context, request *executor.Request) (map[string]interface{}, error) {
		started.Add(1)
		return map[string]interface{}{"node": request.NodeID}, nil
	}))
	registry.Register(executor.NewFunc("boom", func(_ context.Context, _ *executor.Request) (map[string]interface{}, error) {
		return nil, errors.New("boom")
	}))

	workflow := model.New("seq").WithRoot(graph.NewSequence("root",
		graph.NewTask("a", "count"),
		graph.NewTask("b", "boom"),
		graph.NewTask("c", "count"),
	))

	outcome := mustRun(t, e, workflow, nil)
	assert.Equal(t, execution.OutcomeFailed, outcome.Kind)

	var executorErr *execution.ExecutorError
	require.ErrorAs(t, outcome.Err, &executorErr)
	assert.Equal(t, "b", executorErr.NodeID)

	assert.Equal(t, int32(1), started.Load(), "c never starts after b failed")
	record, _ := st.Read(context.Background(), "a", 0)
	assert.NotNil(t, record, "completed results before the failure are retained")
	record, _ = st.Read(context.Background(), "c", 0)
	assert.Nil(t, record)
}

func TestEngine_EmptyComposites(t *testing.T) {
	e, _, _ := newEngine(t, nil)
	for _, root := range []*graph.Node{graph.NewSequence("empty-seq"), graph.NewParallel("empty-par")} {
		outcome := mustRun(t, e, model.New("w").WithRoot(root), nil)
		assert.Equal(t, execution.OutcomeCompleted, outcome.Kind, root.ID)
	}
}

func TestEngine_ParallelJoinsAllBranches(t *testing.T) {
	e, st, registry := newEngine(t, nil)
	registry.Register(executor.NewFunc("slow", func(ctx context.Context, request *executor.Request) (map[string]interface{}, error) {
		delay := 10 * time.Millisecond
		if request.NodeID == "c" {
			delay = 50 * time.Millisecond
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return map[string]interface{}{"node": request.NodeID}, nil
	}))
	registry.Register(executor.NewFunc("boom", func(_ context.Context, _ *executor.Request) (map[string]interface{}, error) {
		return nil, errors.New("boom")
	}))

	workflow := model.New("par").WithRoot(graph.NewParallel("fan",
		graph.NewTask("a", "slow"),
		graph.NewTask("b", "boom"),
		graph.NewTask("c", "slow"),
	))

	outcome := mustRun(t, e, workflow, nil)
	assert.Equal(t, execution.OutcomeFailed, outcome.Kind)

	var aggregate *execution.ParallelError
	require.ErrorAs(t, outcome.Err, &aggregate)
	assert.Equal(t, "fan", aggregate.NodeID)
	require.Len(t, aggregate.Errors, 1)

	// b failed long before a and c finished, yet both still ran to completion
	record, _ := st.Read(context.Background(), "a", 0)
	assert.NotNil(t, record)
	record, _ = st.Read(context.Background(), "c", 0)
	assert.NotNil(t, record)
}

func TestEngine_SkippedNodeLeavesNoRecord(t *testing.T) {
	e, st, _ := newEngine(t, nil)
	task := graph.NewTask("optional", nop.Name).WithSkip(
		func(context.Context, graph.Outputs, int) bool { return true })
	workflow := model.New("skip").WithRoot(graph.NewSequence("root", task))

	run, err := e.Run(context.Background(), workflow, nil)
	require.NoError(t, err)
	outcome, err := run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, execution.OutcomeCompleted, outcome.Kind, "skip is not a failure")
	record, _ := st.Read(context.Background(), "optional", 0)
	assert.Nil(t, record, "skipped nodes produce no output")
	assert.Contains(t, eventTypes(run), event.NodeSkipped)
}

func TestEngine_LoopConverges(t *testing.T) {
	e, st, registry := newEngine(t, nil)
	var passes atomic.Int32
	registry.Register(executor.NewFunc("improve", func(_ context.Context, request *executor.Request) (map[string]interface{}, error) {
		passes.Add(1)
		return map[string]interface{}{"score": request.Iteration + 1}, nil
	}))

	loop := graph.NewLoop("retry", graph.NewTask("work", "improve"), "work", 10).
		WithUntil(func(payload map[string]interface{}) bool {
			return payload != nil && payload["score"].(int) >= 3
		})
	workflow := model.New("loop").WithRoot(loop)

	run, err := e.Run(context.Background(), workflow, nil)
	require.NoError(t, err)
	outcome, err := run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, execution.OutcomeConverged, outcome.Kind)
	assert.Equal(t, 3, outcome.Output["score"])
	assert.Equal(t, int32(3), passes.Load(), "predicate held after the third pass")

	// all iteration outputs stay readable
	var scores []interface{}
	next := st.History(context.Background(), "work")
	for record, ok := next(); ok; record, ok = next() {
		scores = append(scores, record.Payload["score"])
	}
	assert.Equal(t, []interface{}{1, 2, 3}, scores)

	var iterations int
	for _, ev := range run.Events() {
		if ev.Type == event.LoopIteration {
			iterations++
		}
	}
	assert.Equal(t, 3, iterations)
}

func TestEngine_LoopExhaustionFails(t *testing.T) {
	e, _, registry := newEngine(t, nil)
	var passes atomic.Int32
	registry.Register(executor.NewFunc("improve", func(_ context.Context, _ *executor.Request) (map[string]interface{}, error) {
		passes.Add(1)
		return map[string]interface{}{"ok": false}, nil
	}))

	loop := graph.NewLoop("retry", graph.NewTask("work", "improve"), "work", 5).
		WithUntil(func(map[string]interface{}) bool { return false })
	outcome := mustRun(t, e, model.New("loop").WithRoot(loop), nil)

	assert.Equal(t, execution.OutcomeFailed, outcome.Kind)
	var exhausted *execution.LoopExhaustedError
	require.ErrorAs(t, outcome.Err, &exhausted)
	assert.Equal(t, 5, exhausted.Iterations)
	assert.Equal(t, int32(5), passes.Load(), "exactly the cap, no extra pass")
}

func TestEngine_LoopExhaustionReturnsLast(t *testing.T) {
	e, _, registry := newEngine(t, nil)
	registry.Register(executor.NewFunc("improve", func(_ context.Context, request *executor.Request) (map[string]interface{}, error) {
		return map[string]interface{}{"attempt": request.Iteration}, nil
	}))

	loop := graph.NewLoop("retry", graph.NewTask("work", "improve"), "work", 5).
		WithUntil(func(map[string]interface{}) bool { return false }).
		WithOverflow(graph.OverflowReturnLast)
	outcome := mustRun(t, e, model.New("loop").WithRoot(loop), nil)

	assert.Equal(t, execution.OutcomeExhausted, outcome.Kind)
	assert.Equal(t, 4, outcome.Output["attempt"], "last iteration's output")
}

func TestEngine_LoopWithoutPredicateIsBoundedRepeat(t *testing.T) {
	e, _, registry := newEngine(t, nil)
	var passes atomic.Int32
	registry.Register(executor.NewFunc("work", func(_ context.Context, _ *executor.Request) (map[string]interface{}, error) {
		passes.Add(1)
		return map[string]interface{}{}, nil
	}))

	loop := graph.NewLoop("repeat", graph.NewTask("work", "work"), "work", 3).
		WithOverflow(graph.OverflowReturnLast)
	outcome := mustRun(t, e, model.New("loop").WithRoot(loop), nil)

	assert.Equal(t, execution.OutcomeExhausted, outcome.Kind)
	assert.Equal(t, int32(3), passes.Load())
}

func TestEngine_LoopContinueOnError(t *testing.T) {
	e, _, registry := newEngine(t, nil)
	registry.Register(executor.NewFunc("flaky", func(_ context.Context, request *executor.Request) (map[string]interface{}, error) {
		if request.Iteration < 2 {
			return nil, errors.New("transient")
		}
		return map[string]interface{}{"done": true}, nil
	}))

	loop := graph.NewLoop("retry", graph.NewTask("work", "flaky"), "work", 10).
		WithUntil(func(payload map[string]interface{}) bool {
			return payload != nil && payload["done"] == true
		}).
		WithContinueOnError(true)
	outcome := mustRun(t, e, model.New("loop").WithRoot(loop), nil)

	assert.Equal(t, execution.OutcomeConverged, outcome.Kind)
}

func TestEngine_ValidationFailureWritesNothing(t *testing.T) {
	e, st, registry := newEngine(t, nil)
	registry.Register(executor.NewFunc("bad", func(_ context.Context, _ *executor.Request) (map[string]interface{}, error) {
		return map[string]interface{}{"verdict": 42}, nil
	}))

	task := graph.NewTask("review", "bad").
		WithSchema(schema.New("review").WithField("verdict", schema.TypeString, true))
	outcome := mustRun(t, e, model.New("w").WithRoot(task), nil)

	assert.Equal(t, execution.OutcomeFailed, outcome.Kind)
	var invalid *execution.ValidationError
	require.ErrorAs(t, outcome.Err, &invalid)
	assert.Equal(t, "review", invalid.NodeID)
	assert.Equal(t, 42, invalid.Raw["verdict"])

	record, _ := st.Read(context.Background(), "review", 0)
	assert.Nil(t, record, "non-conforming payloads never reach the store")
}

func TestEngine_Cancellation(t *testing.T) {
	e, _, registry := newEngine(t, nil)
	entered := make(chan struct{})
	registry.Register(executor.NewFunc("block", func(ctx context.Context, _ *executor.Request) (map[string]interface{}, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	run, err := e.Run(context.Background(), model.New("w").WithRoot(graph.NewTask("t", "block")), nil)
	require.NoError(t, err)
	<-entered
	run.Cancel()

	outcome, err := run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.OutcomeCancelled, outcome.Kind)
	var cancelled *execution.CancelledError
	assert.ErrorAs(t, outcome.Err, &cancelled)
}

func TestEngine_DefinitionErrorRejectsRun(t *testing.T) {
	e, _, _ := newEngine(t, nil)
	workflow := model.New("bad").WithRoot(&graph.Node{ID: "t", Name: "t", Kind: graph.KindTask})

	_, err := e.Run(context.Background(), workflow, nil)
	var definition *execution.DefinitionError
	require.ErrorAs(t, err, &definition)
	assert.NotEmpty(t, definition.Issues)
}

func TestEngine_InitSeedsStore(t *testing.T) {
	e, _, registry := newEngine(t, nil)
	registry.Register(executor.NewFunc("echo", func(_ context.Context, request *executor.Request) (map[string]interface{}, error) {
		return request.Input, nil
	}))

	task := graph.NewTask("t", "echo").WithInput(
		func(ctx context.Context, outputs graph.Outputs, _ int) (map[string]interface{}, error) {
			seed, _ := outputs.Read(ctx, InitNodeID, 0)
			return seed, nil
		})
	workflow := model.New("w").WithInit("branch", "main").WithInit("depth", 1).WithRoot(task)

	outcome := mustRun(t, e, workflow, map[string]interface{}{"depth": 2})
	require.Equal(t, execution.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, "main", outcome.Output["branch"])
	assert.Equal(t, 2, outcome.Output["depth"], "per-run init overrides the definition")
}

func TestEngine_ApprovalPreseededPassesThrough(t *testing.T) {
	approvals := approvalmemory.New(queue.DefaultConfig())
	e, st, _ := newEngine(t, approvals)
	require.NoError(t, approvals.Preseed(context.Background(), "gate",
		&approval.Decision{Approved: true, Payload: map[string]interface{}{"approved": true, "by": "lead"}}))

	run, err := e.Run(context.Background(), model.New("w").WithRoot(graph.NewApproval("gate", "ship it?")), nil)
	require.NoError(t, err)
	outcome, err := run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, execution.OutcomeCompleted, outcome.Kind)
	record, _ := st.Read(context.Background(), "gate", 0)
	require.NotNil(t, record)
	assert.Equal(t, "lead", record.Payload["by"])
	assert.NotContains(t, eventTypes(run), event.ApprovalRequested, "no suspension when the decision was supplied upfront")
}

func TestEngine_ApprovalSuspendsUntilDecision(t *testing.T) {
	approvals := approvalmemory.New(queue.DefaultConfig())
	e, _, _ := newEngine(t, approvals)

	run, err := e.Run(context.Background(), model.New("w").WithRoot(graph.NewApproval("gate", "ship it?")), nil)
	require.NoError(t, err)

	var pending []*approval.Request
	require.Eventually(t, func() bool {
		pending, _ = approvals.Pending(context.Background(), run.ID)
		return len(pending) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Nil(t, run.Outcome(), "run suspended while the request is pending")

	require.NoError(t, approvals.Decide(context.Background(), pending[0].ID, &approval.Decision{Approved: true}))
	outcome, err := run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, true, outcome.Output["approved"])
}

func TestEngine_ApprovalRejectionFailsBranch(t *testing.T) {
	approvals := approvalmemory.New(queue.DefaultConfig())
	e, _, _ := newEngine(t, approvals)
	require.NoError(t, approvals.Preseed(context.Background(), "gate",
		&approval.Decision{Approved: false, Reason: "needs another pass"}))

	outcome := mustRun(t, e, model.New("w").WithRoot(graph.NewApproval("gate", "")), nil)
	assert.Equal(t, execution.OutcomeFailed, outcome.Kind)
	var rejected *execution.RejectedError
	require.ErrorAs(t, outcome.Err, &rejected)
	assert.Equal(t, "needs another pass", rejected.Reason)
}

func TestEngine_PolicyGatesApproval(t *testing.T) {
	approvals := approvalmemory.New(queue.DefaultConfig())
	e, _, _ := newEngine(t, approvals)
	workflow := model.New("w").WithRoot(graph.NewApproval("gate", ""))

	ctx := policy.WithPolicy(context.Background(), &policy.Policy{Mode: policy.ModeAuto})
	run, err := e.Run(ctx, workflow, nil)
	require.NoError(t, err)
	outcome, err := run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.OutcomeCompleted, outcome.Kind, "auto mode approves gates")

	ctx = policy.WithPolicy(context.Background(), &policy.Policy{Mode: policy.ModeDeny})
	run, err = e.Run(ctx, workflow, nil)
	require.NoError(t, err)
	outcome, err = run.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.OutcomeFailed, outcome.Kind, "deny mode rejects gates")
}

func TestEngine_SkipWhenExpression(t *testing.T) {
	e, st, registry := newEngine(t, nil)
	var passes atomic.Int32
	registry.Register(executor.NewFunc("fix", func(_ context.Context, _ *executor.Request) (map[string]interface{}, error) {
		passes.Add(1)
		return map[string]interface{}{"clean": true}, nil
	}))

	// second loop pass skips the task because its previous output already
	// satisfies the skip expression
	task := graph.NewTask("work", "fix").WithSkipWhen("clean == true")
	loop := graph.NewLoop("retry", task, "work", 2).WithOverflow(graph.OverflowReturnLast)
	outcome := mustRun(t, e, model.New("w").WithRoot(loop), nil)

	assert.Equal(t, execution.OutcomeExhausted, outcome.Kind)
	assert.Equal(t, int32(1), passes.Load())

	record, _ := st.Read(context.Background(), "work", 1)
	assert.Nil(t, record, "skipped iteration leaves no record")
}
