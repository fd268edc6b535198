package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grovekit/grove/model"
	"github.com/grovekit/grove/model/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FinishSettlesOnce(t *testing.T) {
	workflow := model.New("w").WithRoot(graph.NewTask("t", "nop"))
	run := NewRun(workflow, nil)
	assert.Equal(t, StatePending, run.State)

	run.Begin(func() {})
	run.Finish(&Outcome{Kind: OutcomeCompleted})
	run.Finish(&Outcome{Kind: OutcomeFailed, Err: errors.New("late")})

	outcome, err := run.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome.Kind, "first finish wins")
	assert.Equal(t, StateCompleted, run.State)
	assert.NotNil(t, run.FinishedAt)
}

func TestRun_WaitTimesOut(t *testing.T) {
	workflow := model.New("w").WithRoot(graph.NewTask("t", "nop"))
	run := NewRun(workflow, nil)
	_, err := run.Wait(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScope_Cursors(t *testing.T) {
	var root *Scope
	assert.Equal(t, 0, root.At())

	outer := root.Push("retry", 2)
	inner := outer.Push("polish", 4)

	assert.Equal(t, 4, inner.At())
	assert.Equal(t, 2, outer.At())
	assert.Equal(t, []Cursor{{NodeID: "retry", Iteration: 2}, {NodeID: "polish", Iteration: 4}}, inner.Cursors())
}

func TestParallelError_Unwrap(t *testing.T) {
	branch := &ExecutorError{NodeID: "b", Iteration: 0, Err: errors.New("boom")}
	aggregate := &ParallelError{NodeID: "fan", Errors: []error{branch}}

	var executorErr *ExecutorError
	require.ErrorAs(t, error(aggregate), &executorErr)
	assert.Equal(t, "b", executorErr.NodeID)
}
