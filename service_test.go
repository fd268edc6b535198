package grove_test

import (
	"context"
	"embed"
	"testing"
	"time"

	"github.com/grovekit/grove"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "github.com/viant/afs/embed"
)

//go:embed testdata/*
var embedFS embed.FS

func newService() *grove.Service {
	return grove.New(
		grove.WithFsOptions(&embedFS),
		grove.WithBaseURL("embed:///testdata"),
	)
}

func TestService_LoadWorkflow(t *testing.T) {
	srv := newService()
	defer srv.Shutdown()
	runtime := srv.Runtime()
	ctx := context.Background()

	workflow, err := runtime.LoadWorkflow(ctx, "review.yaml")
	require.NoError(t, err)
	require.NotNil(t, workflow)
	assert.Equal(t, "review", workflow.Name)
	assert.Equal(t, "embed:///testdata/review.yaml", workflow.Source.URL)

	nodes := workflow.AllNodes()
	assert.Contains(t, nodes, "review/reviewers/security")
	assert.Contains(t, nodes, "merge")
}

func TestService_RunReviewWorkflow(t *testing.T) {
	srv := newService()
	defer srv.Shutdown()
	runtime := srv.Runtime()
	ctx := context.Background()

	workflow, err := runtime.LoadWorkflow(ctx, "review.yaml")
	require.NoError(t, err)

	run, err := runtime.StartRun(ctx, workflow, nil)
	require.NoError(t, err)
	outcome, err := run.Wait(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, "pass", outcome.Output["verdict"])

	// every node's result is in the store under its id and iteration
	record, err := runtime.Store().Read(ctx, "review/reviewers/security", 0)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "security", record.Payload["area"])

	// the run's init payload was seeded into the store as well
	record, err = runtime.Store().Read(ctx, "init", 0)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "main", record.Payload["branch"])

	loaded, err := runtime.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StateCompleted, loaded.State)
}

func TestService_RunLoopWorkflow(t *testing.T) {
	srv := newService()
	defer srv.Shutdown()
	runtime := srv.Runtime()
	ctx := context.Background()

	workflow, err := runtime.LoadWorkflow(ctx, "retry.yaml")
	require.NoError(t, err)

	run, err := runtime.StartRun(ctx, workflow, nil)
	require.NoError(t, err)
	outcome, err := run.Wait(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.OutcomeConverged, outcome.Kind, "declarative predicate held after the first pass")
	assert.Equal(t, true, outcome.Output["done"])
}

func TestService_Runs(t *testing.T) {
	srv := newService()
	defer srv.Shutdown()
	runtime := srv.Runtime()
	ctx := context.Background()

	workflow, err := runtime.LoadWorkflow(ctx, "retry.yaml")
	require.NoError(t, err)
	run, err := runtime.StartRun(ctx, workflow, nil)
	require.NoError(t, err)
	_, err = run.Wait(ctx, 5*time.Second)
	require.NoError(t, err)

	runs, err := runtime.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = runtime.Run(ctx, "missing")
	assert.Error(t, err)
}
