package memory

import (
	"context"
	"testing"
	"time"

	"github.com/grovekit/grove/service/approval"
	queue "github.com/grovekit/grove/service/messaging/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RequestDecideAwait(t *testing.T) {
	ctx := context.Background()
	svc := New(queue.DefaultConfig())

	request := &approval.Request{RunID: "run-1", NodeID: "gate", Message: "ship it?"}
	require.NoError(t, svc.Request(ctx, request))
	require.NotEmpty(t, request.ID)

	pending, err := svc.Pending(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "gate", pending[0].NodeID)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = svc.Decide(ctx, request.ID, &approval.Decision{Approved: true, Payload: map[string]interface{}{"approved": true}})
	}()

	decision, err := svc.Await(ctx, request.ID)
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, "gate", decision.NodeID)

	pending, err = svc.Pending(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, pending, "decided requests leave the pending list")
}

func TestService_AwaitAfterDecision(t *testing.T) {
	ctx := context.Background()
	svc := New(queue.DefaultConfig())

	request := &approval.Request{RunID: "run-1", NodeID: "gate"}
	require.NoError(t, svc.Request(ctx, request))
	require.NoError(t, svc.Decide(ctx, request.ID, &approval.Decision{Approved: false, Reason: "needs work"}))

	decision, err := svc.Await(ctx, request.ID)
	require.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Equal(t, "needs work", decision.Reason)
}

func TestService_AwaitHonoursContext(t *testing.T) {
	svc := New(queue.DefaultConfig())
	request := &approval.Request{RunID: "run-1", NodeID: "gate"}
	require.NoError(t, svc.Request(context.Background(), request))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Await(ctx, request.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Preseed(t *testing.T) {
	ctx := context.Background()
	svc := New(queue.DefaultConfig())

	require.NoError(t, svc.Preseed(ctx, "gate", &approval.Decision{Approved: true}))
	decision, ok := svc.Preseeded(ctx, "gate")
	require.True(t, ok)
	assert.True(t, decision.Approved)

	_, ok = svc.Preseeded(ctx, "other")
	assert.False(t, ok)
}

func TestService_DecideUnknownRequest(t *testing.T) {
	svc := New(queue.DefaultConfig())
	err := svc.Decide(context.Background(), "missing", &approval.Decision{Approved: true})
	assert.Error(t, err)
}
