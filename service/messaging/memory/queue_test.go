package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string
}

func TestQueue_PublishConsume(t *testing.T) {
	ctx := context.Background()
	queue := NewQueue[payload](DefaultConfig())

	require.NoError(t, queue.Publish(ctx, &payload{Value: "first"}))
	require.NoError(t, queue.Publish(ctx, &payload{Value: "second"}))
	assert.Equal(t, 2, queue.Size())

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", msg.T().Value)
	require.NoError(t, msg.Ack())
	assert.Error(t, msg.Ack(), "double ack must fail")
}

func TestQueue_ConsumeHonoursContext(t *testing.T) {
	queue := NewQueue[payload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_NackRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	queue := NewQueue[payload](Config{MaxRetries: 1, RetryDelay: time.Millisecond, DeadLetter: true, QueueBuffer: 10})

	require.NoError(t, queue.Publish(ctx, &payload{Value: "poison"}))

	// first delivery, nacked - requeued once
	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, msg.Nack(assert.AnError))

	// retried delivery, nacked - over the limit, parked on the DLQ
	retryCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	msg, err = queue.Consume(retryCtx)
	require.NoError(t, err)
	require.NoError(t, msg.Nack(assert.AnError))

	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, 5*time.Millisecond)
}
