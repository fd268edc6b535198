package fs

import (
	"context"
	"testing"

	_ "github.com/viant/afs/mem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, err := New("mem://localhost/store-roundtrip")
	require.NoError(t, err)

	require.NoError(t, svc.Write(ctx, "review/pass/merge", 0, map[string]interface{}{"approved": true}))
	require.NoError(t, svc.Write(ctx, "review/pass/merge", 1, map[string]interface{}{"approved": false}))

	record, err := svc.Read(ctx, "review/pass/merge", 0)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, true, record.Payload["approved"])

	latest, err := svc.ReadLatest(ctx, "review/pass/merge")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.Iteration)

	absent, err := svc.Read(ctx, "review/pass/merge", 7)
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestService_History(t *testing.T) {
	ctx := context.Background()
	svc, err := New("mem://localhost/store-history")
	require.NoError(t, err)

	for i, value := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Write(ctx, "improve", i, map[string]interface{}{"x": value}))
	}

	var collected []string
	history := svc.History(ctx, "improve")
	for {
		record, ok := history()
		if !ok {
			break
		}
		collected = append(collected, record.Payload["x"].(string))
	}
	assert.Equal(t, []string{"a", "b", "c"}, collected)
}

func TestNew_EmptyBaseURL(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
