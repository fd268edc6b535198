package engine

import (
	"context"

	"github.com/grovekit/grove/model/graph"
	"github.com/grovekit/grove/service/store"
)

// storeOutputs adapts the output store to the read-only view nodes receive.
// Store errors surface as absence; input builders treat both identically and
// the underlying failure still fails the producing write.
type storeOutputs struct {
	store store.Service
}

func (o *storeOutputs) Read(ctx context.Context, nodeID string, iteration int) (map[string]interface{}, bool) {
	record, err := o.store.Read(ctx, nodeID, iteration)
	if err != nil || record == nil {
		return nil, false
	}
	return record.Payload, true
}

func (o *storeOutputs) ReadLatest(ctx context.Context, nodeID string) (map[string]interface{}, int, bool) {
	record, err := o.store.ReadLatest(ctx, nodeID)
	if err != nil || record == nil {
		return nil, 0, false
	}
	return record.Payload, record.Iteration, true
}

func (o *storeOutputs) History(ctx context.Context, nodeID string) graph.Iterator {
	next := o.store.History(ctx, nodeID)
	return func() (map[string]interface{}, bool) {
		record, ok := next()
		if !ok {
			return nil, false
		}
		return record.Payload, true
	}
}
