package store

import (
	"context"
	"time"
)

// Record is one node output: the schema-validated payload a node produced at
// a given iteration. At most one record exists per (NodeID, Iteration) pair;
// re-execution within the same iteration overwrites, never duplicates.
type Record struct {
	NodeID     string                 `json:"nodeId"`
	Iteration  int                    `json:"iteration"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	ProducedAt time.Time              `json:"producedAt"`
}

// Iterator yields successive records; ok is false once the sequence is
// exhausted. Obtaining a fresh Iterator restarts the scan.
type Iterator func() (record *Record, ok bool)

// Service is the output store: the append-only, versioned record of every
// node result in a run, queryable by node identity and iteration. It is the
// only shared mutable resource of a run; writes are keyed by
// (nodeID, iteration) and never contended across distinct keys.
type Service interface {
	// Write stores or overwrites the record for the exact (nodeID,
	// iteration) pair. The write is all-or-nothing; subsequent reads
	// observe the new value.
	Write(ctx context.Context, nodeID string, iteration int, payload map[string]interface{}) error

	// Read returns the record for (nodeID, iteration), or nil when absent.
	// Absence is a well-defined result, not an error - callers use it to
	// mean "not yet produced".
	Read(ctx context.Context, nodeID string, iteration int) (*Record, error)

	// ReadLatest returns the record with the highest iteration written for
	// nodeID, or nil when the node has produced nothing.
	ReadLatest(ctx context.Context, nodeID string) (*Record, error)

	// History returns a lazy, restartable iterator over nodeID's records in
	// ascending iteration order, stopping at the first absent iteration.
	History(ctx context.Context, nodeID string) Iterator
}
