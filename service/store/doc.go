// Package store defines the output store contract: every node result is
// persisted keyed by (nodeID, iteration) so that later nodes - and later
// iterations of an enclosing loop - can read earlier results without any
// shared mutable closures. Sub-packages provide an in-memory implementation
// and an afs-backed one for post-run inspection.
package store
