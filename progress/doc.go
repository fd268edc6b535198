// Package progress tracks aggregated per-run node counters through the
// execution context.
package progress
