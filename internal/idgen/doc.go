// Package idgen centralises unique identifier generation so that run, event
// and approval-request identifiers share one implementation and tests can
// install a deterministic stub via NewFunc.
package idgen
