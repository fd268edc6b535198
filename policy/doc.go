// Package policy implements opt-in per-node gating (ask / auto / deny) with
// allow and block lists, carried through the execution context.
package policy
