// Package predicate compiles the small declarative expressions that YAML
// workflow definitions use for skip and convergence conditions, e.g.
// "done == true", "remaining < 1" or "!approved". Programmatic workflows
// pass plain Go functions instead and never touch this package.
package predicate
