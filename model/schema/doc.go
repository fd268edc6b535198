// Package schema declares node output shapes and validates raw executor
// results against them. Validation failure is a task failure distinct from
// executor failure; nothing is ever coerced silently.
package schema
