// Package model defines the workflow definition: a tree of task, sequence,
// parallel, loop and approval nodes, decodable from YAML or assembled
// programmatically via the graph builders. Definitions are configuration;
// execution state lives in runtime/execution.
package model
