package model

import (
	"testing"

	"github.com/grovekit/grove/model/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		workflow *Workflow
		expected int
	}{
		{
			name:     "nil root",
			workflow: New("empty"),
			expected: 1,
		},
		{
			name: "sound tree",
			workflow: New("review").WithRoot(
				graph.NewSequence("main",
					graph.NewTask("plan", "nop"),
					graph.NewParallel("reviewers",
						graph.NewTask("security", "nop"),
						graph.NewTask("style", "nop"),
					),
				),
			),
			expected: 0,
		},
		{
			name: "duplicate ids",
			workflow: New("dup").WithRoot(
				graph.NewSequence("main",
					graph.NewTask("step", "nop"),
					graph.NewTask("step", "nop"),
				),
			),
			expected: 1,
		},
		{
			name: "task without executor",
			workflow: New("bad").WithRoot(
				graph.NewSequence("main", graph.NewTask("step", "")),
			),
			expected: 1,
		},
		{
			name: "loop with unknown target",
			workflow: New("loop").WithRoot(
				graph.NewLoop("ralph", graph.NewTask("improve", "nop"), "missing", 5),
			),
			expected: 1,
		},
		{
			name: "loop without iteration cap",
			workflow: New("loop").WithRoot(
				graph.NewLoop("ralph", graph.NewTask("improve", "nop"), "improve", 0),
			),
			expected: 1,
		},
		{
			name: "loop with invalid overflow policy",
			workflow: New("loop").WithRoot(
				graph.NewLoop("ralph", graph.NewTask("improve", "nop"), "improve", 3).
					WithOverflow("explode"),
			),
			expected: 1,
		},
		{
			name: "invalid predicate expressions",
			workflow: New("expr").WithRoot(
				graph.NewLoop("ralph",
					graph.NewTask("improve", "nop").WithSkipWhen("done =="),
					"improve", 3).
					WithUntilWhen("?? bogus"),
			),
			expected: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issues := tc.workflow.Validate()
			assert.Equal(t, tc.expected, len(issues), "%v", issues)
		})
	}
}

func TestDecodeYAML(t *testing.T) {
	var data = `
name: review
description: parallel review with a convergence loop
init:
  branch: main
root:
  name: review
  kind: loop
  loop:
    target: merge
    maxIterations: 4
    overflow: returnLast
    untilWhen: approved == true
  nodes:
    - name: pass
      kind: sequence
      nodes:
        - name: reviewers
          kind: parallel
          nodes:
            - name: security
              kind: task
              executor: nop
            - name: style
              kind: task
              executor: nop
        - name: merge
          kind: task
          executor: nop
          skipWhen: approved == true
`
	workflow, err := DecodeYAML([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "review", workflow.Name)
	assert.Equal(t, "main", workflow.Init["branch"])

	nodes := workflow.AllNodes()
	assert.Contains(t, nodes, "review")
	assert.Contains(t, nodes, "review/pass/reviewers/security")

	// the loop target "merge" resolves by node name
	assert.Equal(t, "review/pass/merge", nodes["merge"].ID)

	root := workflow.Root
	require.Equal(t, graph.KindLoop, root.Kind)
	assert.Equal(t, 4, root.Loop.MaxIterations)
	assert.Equal(t, graph.OverflowReturnLast, root.Loop.Overflow)
}

func TestDecodeYAML_Invalid(t *testing.T) {
	_, err := DecodeYAML([]byte("root:\n  name: solo\n  kind: task\n"))
	assert.Error(t, err, "task without executor must not decode")

	_, err = DecodeYAML([]byte("{"))
	assert.Error(t, err)
}
