package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		schema   *Schema
		payload  map[string]interface{}
		expected int
	}{
		{
			name:     "nil schema accepts anything",
			schema:   nil,
			payload:  map[string]interface{}{"x": 1},
			expected: 0,
		},
		{
			name:     "missing required field",
			schema:   New("review").WithField("approved", TypeBoolean, true),
			payload:  map[string]interface{}{},
			expected: 1,
		},
		{
			name:     "optional field absent",
			schema:   New("review").WithField("notes", TypeString, false),
			payload:  map[string]interface{}{},
			expected: 0,
		},
		{
			name:     "type mismatch is never coerced",
			schema:   New("review").WithField("approved", TypeBoolean, true),
			payload:  map[string]interface{}{"approved": "yes"},
			expected: 1,
		},
		{
			name: "multiple violations reported together",
			schema: New("review").
				WithField("approved", TypeBoolean, true).
				WithField("score", TypeNumber, true),
			payload:  map[string]interface{}{"approved": "yes"},
			expected: 2,
		},
		{
			name: "conformant payload",
			schema: New("review").
				WithField("approved", TypeBoolean, true).
				WithField("score", TypeNumber, false).
				WithField("items", TypeArray, false).
				WithField("detail", TypeObject, false),
			payload: map[string]interface{}{
				"approved": true,
				"score":    4.5,
				"items":    []interface{}{"a"},
				"detail":   map[string]interface{}{"k": "v"},
				"extra":    "carried through untouched",
			},
			expected: 0,
		},
		{
			name:     "untyped field accepts any value",
			schema:   New("free").WithField("anything", TypeAny, true),
			payload:  map[string]interface{}{"anything": []int{1, 2}},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issues := tc.schema.Validate(tc.payload)
			assert.Equal(t, tc.expected, len(issues), "%v", issues)
		})
	}
}

func TestSchema_Field(t *testing.T) {
	s := New("out").WithField("done", TypeBoolean, true)
	assert.NotNil(t, s.Field("done"))
	assert.Nil(t, s.Field("missing"))
}
