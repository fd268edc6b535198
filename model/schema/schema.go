package schema

import (
	"fmt"
	"reflect"
)

// FieldType enumerates the value kinds a schema field may declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
	// TypeAny accepts any non-nil value; use for free-form fields.
	TypeAny FieldType = "any"
)

// Field describes a single field of a node output shape.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type,omitempty" yaml:"type,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Schema declares the shape a task node's raw executor result must conform
// to before it becomes an output record. Fields not listed in the schema are
// carried through untouched - a schema constrains, it never filters.
type Schema struct {
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// New creates a schema with the supplied fields.
func New(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// WithField appends a field declaration and returns the schema for chaining.
func (s *Schema) WithField(name string, fieldType FieldType, required bool) *Schema {
	s.Fields = append(s.Fields, Field{Name: name, Type: fieldType, Required: required})
	return s
}

// Field returns the declaration for the given name, or nil when absent.
func (s *Schema) Field(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Validate checks the supplied payload against the declared shape. The
// returned slice is empty when the payload conforms; otherwise it contains
// one error per violation so a caller can report all of them in one pass.
// The payload is never coerced - a mismatched type is a violation even when
// a lossless conversion would exist.
func (s *Schema) Validate(payload map[string]interface{}) []error {
	if s == nil {
		return nil
	}
	var issues []error
	for i := range s.Fields {
		field := &s.Fields[i]
		value, ok := payload[field.Name]
		if !ok || value == nil {
			if field.Required {
				issues = append(issues, fmt.Errorf("missing required field %q", field.Name))
			}
			continue
		}
		if err := checkType(field, value); err != nil {
			issues = append(issues, err)
		}
	}
	return issues
}

func checkType(field *Field, value interface{}) error {
	switch field.Type {
	case "", TypeAny:
		return nil
	case TypeString:
		if _, ok := value.(string); ok {
			return nil
		}
	case TypeBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	case TypeNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return nil
		}
	case TypeObject:
		if reflect.ValueOf(value).Kind() == reflect.Map {
			return nil
		}
	case TypeArray:
		switch reflect.ValueOf(value).Kind() {
		case reflect.Slice, reflect.Array:
			return nil
		}
	default:
		return fmt.Errorf("field %q declares unknown type %q", field.Name, field.Type)
	}
	return fmt.Errorf("field %q expects %s, got %T", field.Name, field.Type, value)
}
