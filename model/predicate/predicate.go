package predicate

// Expr is a compiled predicate over a node output payload. Expressions are
// deliberately tiny - a single field comparison or truthiness test - because
// anything richer belongs in a programmatic predicate supplied as a Go
// function on the node itself.
type Expr struct {
	Source  string
	Path    []string
	Op      string
	Operand interface{}
	Negated bool
}

// Eval evaluates the expression against the supplied payload. A nil payload
// or a missing field makes the underlying test false (before negation), so
// predicates over a node that has produced nothing yet never converge
// spuriously.
func (e *Expr) Eval(payload map[string]interface{}) bool {
	result := e.eval(payload)
	if e.Negated {
		return !result
	}
	return result
}

func (e *Expr) eval(payload map[string]interface{}) bool {
	value, ok := lookup(payload, e.Path)
	if !ok {
		return false
	}
	if e.Op == "" {
		return truthy(value)
	}
	return compare(value, e.Op, e.Operand)
}

func lookup(payload map[string]interface{}, path []string) (interface{}, bool) {
	var current interface{} = payload
	for _, segment := range path {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if current, ok = node[segment]; !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func truthy(value interface{}) bool {
	switch actual := value.(type) {
	case bool:
		return actual
	case string:
		return actual != ""
	case nil:
		return false
	}
	if number, ok := asFloat(value); ok {
		return number != 0
	}
	return true
}

func compare(value interface{}, op string, operand interface{}) bool {
	if left, ok := asFloat(value); ok {
		right, ok := asFloat(operand)
		if !ok {
			return false
		}
		switch op {
		case "==":
			return left == right
		case "!=":
			return left != right
		case ">":
			return left > right
		case "<":
			return left < right
		case ">=":
			return left >= right
		case "<=":
			return left <= right
		}
		return false
	}

	switch op {
	case "==":
		return equal(value, operand)
	case "!=":
		return !equal(value, operand)
	}
	return false
}

func equal(value, operand interface{}) bool {
	if left, ok := value.(string); ok {
		right, ok := operand.(string)
		return ok && left == right
	}
	if left, ok := value.(bool); ok {
		right, ok := operand.(bool)
		return ok && left == right
	}
	return false
}

func asFloat(value interface{}) (float64, bool) {
	switch actual := value.(type) {
	case int:
		return float64(actual), true
	case int8:
		return float64(actual), true
	case int16:
		return float64(actual), true
	case int32:
		return float64(actual), true
	case int64:
		return float64(actual), true
	case uint:
		return float64(actual), true
	case uint8:
		return float64(actual), true
	case uint16:
		return float64(actual), true
	case uint32:
		return float64(actual), true
	case uint64:
		return float64(actual), true
	case float32:
		return float64(actual), true
	case float64:
		return actual, true
	}
	return 0, false
}
