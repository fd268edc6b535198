package predicate

import (
	"strconv"
	"strings"

	"github.com/viant/parsly"
)

// Parse parses a predicate expression in the format:
//
//	[!]selector [operator literal]
//
// where selector is a dotted field path into a node output payload, operator
// is one of ==, !=, >, <, >=, <= and literal is a quoted string, a number or
// a boolean. A bare selector tests field truthiness; a leading '!' negates
// the whole expression.
func Parse(input string) (*Expr, error) {
	cursor := parsly.NewCursor("", []byte(input), 0)
	expr := &Expr{Source: input}

	// Optional negation
	matched := cursor.MatchAfterOptional(whitespaceToken, bangToken)
	if matched.Code == bangToken.Code {
		expr.Negated = true
	}

	// Match the selector (dotted field path)
	matched = cursor.MatchAfterOptional(whitespaceToken, selectorToken)
	if matched.Code != selectorToken.Code {
		return nil, cursor.NewError(selectorToken)
	}
	expr.Path = strings.Split(matched.Text(cursor), ".")

	// A bare selector is a complete expression
	matched = cursor.MatchAfterOptional(whitespaceToken, operatorToken)
	if matched.Code != operatorToken.Code {
		if cursor.Pos < cursor.InputSize && strings.TrimSpace(string(cursor.Input[cursor.Pos:])) != "" {
			return nil, cursor.NewError(operatorToken)
		}
		return expr, nil
	}
	expr.Op = matched.Text(cursor)

	// Match the comparison operand
	matched = cursor.MatchAfterOptional(whitespaceToken, literalToken)
	if matched.Code != literalToken.Code {
		return nil, cursor.NewError(literalToken)
	}
	operand, err := parseLiteral(matched.Text(cursor))
	if err != nil {
		return nil, err
	}
	expr.Operand = operand

	if cursor.Pos < cursor.InputSize && strings.TrimSpace(string(cursor.Input[cursor.Pos:])) != "" {
		return nil, cursor.NewError(whitespaceToken)
	}
	return expr, nil
}

func parseLiteral(text string) (interface{}, error) {
	switch {
	case text == "true":
		return true, nil
	case text == "false":
		return false, nil
	case text[0] == '\'' || text[0] == '"':
		return text[1 : len(text)-1], nil
	}
	return strconv.ParseFloat(text, 64)
}
