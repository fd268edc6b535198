package predicate

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	bangCode
	selectorCode
	operatorCode
	literalCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	bangToken       = parsly.NewToken(bangCode, "!", matcher.NewByte('!'))
	selectorToken   = parsly.NewToken(selectorCode, "Selector", &selectorMatcher{})
	operatorToken   = parsly.NewToken(operatorCode, "Operator", &operatorMatcher{})
	literalToken    = parsly.NewToken(literalCode, "Literal", &literalMatcher{})
)

// selectorMatcher matches a dotted field path (e.g. review.approved)
type selectorMatcher struct{}

func (m *selectorMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		c := input[i]
		if isLetter(c) || isDigit(c) || c == '_' || c == '.' {
			matched++
			continue
		}
		break
	}
	return matched
}

// operatorMatcher matches a comparison operator; the longest form wins so
// that ">=" is never tokenised as ">" followed by "=".
type operatorMatcher struct{}

func (m *operatorMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	switch input[pos] {
	case '=', '!':
		if pos+1 < size && input[pos+1] == '=' {
			return 2
		}
		return 0
	case '>', '<':
		if pos+1 < size && input[pos+1] == '=' {
			return 2
		}
		return 1
	}
	return 0
}

// literalMatcher matches a quoted string, a number or a boolean keyword.
type literalMatcher struct{}

func (m *literalMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	switch c := input[pos]; {
	case c == '\'' || c == '"':
		for i := pos + 1; i < size; i++ {
			if input[i] == c {
				return i - pos + 1
			}
		}
		return 0
	case isDigit(c) || c == '-':
		matched := 1
		for i := pos + 1; i < size; i++ {
			if isDigit(input[i]) || input[i] == '.' {
				matched++
				continue
			}
			break
		}
		return matched
	case isLetter(c):
		matched := 1
		for i := pos + 1; i < size; i++ {
			if isLetter(input[i]) {
				matched++
				continue
			}
			break
		}
		word := string(input[pos : pos+matched])
		if word == "true" || word == "false" {
			return matched
		}
		return 0
	}
	return 0
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
