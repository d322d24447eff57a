package query

import (
	"fmt"
	"strings"
)

// Operator is the comparison applied by a Filter.
type Operator string

const (
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "neq"
	OpContains     Operator = "in"
	OpNotContains  Operator = "nin"
	OpStartsWith   Operator = "sw"
	OpEndsWith     Operator = "ew"
	OpExists       Operator = "ex"
	OpNotExists    Operator = "nex"
	OpResource     Operator = "res"
	OpGreater      Operator = "gt"
	OpGreaterEqual Operator = "gte"
	OpLess         Operator = "lt"
	OpLessEqual    Operator = "lte"
	OpRange        Operator = "range"
)

var operators = map[Operator]struct{}{
	OpEqual: {}, OpNotEqual: {}, OpContains: {}, OpNotContains: {},
	OpStartsWith: {}, OpEndsWith: {}, OpExists: {}, OpNotExists: {},
	OpResource: {}, OpGreater: {}, OpGreaterEqual: {}, OpLess: {},
	OpLessEqual: {}, OpRange: {},
}

func (o Operator) IsValid() bool {
	_, ok := operators[o]
	return ok
}

// Negated reports whether the operator is the negative form of another one.
// Negative operators are resolved as NOT of their positive counterpart.
func (o Operator) Negated() (Operator, bool) {
	switch o {
	case OpNotEqual:
		return OpEqual, true
	case OpNotContains:
		return OpContains, true
	case OpNotExists:
		return OpExists, true
	}
	return o, false
}

// IgnoresValue reports whether the operator tests existence only.
func (o Operator) IgnoresValue() bool {
	return o == OpExists || o == OpNotExists
}

// Joiner links a filter to the clauses that precede it.
type Joiner string

const (
	JoinAnd Joiner = "and"
	JoinOr  Joiner = "or"
	JoinNot Joiner = "not"
)

// Filter is one clause on a field.
type Filter struct {
	Op     Operator `json:"op"`
	Value  string   `json:"value,omitempty"`
	Joiner Joiner   `json:"joiner,omitempty"`
}

// FieldFilters holds the clauses of one field, in the order they were added.
type FieldFilters struct {
	Field   string   `json:"field"`
	Filters []Filter `json:"filters"`
}

// Clause is a filter bound to its field, as produced by Query.Clauses.
type Clause struct {
	Field string
	Filter
}

// ParseFilter reads the "field:op:value" notation used by the cli. The joiner
// may be given as a prefix: "or/dcterms:title:eq:Paris".
func ParseFilter(s string) (string, Filter, error) {
	joiner := JoinAnd
	for _, j := range []Joiner{JoinAnd, JoinOr, JoinNot} {
		if strings.HasPrefix(s, string(j)+"/") {
			joiner = j
			s = strings.TrimPrefix(s, string(j)+"/")
			break
		}
	}

	// field names may contain a colon (vocabulary prefix), so look for the
	// operator from the left past the field.
	parts := strings.Split(s, ":")
	for i := 1; i < len(parts); i++ {
		op := Operator(parts[i])
		if !op.IsValid() {
			continue
		}
		field := strings.Join(parts[:i], ":")
		value := strings.Join(parts[i+1:], ":")
		if field == "" {
			break
		}
		return field, Filter{Op: op, Value: value, Joiner: joiner}, nil
	}
	return "", Filter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

// Range is the parsed form of a "low..high" range value. Either bound may be
// empty.
type Range struct {
	From string
	To   string
}

func ParseRange(value string) (Range, error) {
	from, to, ok := strings.Cut(value, "..")
	if !ok {
		return Range{}, fmt.Errorf("%w: range %q must be written low..high", ErrInvalidFilter, value)
	}
	r := Range{From: strings.TrimSpace(from), To: strings.TrimSpace(to)}
	if r.From == "" && r.To == "" {
		return Range{}, fmt.Errorf("%w: range %q has no bound", ErrInvalidFilter, value)
	}
	return r, nil
}
