package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/core/query"
)

var (
	errInvalidValue        = errors.New("invalid value")
	errUnsupportedOperator = errors.New("unsupported operator")
)

// leadingNumberPattern captures the signed number a textual value starts
// with, such as the year of a date.
const leadingNumberPattern = `^\s*([-+]{0,1}[0-9]+(\.[0-9]+){0,1})`

var numberRegexp = regexp.MustCompile(`^[-+]?[0-9]+(\.[0-9]+)?$`)

// resolver builds the predicate of a positive operator on a target.
type resolver func(t target, value string) (sq.Sqlizer, error)

var resolvers = map[query.Operator]resolver{
	query.OpEqual:        resolveEqual,
	query.OpContains:     textMatch(likeContains),
	query.OpStartsWith:   textMatch(likePrefix),
	query.OpEndsWith:     textMatch(likeSuffix),
	query.OpExists:       resolveExists,
	query.OpResource:     resolveResource,
	query.OpGreater:      compare(">"),
	query.OpGreaterEqual: compare(">="),
	query.OpLess:         compare("<"),
	query.OpLessEqual:    compare("<="),
	query.OpRange:        resolveRange,
}

// resolveFilter returns the predicate of f on t. Negative operators resolve
// to the negation of their positive form, so that "neq" on a multi-valued
// field excludes resources holding the value at all.
func resolveFilter(t target, f query.Filter) (sq.Sqlizer, error) {
	op, negated := f.Op.Negated()
	resolve, ok := resolvers[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnsupportedOperator, f.Op)
	}

	value := strings.TrimSpace(f.Value)
	if value == "" && !op.IgnoresValue() {
		return nil, fmt.Errorf("%w: operator %q needs a value", errInvalidValue, f.Op)
	}

	pred, err := resolve(t, value)
	if err != nil {
		return nil, err
	}
	if negated {
		return not(pred), nil
	}
	return pred, nil
}

func not(pred sq.Sqlizer) sq.Sqlizer {
	return sq.Expr("NOT (?)", pred)
}

func resolveEqual(t target, value string) (sq.Sqlizer, error) {
	if t.numeric {
		id, err := parseID(value)
		if err != nil {
			return nil, err
		}
		return t.wrap(sq.Eq{t.texts[0]: id}), nil
	}

	cond := make(sq.Or, 0, len(t.texts))
	for _, col := range t.texts {
		cond = append(cond, sq.Eq{col: value})
	}
	return t.wrap(cond), nil
}

// textMatch matches the textual form of the target case-insensitively with
// the LIKE pattern built from the value.
func textMatch(pattern func(string) string) resolver {
	return func(t target, value string) (sq.Sqlizer, error) {
		cond := make(sq.Or, 0, len(t.texts))
		for _, col := range t.texts {
			if t.numeric {
				col += "::text"
			}
			cond = append(cond, sq.Expr(col+" ILIKE ?", pattern(value)))
		}
		return t.wrap(cond), nil
	}
}

func resolveExists(t target, _ string) (sq.Sqlizer, error) {
	return t.exists(), nil
}

func resolveResource(t target, value string) (sq.Sqlizer, error) {
	if t.ref == "" {
		return nil, fmt.Errorf("%w: %q on field %q", errUnsupportedOperator, query.OpResource, t.field)
	}
	id, err := parseID(value)
	if err != nil {
		return nil, err
	}
	return t.wrap(sq.Eq{t.ref: id}), nil
}

func compare(op string) resolver {
	return func(t target, value string) (sq.Sqlizer, error) {
		cond, err := ordering(t, op, value)
		if err != nil {
			return nil, err
		}
		return t.wrap(cond), nil
	}
}

// resolveRange bounds the same value of the target on both sides.
func resolveRange(t target, value string) (sq.Sqlizer, error) {
	rng, err := query.ParseRange(value)
	if err != nil {
		return nil, err
	}

	var cond sq.And
	if rng.From != "" {
		from, err := ordering(t, ">=", rng.From)
		if err != nil {
			return nil, err
		}
		cond = append(cond, from)
	}
	if rng.To != "" {
		to, err := ordering(t, "<=", rng.To)
		if err != nil {
			return nil, err
		}
		cond = append(cond, to)
	}
	return t.wrap(cond), nil
}

// ordering compares numerically when the bound is a number, using the number
// the textual value starts with, and lexically otherwise so that ISO dates
// compare as expected.
func ordering(t target, op, bound string) (sq.Sqlizer, error) {
	col := t.texts[0]
	if t.numeric {
		id, err := parseID(bound)
		if err != nil {
			return nil, err
		}
		return sq.Expr(col+" "+op+" ?", id), nil
	}
	if numberRegexp.MatchString(bound) {
		return sq.Expr("substring("+col+" FROM ?)::numeric "+op+" ?", leadingNumberPattern, bound), nil
	}
	return sq.Expr(col+" "+op+" ?", bound), nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an id", errInvalidValue, value)
	}
	return id, nil
}

// resolveFilters combines the clauses of q into one predicate. A clause
// joined with "and" opens a new group, "or" extends the current group and
// "not" opens a group holding the negated clause. Groups are AND-ed and the
// clauses of a group OR-ed. Clauses that cannot be resolved are skipped.
func (qr *Querier) resolveFilters(ctx context.Context, q query.Query) (sq.Sqlizer, error) {
	var groups []sq.Or
	for _, c := range q.Clauses() {
		t, err := qr.resolveField(ctx, c.Field, q.PublicOnly())
		if err != nil {
			if errors.Is(err, errUnknownField) {
				qr.logger.Warn("ignoring filter", "engine", qr.engine.Name, "field", c.Field, "op", c.Op, "err", err)
				continue
			}
			return nil, err
		}

		pred, err := resolveFilter(t, c.Filter)
		if err != nil {
			qr.logger.Warn("ignoring filter", "engine", qr.engine.Name, "field", c.Field, "op", c.Op, "err", err)
			continue
		}

		switch {
		case c.Joiner == query.JoinOr && len(groups) > 0:
			groups[len(groups)-1] = append(groups[len(groups)-1], pred)
		case c.Joiner == query.JoinNot:
			groups = append(groups, sq.Or{not(pred)})
		default:
			groups = append(groups, sq.Or{pred})
		}
	}

	if len(groups) == 0 {
		return nil, nil
	}
	and := make(sq.And, 0, len(groups))
	for _, g := range groups {
		and = append(and, g)
	}
	return and, nil
}
