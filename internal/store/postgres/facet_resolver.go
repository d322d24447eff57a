package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/core/query"
)

// resolveActiveFacets returns, per field, the predicate narrowing results to
// the selected facet values. Values of one field are OR-ed.
func (qr *Querier) resolveActiveFacets(ctx context.Context, q query.Query) (map[string]sq.Sqlizer, error) {
	preds := make(map[string]sq.Sqlizer, len(q.ActiveFacets))
	for field, values := range q.ActiveFacets {
		if len(values) == 0 {
			continue
		}

		t, err := qr.resolveField(ctx, field, q.PublicOnly())
		if err != nil {
			if errors.Is(err, errUnknownField) {
				qr.logger.Warn("ignoring active facet", "engine", qr.engine.Name, "field", field, "err", err)
				continue
			}
			return nil, err
		}

		cfg := q.Facets[field].Normalize()
		var cond sq.Or
		for _, value := range values {
			c, err := facetCondition(t, cfg, value)
			if err != nil {
				qr.logger.Warn("ignoring active facet value", "engine", qr.engine.Name, "field", field, "value", value, "err", err)
				continue
			}
			cond = append(cond, c)
		}
		if len(cond) > 0 {
			preds[field] = t.wrap(cond)
		}
	}
	return preds, nil
}

// facetCondition matches the rows of t falling in the facet bucket value.
func facetCondition(t target, cfg query.FacetConfig, value string) (sq.Sqlizer, error) {
	switch {
	case cfg.Type == query.FacetTypeResource:
		if t.ref == "" {
			return nil, fmt.Errorf("%w: resource facet on field %q", errUnsupportedOperator, t.field)
		}
		id, err := parseID(value)
		if err != nil {
			return nil, err
		}
		return sq.Eq{t.ref: id}, nil

	case cfg.FirstDigits.Enabled():
		pattern, err := cfg.FirstDigits.Pattern(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errInvalidValue, err)
		}
		return sq.Expr(t.column(true)+" ~ ?", pattern), nil

	case t.numeric:
		id, err := parseID(value)
		if err != nil {
			return nil, err
		}
		return sq.Eq{t.texts[0]: id}, nil
	}
	return sq.Eq{t.texts[0]: value}, nil
}

// facetCounts counts the results of the snapshot per bucket of field. The
// active selection of field itself is left out so that sibling values keep
// their counts.
func (qr *Querier) facetCounts(ctx context.Context, snap snapshot, field string, cfg query.FacetConfig) ([]query.FacetCount, error) {
	t, err := qr.resolveField(ctx, field, snap.publicOnly)
	if err != nil {
		if errors.Is(err, errUnknownField) {
			qr.logger.Warn("ignoring facet", "engine", qr.engine.Name, "field", field, "err", err)
			return []query.FacetCount{}, nil
		}
		return nil, err
	}
	if cfg.Type == query.FacetTypeResource && t.ref == "" {
		qr.logger.Warn("ignoring facet", "engine", qr.engine.Name, "field", field, "err", "field holds no linked resource")
		return []query.FacetCount{}, nil
	}

	builder := snap.from(sq.Select()).
		Where(snap.where(field)).
		Where(sq.Eq{"r.resource_type": snap.types})
	if t.nested() {
		builder = builder.JoinClause(t.joinClause())
	}
	if len(cfg.Languages) > 0 && t.lang != "" {
		builder = builder.Where(sq.Eq{"COALESCE(" + t.lang + ", '')": cfg.Languages})
	}

	switch {
	case cfg.Type == query.FacetTypeResource:
		return qr.resourceFacetCounts(ctx, builder, t, cfg, snap.publicOnly)
	case cfg.FirstDigits.Enabled():
		return qr.firstDigitsFacetCounts(ctx, builder, t, cfg)
	}
	return qr.valueFacetCounts(ctx, builder, t, cfg)
}

func (qr *Querier) valueFacetCounts(ctx context.Context, builder sq.SelectBuilder, t target, cfg query.FacetConfig) ([]query.FacetCount, error) {
	builder = builder.
		Columns(t.column(true)+" AS value", "COUNT(DISTINCT r.id) AS total").
		Where(t.texts[0] + " IS NOT NULL").
		GroupBy(t.texts[0]).
		OrderBy(facetOrderBy(cfg.Order, "value")...)
	if cfg.Limit > 0 {
		builder = builder.Limit(uint64(cfg.Limit))
	}
	return qr.selectFacetCounts(ctx, builder)
}

func (qr *Querier) resourceFacetCounts(ctx context.Context, builder sq.SelectBuilder, t target, cfg query.FacetConfig, publicOnly bool) ([]query.FacetCount, error) {
	builder = builder.
		Columns(t.ref+"::text AS value", "COALESCE(lr.title, '') AS label", "COUNT(DISTINCT r.id) AS total").
		Join(resourceTable + " lr ON lr.id = " + t.ref).
		GroupBy(t.ref, "lr.title").
		OrderBy(facetOrderBy(cfg.Order, "label")...)
	if publicOnly {
		builder = builder.Where(sq.Eq{"lr.is_public": true})
	}
	if cfg.Limit > 0 {
		builder = builder.Limit(uint64(cfg.Limit))
	}
	return qr.selectFacetCounts(ctx, builder)
}

// firstDigitsFacetCounts buckets the values on their leading integer. A
// resource is counted once per bucket even when several of its values fall
// in it.
func (qr *Querier) firstDigitsFacetCounts(ctx context.Context, builder sq.SelectBuilder, t target, cfg query.FacetConfig) ([]query.FacetCount, error) {
	stmt, args, err := buildSQL(
		builder.Distinct().
			Columns("r.id AS id", t.column(true)+" AS value").
			Where(t.texts[0] + " IS NOT NULL"),
	)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID    int64  `db:"id"`
		Value string `db:"value"`
	}
	if err := qr.client.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, err
	}

	members := make(map[string]map[int64]struct{})
	for _, row := range rows {
		bucket, ok := cfg.FirstDigits.Bucket(row.Value)
		if !ok {
			continue
		}
		if members[bucket] == nil {
			members[bucket] = make(map[int64]struct{})
		}
		members[bucket][row.ID] = struct{}{}
	}

	counts := make([]query.FacetCount, 0, len(members))
	for bucket, ids := range members {
		counts = append(counts, query.FacetCount{Value: bucket, Count: len(ids)})
	}
	sortFacetCounts(counts, cfg.Order)
	if cfg.Limit > 0 && len(counts) > cfg.Limit {
		counts = counts[:cfg.Limit]
	}
	return counts, nil
}

func (qr *Querier) selectFacetCounts(ctx context.Context, builder sq.SelectBuilder) ([]query.FacetCount, error) {
	stmt, args, err := buildSQL(builder)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Value string `db:"value"`
		Label string `db:"label"`
		Total int    `db:"total"`
	}
	if err := qr.client.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, err
	}

	counts := make([]query.FacetCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, query.FacetCount{Value: row.Value, Label: row.Label, Count: row.Total})
	}
	return counts, nil
}

func facetOrderBy(order query.FacetOrder, valueCol string) []string {
	switch order {
	case query.FacetOrderTotalAsc:
		return []string{"total ASC", valueCol + " ASC"}
	case query.FacetOrderValueAsc:
		return []string{valueCol + " ASC"}
	case query.FacetOrderValueDesc:
		return []string{valueCol + " DESC"}
	}
	return []string{"total DESC", valueCol + " ASC"}
}

// sortFacetCounts orders buckets in Go. Buckets holding integers compare
// numerically.
func sortFacetCounts(counts []query.FacetCount, order query.FacetOrder) {
	sort.SliceStable(counts, func(i, j int) bool {
		a, b := counts[i], counts[j]
		switch order {
		case query.FacetOrderTotalAsc:
			if a.Count != b.Count {
				return a.Count < b.Count
			}
		case query.FacetOrderValueAsc:
			return lessBucket(a.Value, b.Value)
		case query.FacetOrderValueDesc:
			return lessBucket(b.Value, a.Value)
		default:
			if a.Count != b.Count {
				return a.Count > b.Count
			}
		}
		return lessBucket(a.Value, b.Value)
	})
}

func lessBucket(a, b string) bool {
	x, errX := strconv.ParseInt(a, 10, 64)
	y, errY := strconv.ParseInt(b, 10, 64)
	if errX == nil && errY == nil {
		return x < y
	}
	return a < b
}
