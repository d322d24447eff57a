package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/goto/sift/core/query"
)

const sortRelevance = "relevance"

var sortColumns = map[string]string{
	fieldID:           "r.id",
	fieldTitle:        "r.title",
	fieldCreated:      "r.created",
	fieldModified:     "r.modified",
	fieldResourceType: "r.resource_type",
}

// orderBy maps the requested sort to ORDER BY expressions. A key that cannot
// be mapped falls back to the default ordering: relevance when the query
// has text, id otherwise.
func (qr *Querier) orderBy(ctx context.Context, s *query.Sort, snap snapshot) ([]string, error) {
	hasText := snap.text != ""
	fallback := []string{"r.id ASC"}
	if hasText {
		fallback = []string{"score DESC", "r.id ASC"}
	}
	if s == nil || strings.TrimSpace(s.Field) == "" {
		return fallback, nil
	}

	field := strings.TrimSpace(s.Field)
	dir := "ASC"
	if strings.EqualFold(string(s.Direction), string(query.SortDesc)) {
		dir = "DESC"
	}

	if field == sortRelevance {
		if !hasText {
			return fallback, nil
		}
		if s.Direction == "" {
			dir = "DESC"
		}
		return []string{"score " + dir, "r.id ASC"}, nil
	}

	if col, ok := sortColumns[field]; ok {
		if col == "r.id" {
			return []string{"r.id " + dir}, nil
		}
		return []string{col + " " + dir + " NULLS LAST", "r.id ASC"}, nil
	}

	id, ok, err := qr.fields.PropertyID(ctx, field)
	if err != nil {
		return nil, err
	}
	if !ok {
		qr.logger.Warn("unknown sort field, using default order", "engine", qr.engine.Name, "field", field)
		return fallback, nil
	}

	// resources sort on their lowest value, or highest when descending.
	agg := "MIN"
	if dir == "DESC" {
		agg = "MAX"
	}
	visibility := ""
	if snap.publicOnly {
		visibility = " AND v.is_public"
	}
	expr := fmt.Sprintf(
		"(SELECT %s(v.value) FROM %s v WHERE v.resource_id = r.id AND v.property_id = %d%s) %s NULLS LAST",
		agg, valueTable, id, visibility, dir,
	)
	return []string{expr, "r.id ASC"}, nil
}
