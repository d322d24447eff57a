package query

import (
	"fmt"
	"strings"
)

// Wildcard is the text sentinel asking the engine to match everything.
const Wildcard = "*"

const DefaultPerPage = 25

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type Sort struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction,omitempty"`
}

// Query describes one search request. It is built by the caller, handed to a
// Querier and never shared across requests.
type Query struct {
	ResourceTypes []string               `json:"resource_types"`
	Text          string                 `json:"text,omitempty"`
	Filters       []FieldFilters         `json:"filters,omitempty"`
	Facets        map[string]FacetConfig `json:"facets,omitempty"`
	ActiveFacets  map[string][]string    `json:"active_facets,omitempty"`
	Sort          *Sort                  `json:"sort,omitempty"`

	// Page and PerPage take precedence over Offset and Limit.
	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`
	Offset  int `json:"offset,omitempty"`
	Limit   int `json:"limit,omitempty"`

	// IsPublic is tri-state: nil lets the caller decide later.
	IsPublic *bool `json:"is_public,omitempty"`
	SiteID   int64 `json:"site_id,omitempty"`
}

// AddFilter appends a clause on field, keeping field order stable.
func (q *Query) AddFilter(field string, f Filter) {
	for i := range q.Filters {
		if q.Filters[i].Field == field {
			q.Filters[i].Filters = append(q.Filters[i].Filters, f)
			return
		}
	}
	q.Filters = append(q.Filters, FieldFilters{Field: field, Filters: []Filter{f}})
}

// AddFacet requests counts for field.
func (q *Query) AddFacet(field string, cfg FacetConfig) {
	if q.Facets == nil {
		q.Facets = make(map[string]FacetConfig)
	}
	q.Facets[field] = cfg
}

// SelectFacet marks value of field as an active facet selection.
func (q *Query) SelectFacet(field string, values ...string) {
	if q.ActiveFacets == nil {
		q.ActiveFacets = make(map[string][]string)
	}
	q.ActiveFacets[field] = append(q.ActiveFacets[field], values...)
}

// Clauses flattens the filters in the order they were added. The first clause
// always joins with "and".
func (q Query) Clauses() []Clause {
	var clauses []Clause
	for _, ff := range q.Filters {
		for _, f := range ff.Filters {
			if f.Joiner == "" {
				f.Joiner = JoinAnd
			}
			clauses = append(clauses, Clause{Field: ff.Field, Filter: f})
		}
	}
	if len(clauses) > 0 && clauses[0].Joiner == JoinOr {
		clauses[0].Joiner = JoinAnd
	}
	return clauses
}

// RestrictVisibility applies the visibility rule of the caller: anonymous
// callers are always limited to public resources.
func (q *Query) RestrictVisibility(authenticated bool) {
	if !authenticated {
		public := true
		q.IsPublic = &public
	}
}

func (q Query) PublicOnly() bool {
	return q.IsPublic != nil && *q.IsPublic
}

// HasText reports whether the text produces a predicate.
func (q Query) HasText() bool {
	t := strings.TrimSpace(q.Text)
	return t != "" && t != Wildcard
}

func (q Query) IsWildcard() bool {
	return strings.TrimSpace(q.Text) == Wildcard
}

// Validate checks the query is executable.
func (q Query) Validate() error {
	if len(q.ResourceTypes) == 0 {
		return ErrNoResourceType
	}
	if q.HasText() || q.IsWildcard() || len(q.Clauses()) > 0 || q.hasActiveFacets() {
		return nil
	}
	return ErrEmptyQuery
}

func (q Query) hasActiveFacets() bool {
	for _, vals := range q.ActiveFacets {
		if len(vals) > 0 {
			return true
		}
	}
	return false
}

// Window returns the offset and limit of the requested page.
func (q Query) Window(defaultPerPage int) (offset, limit int) {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	if q.Page > 0 || q.PerPage > 0 {
		perPage := q.PerPage
		if perPage <= 0 {
			perPage = defaultPerPage
		}
		page := q.Page
		if page <= 0 {
			page = 1
		}
		return (page - 1) * perPage, perPage
	}

	limit = q.Limit
	if limit <= 0 {
		limit = defaultPerPage
	}
	offset = q.Offset
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func (q Query) String() string {
	return fmt.Sprintf("query(types=%v text=%q filters=%d facets=%d active=%d)",
		q.ResourceTypes, q.Text, len(q.Clauses()), len(q.Facets), len(q.ActiveFacets))
}
