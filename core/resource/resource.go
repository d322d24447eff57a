package resource

import (
	"context"
	"strings"
	"time"
)

//go:generate mockery --name=Repository -r --case underscore --with-expecter --structname ResourceRepository --filename resource_repository_mock.go --output=./mocks

// Repository reads resources in id order. It is the only way indexers reach
// the resource store.
type Repository interface {
	GetBatch(ctx context.Context, flt Filter) ([]Resource, error)
	GetIDs(ctx context.Context, flt Filter) ([]int64, error)
}

const (
	TypeItems    = "items"
	TypeItemSets = "item_sets"
	TypeMedia    = "media"
)

var AllTypes = []string{TypeItems, TypeItemSets, TypeMedia}

// IsType reports whether typ names a resource type.
func IsType(typ string) bool {
	for _, t := range AllTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// TitleTerm is the property holding the titles of a resource.
const TitleTerm = "dcterms:title"

// Value types.
const (
	ValueLiteral  = "literal"
	ValueURI      = "uri"
	ValueResource = "resource"
)

type Resource struct {
	ID       int64     `json:"id" db:"id"`
	Type     string    `json:"resource_type" db:"resource_type"`
	IsPublic bool      `json:"is_public" db:"is_public"`
	Title    string    `json:"title" db:"title"`
	Created  time.Time `json:"created" db:"created"`
	Modified time.Time `json:"modified" db:"modified"`
	Values   []Value   `json:"values,omitempty" db:"-"`
	SiteIDs  []int64   `json:"site_ids,omitempty" db:"-"`
}

type Value struct {
	ResourceID      int64  `json:"resource_id" db:"resource_id"`
	PropertyID      int64  `json:"property_id" db:"property_id"`
	Term            string `json:"term" db:"term"`
	Type            string `json:"type" db:"type"`
	Value           string `json:"value,omitempty" db:"value"`
	URI             string `json:"uri,omitempty" db:"uri"`
	ValueResourceID int64  `json:"value_resource_id,omitempty" db:"value_resource_id"`
	Lang            string `json:"lang,omitempty" db:"lang"`
	IsPublic        bool   `json:"is_public" db:"is_public"`
}

// IsText reports whether the value carries free text.
func (v Value) IsText() bool {
	return v.Type == ValueLiteral && v.Value != ""
}

// Visibility restricts a Filter to public or private resources.
type Visibility string

const (
	VisibilityAny     Visibility = ""
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Filter selects one batch of resources: ids strictly greater than AfterID,
// in ascending order, at most Limit of them.
type Filter struct {
	Types      []string
	AfterID    int64
	IDs        []int64
	Limit      int
	Visibility Visibility
}

// PublicText reports whether v counts for public readers of r.
func (r Resource) PublicText(v Value) bool {
	return r.IsPublic && v.IsPublic
}

// Document concatenates the title and the text values of r used for full
// text search. Empty fields means every value. Title values are always kept
// and stand in for r.Title, which is only used when r has none.
func (r Resource) Document(fields []string, publicOnly bool) string {
	keep := make(map[string]struct{}, len(fields)+1)
	for _, f := range fields {
		keep[f] = struct{}{}
	}
	if len(keep) > 0 {
		keep[TitleTerm] = struct{}{}
	}

	var parts []string
	if len(r.ValuesOf(TitleTerm)) == 0 && !(publicOnly && !r.IsPublic) {
		parts = append(parts, r.Title)
	}
	for _, v := range r.Values {
		if publicOnly && !v.IsPublic {
			continue
		}
		if _, ok := keep[v.Term]; len(keep) > 0 && !ok {
			continue
		}
		switch {
		case v.IsText():
			parts = append(parts, v.Value)
		case v.Type == ValueURI && v.Value != "":
			// uri values carry their label in Value.
			parts = append(parts, v.Value)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ValuesOf returns the values of r for the term.
func (r Resource) ValuesOf(term string) []Value {
	var vals []Value
	for _, v := range r.Values {
		if v.Term == term {
			vals = append(vals, v)
		}
	}
	return vals
}
