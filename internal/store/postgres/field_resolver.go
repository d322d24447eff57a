package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Fields resolved to the resource itself or to its relations. Any other field
// is read as a property term.
const (
	fieldID           = "id"
	fieldTitle        = "title"
	fieldCreated      = "created"
	fieldModified     = "modified"
	fieldResourceType = "resource_type"
	fieldIsPublic     = "is_public"
	fieldItemSetID    = "item_set_id"
	fieldSiteID       = "site_id"
	fieldItemID       = "item_id"
)

var errUnknownField = errors.New("unknown field")

// target is the place in the data model a field resolves to.
type target struct {
	field string

	// texts are the expressions compared by the operators. Ordering
	// operators and facets use the first one.
	texts []string
	// numeric targets hold ids and only accept integer values.
	numeric bool
	// ref holds the id of a linked resource.
	ref string
	// lang is the language column of the rows, if any.
	lang string

	// from and on name the rows holding the field when they are not columns
	// of the resource. Conditions on them are nested in an EXISTS.
	from string
	on   sq.And
	// present is the existence test of a column target.
	present sq.Sqlizer
}

var columnTargets = map[string]target{
	fieldID:           {field: fieldID, texts: []string{"r.id"}, numeric: true, present: sq.Expr("TRUE")},
	fieldTitle:        {field: fieldTitle, texts: []string{"r.title"}, present: sq.Expr("COALESCE(r.title, '') <> ''")},
	fieldCreated:      {field: fieldCreated, texts: []string{"r.created::text"}, present: sq.Expr("TRUE")},
	fieldModified:     {field: fieldModified, texts: []string{"r.modified::text"}, present: sq.Expr("TRUE")},
	fieldResourceType: {field: fieldResourceType, texts: []string{"r.resource_type"}, present: sq.Expr("TRUE")},
	fieldIsPublic:     {field: fieldIsPublic, texts: []string{"r.is_public::text"}, present: sq.Expr("TRUE")},
	fieldItemSetID: {
		field: fieldItemSetID, texts: []string{"iis.item_set_id"}, numeric: true, ref: "iis.item_set_id",
		from: itemItemSetTable + " iis", on: sq.And{sq.Expr("iis.item_id = r.id")},
	},
	fieldSiteID: {
		field: fieldSiteID, texts: []string{"rs.site_id"}, numeric: true, ref: "rs.site_id",
		from: resourceSiteTable + " rs", on: sq.And{sq.Expr("rs.resource_id = r.id")},
	},
	fieldItemID: {
		field: fieldItemID, texts: []string{"m.item_id"}, numeric: true, ref: "m.item_id",
		from: mediaTable + " m", on: sq.And{sq.Expr("m.id = r.id")},
	},
}

// propertyTarget resolves a property term to the values of the resource.
// Private values are ignored when publicOnly is set.
func propertyTarget(term string, propertyID int64, publicOnly bool) target {
	on := sq.And{sq.Expr("v.resource_id = r.id"), sq.Eq{"v.property_id": propertyID}}
	if publicOnly {
		on = append(on, sq.Eq{"v.is_public": true})
	}
	return target{
		field: term,
		texts: []string{"v.value", "v.uri"},
		ref:   "v.value_resource_id",
		lang:  "v.lang",
		from:  valueTable + " v",
		on:    on,
	}
}

func (t target) nested() bool { return t.from != "" }

// column returns the first expression, cast to text when asText is set.
func (t target) column(asText bool) string {
	if asText && t.numeric {
		return t.texts[0] + "::text"
	}
	return t.texts[0]
}

// wrap turns a condition on the rows of the target into a predicate on the
// resource r.
func (t target) wrap(cond sq.Sqlizer) sq.Sqlizer {
	if !t.nested() {
		return cond
	}
	where := append(sq.And{}, t.on...)
	if cond != nil {
		where = append(where, cond)
	}
	return sq.Expr("EXISTS (?)", sq.Select("1").From(t.from).Where(where))
}

func (t target) exists() sq.Sqlizer {
	if t.nested() {
		return t.wrap(nil)
	}
	return t.present
}

// joinClause joins the rows of a nested target to the resource r.
func (t target) joinClause() sq.Sqlizer {
	return sq.Expr("JOIN "+t.from+" ON ?", t.on)
}

func (qr *Querier) resolveField(ctx context.Context, field string, publicOnly bool) (target, error) {
	if t, ok := columnTargets[field]; ok {
		return t, nil
	}
	id, ok, err := qr.fields.PropertyID(ctx, field)
	if err != nil {
		return target{}, err
	}
	if !ok {
		return target{}, fmt.Errorf("%w: %q", errUnknownField, field)
	}
	return propertyTarget(field, id, publicOnly), nil
}
