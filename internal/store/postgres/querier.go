package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/salt/log"
	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/query"
)

// SettingGetter reads a value of the settings store.
type SettingGetter interface {
	Get(ctx context.Context, key string, v interface{}) error
}

// PerPageSettingKey is the settings key holding the default page size of an
// engine that does not configure one.
func PerPageSettingKey(engineID int64) string {
	return fmt.Sprintf("search_engine.%d.per_page", engineID)
}

// Querier answers queries of one search engine from the resource tables and
// the search index.
type Querier struct {
	client   *Client
	engine   engine.SearchEngine
	fields   *FieldCache
	settings SettingGetter
	logger   log.Logger
}

type QuerierOption func(*Querier)

func QuerierWithLogger(l log.Logger) QuerierOption {
	return func(qr *Querier) {
		if l != nil {
			qr.logger = l
		}
	}
}

func QuerierWithSettings(s SettingGetter) QuerierOption {
	return func(qr *Querier) {
		qr.settings = s
	}
}

func QuerierWithFieldCache(fc *FieldCache) QuerierOption {
	return func(qr *Querier) {
		if fc != nil {
			qr.fields = fc
		}
	}
}

func NewQuerier(c *Client, e engine.SearchEngine, opts ...QuerierOption) (*Querier, error) {
	if c == nil {
		return nil, errNilDBClient
	}

	qr := &Querier{
		client: c,
		engine: e,
		logger: log.NewNoop(),
	}
	for _, opt := range opts {
		opt(qr)
	}
	if qr.fields == nil {
		qr.fields = NewFieldCache(c)
	}
	return qr, nil
}

func (qr *Querier) Query(ctx context.Context, q query.Query) (query.Response, error) {
	types := qr.engine.IntersectTypes(q.ResourceTypes)
	if len(types) == 0 {
		return query.ErrorResponse(query.ErrNoResourceType.Error()), nil
	}

	snap, err := qr.snapshot(ctx, q, types)
	if err != nil {
		return query.Response{}, qr.fail("resolve query", err)
	}

	order, err := qr.orderBy(ctx, q.Sort, snap)
	if err != nil {
		return query.Response{}, qr.fail("resolve sort", err)
	}

	offset, limit := q.Window(qr.perPage(ctx))
	resp := query.NewResponse()
	for _, typ := range types {
		results, total, err := qr.results(ctx, snap, typ, order, offset, limit)
		if err != nil {
			return query.Response{}, qr.fail("search "+typ, err)
		}
		resp.Results[typ] = results
		resp.Totals[typ] = total
	}

	for field, cfg := range q.Facets {
		counts, err := qr.facetCounts(ctx, snap, field, cfg.Normalize())
		if err != nil {
			return query.Response{}, qr.fail("facet "+field, err)
		}
		resp.FacetCounts[field] = counts
	}

	return resp, nil
}

func (qr *Querier) fail(op string, err error) error {
	return query.QuerierError{Op: op, Engine: qr.engine.Name, Err: err}
}

// snapshot is the resolved predicate set of one query. Results and facet
// counts are all read from it.
type snapshot struct {
	engineID   int64
	types      []string
	text       string
	publicOnly bool

	base    sq.And
	filters sq.Sqlizer
	facets  map[string]sq.Sqlizer
}

func (qr *Querier) snapshot(ctx context.Context, q query.Query, types []string) (snapshot, error) {
	snap := snapshot{
		engineID:   qr.engine.ID,
		types:      types,
		publicOnly: q.PublicOnly(),
	}
	if q.HasText() {
		snap.text = strings.TrimSpace(q.Text)
	}

	if q.IsPublic != nil {
		snap.base = append(snap.base, sq.Eq{"r.is_public": *q.IsPublic})
	}
	if q.SiteID != 0 {
		snap.base = append(snap.base, sq.Expr(
			"EXISTS (SELECT 1 FROM "+resourceSiteTable+" rs WHERE rs.resource_id = r.id AND rs.site_id = ?)", q.SiteID,
		))
	}

	filters, err := qr.resolveFilters(ctx, q)
	if err != nil {
		return snapshot{}, err
	}
	snap.filters = filters

	facets, err := qr.resolveActiveFacets(ctx, q)
	if err != nil {
		return snapshot{}, err
	}
	snap.facets = facets

	return snap, nil
}

// from selects from the resources, joined to their document in the engine
// index when the query has text.
func (s snapshot) from(b sq.SelectBuilder) sq.SelectBuilder {
	b = b.From(resourceTable + " r")
	if s.text != "" {
		b = b.Join(searchIndexTable+" si ON si.resource_id = r.id AND si.engine_id = ?", s.engineID).
			Where("si."+s.document()+" @@ plainto_tsquery('"+textSearchConfig+"', ?)", s.text)
	}
	return b
}

// document is the index column matched by the text: anonymous callers only
// search the public values.
func (s snapshot) document() string {
	if s.publicOnly {
		return "document_public"
	}
	return "document"
}

// where returns the predicates of the snapshot, leaving out the active
// selection of the field exclude.
func (s snapshot) where(exclude string) sq.And {
	where := append(sq.And{}, s.base...)
	if s.filters != nil {
		where = append(where, s.filters)
	}

	fields := make([]string, 0, len(s.facets))
	for field := range s.facets {
		if field != exclude {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	for _, field := range fields {
		where = append(where, s.facets[field])
	}
	return where
}

type resultModel struct {
	ID    int64           `db:"id"`
	Score sql.NullFloat64 `db:"score"`
}

func (qr *Querier) results(ctx context.Context, snap snapshot, typ string, order []string, offset, limit int) ([]query.Result, int, error) {
	where := append(snap.where(""), sq.Eq{"r.resource_type": typ})

	stmt, args, err := buildSQL(snap.from(sq.Select("COUNT(*)")).Where(where))
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := qr.client.db.GetContext(ctx, &total, stmt, args...); err != nil {
		return nil, 0, err
	}
	if total == 0 || offset >= total {
		return []query.Result{}, total, nil
	}

	builder := sq.Select("r.id AS id")
	if snap.text != "" {
		builder = builder.Column(sq.Expr("ts_rank(si."+snap.document()+", plainto_tsquery('"+textSearchConfig+"', ?)) AS score", snap.text))
	}
	stmt, args, err = buildSQL(
		snap.from(builder).
			Where(where).
			OrderBy(order...).
			Offset(uint64(offset)).
			Limit(uint64(limit)),
	)
	if err != nil {
		return nil, 0, err
	}

	var models []resultModel
	if err := qr.client.db.SelectContext(ctx, &models, stmt, args...); err != nil {
		return nil, 0, err
	}

	results := make([]query.Result, 0, len(models))
	for _, m := range models {
		res := query.Result{ID: m.ID}
		if m.Score.Valid {
			score := m.Score.Float64
			res.Score = &score
		}
		results = append(results, res)
	}
	return results, total, nil
}

func (qr *Querier) perPage(ctx context.Context) int {
	if qr.engine.Settings.PerPage > 0 {
		return qr.engine.Settings.PerPage
	}
	if qr.settings == nil {
		return query.DefaultPerPage
	}

	var perPage int
	if err := qr.settings.Get(ctx, PerPageSettingKey(qr.engine.ID), &perPage); err != nil {
		if !errors.Is(err, ErrSettingNotFound) {
			qr.logger.Warn("could not read default page size", "engine", qr.engine.Name, "err", err)
		}
		return query.DefaultPerPage
	}
	if perPage <= 0 {
		return query.DefaultPerPage
	}
	return perPage
}
