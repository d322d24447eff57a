package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/core/resource"
	"github.com/jmoiron/sqlx"
)

const (
	resourceTable     = "resource"
	valueTable        = "value"
	propertyTable     = "property"
	vocabularyTable   = "vocabulary"
	itemItemSetTable  = "item_item_set"
	mediaTable        = "media"
	resourceSiteTable = "resource_site"

	defaultBatchSize = 100
)

// termExpr renders the "prefix:local_name" term of a property joined as p and
// its vocabulary joined as voc.
const termExpr = "voc.prefix || ':' || p.local_name"

// ResourceRepository reads resources with their values and sites.
type ResourceRepository struct {
	client *Client
}

func NewResourceRepository(c *Client) (*ResourceRepository, error) {
	if c == nil {
		return nil, errNilDBClient
	}
	return &ResourceRepository{client: c}, nil
}

// GetBatch returns the resources matching flt in ascending id order, with
// their values and sites loaded.
func (r *ResourceRepository) GetBatch(ctx context.Context, flt resource.Filter) ([]resource.Resource, error) {
	query, args, err := buildSQL(
		r.filterQuery(sq.Select("id", "resource_type", "is_public", "COALESCE(title, '') AS title", "created", "modified"), flt),
	)
	if err != nil {
		return nil, fmt.Errorf("get resource batch: %w", err)
	}

	var resources []resource.Resource
	if err := r.client.db.SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, fmt.Errorf("get resource batch: %w", err)
	}
	if len(resources) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(resources))
	byID := make(map[int64]int, len(resources))
	for i, res := range resources {
		ids[i] = res.ID
		byID[res.ID] = i
	}

	values, err := r.getValues(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get resource batch: %w", err)
	}
	for _, v := range values {
		i := byID[v.ResourceID]
		resources[i].Values = append(resources[i].Values, v)
	}

	sites, err := r.getSites(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get resource batch: %w", err)
	}
	for _, s := range sites {
		i := byID[s.ResourceID]
		resources[i].SiteIDs = append(resources[i].SiteIDs, s.SiteID)
	}

	return resources, nil
}

// GetIDs returns the ids matching flt in ascending order.
func (r *ResourceRepository) GetIDs(ctx context.Context, flt resource.Filter) ([]int64, error) {
	query, args, err := buildSQL(r.filterQuery(sq.Select("id"), flt))
	if err != nil {
		return nil, fmt.Errorf("get resource ids: %w", err)
	}

	var ids []int64
	if err := r.client.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("get resource ids: %w", err)
	}
	return ids, nil
}

func (r *ResourceRepository) filterQuery(builder sq.SelectBuilder, flt resource.Filter) sq.SelectBuilder {
	builder = builder.From(resourceTable).
		Where(sq.Gt{"id": flt.AfterID}).
		OrderBy("id ASC")

	if len(flt.Types) > 0 {
		builder = builder.Where(sq.Eq{"resource_type": flt.Types})
	}
	if len(flt.IDs) > 0 {
		builder = builder.Where(sq.Eq{"id": flt.IDs})
	}
	switch flt.Visibility {
	case resource.VisibilityPublic:
		builder = builder.Where(sq.Eq{"is_public": true})
	case resource.VisibilityPrivate:
		builder = builder.Where(sq.Eq{"is_public": false})
	}

	limit := flt.Limit
	if limit <= 0 {
		limit = defaultBatchSize
	}
	return builder.Limit(uint64(limit))
}

func (r *ResourceRepository) getValues(ctx context.Context, ids []int64) ([]resource.Value, error) {
	query, args, err := buildSQL(
		sq.Select(
			"v.resource_id", "v.property_id", termExpr+" AS term", "v.type",
			"COALESCE(v.value, '') AS value", "COALESCE(v.uri, '') AS uri",
			"COALESCE(v.value_resource_id, 0) AS value_resource_id",
			"COALESCE(v.lang, '') AS lang", "v.is_public",
		).
			From(valueTable + " v").
			Join(propertyTable + " p ON p.id = v.property_id").
			Join(vocabularyTable + " voc ON voc.id = p.vocabulary_id").
			Where(sq.Eq{"v.resource_id": ids}).
			OrderBy("v.resource_id ASC", "v.id ASC"),
	)
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}

	var values []resource.Value
	if err := r.client.db.SelectContext(ctx, &values, query, args...); err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	return values, nil
}

type resourceSite struct {
	ResourceID int64 `db:"resource_id"`
	SiteID     int64 `db:"site_id"`
}

func (r *ResourceRepository) getSites(ctx context.Context, ids []int64) ([]resourceSite, error) {
	query, args, err := buildSQL(
		sq.Select("resource_id", "site_id").
			From(resourceSiteTable).
			Where(sq.Eq{"resource_id": ids}).
			OrderBy("resource_id ASC", "site_id ASC"),
	)
	if err != nil {
		return nil, fmt.Errorf("get sites: %w", err)
	}

	var sites []resourceSite
	if err := r.client.db.SelectContext(ctx, &sites, query, args...); err != nil {
		return nil, fmt.Errorf("get sites: %w", err)
	}
	return sites, nil
}

// Create inserts the resource with its values and sites. Properties are
// created on the fly from the value terms.
func (r *ResourceRepository) Create(ctx context.Context, res *resource.Resource) (int64, error) {
	if res == nil || !resource.IsType(res.Type) {
		return 0, fmt.Errorf("create resource: invalid resource")
	}

	err := r.client.RunWithinTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := buildSQL(
			sq.Insert(resourceTable).
				Columns("resource_type", "is_public", "title").
				Values(res.Type, res.IsPublic, nullString(res.Title)).
				Suffix("RETURNING id, created, modified"),
		)
		if err != nil {
			return err
		}
		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&res.ID, &res.Created, &res.Modified); err != nil {
			return checkPostgresError(err)
		}

		for i := range res.Values {
			v := &res.Values[i]
			propID, err := ensureProperty(ctx, tx, v.Term)
			if err != nil {
				return err
			}
			v.ResourceID, v.PropertyID = res.ID, propID
			if v.Type == "" {
				v.Type = resource.ValueLiteral
			}

			var valueResourceID interface{}
			if v.ValueResourceID != 0 {
				valueResourceID = v.ValueResourceID
			}
			query, args, err := buildSQL(
				sq.Insert(valueTable).
					Columns("resource_id", "property_id", "type", "value", "uri", "value_resource_id", "lang", "is_public").
					Values(res.ID, propID, v.Type, nullString(v.Value), nullString(v.URI), valueResourceID, nullString(v.Lang), v.IsPublic),
			)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return checkPostgresError(err)
			}
		}

		if len(res.SiteIDs) > 0 {
			insert := sq.Insert(resourceSiteTable).Columns("resource_id", "site_id")
			for _, siteID := range res.SiteIDs {
				insert = insert.Values(res.ID, siteID)
			}
			query, args, err := buildSQL(insert)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return checkPostgresError(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create resource: %w", err)
	}
	return res.ID, nil
}

// AttachToItemSets records the item set memberships of an item.
func (r *ResourceRepository) AttachToItemSets(ctx context.Context, itemID int64, itemSetIDs ...int64) error {
	if len(itemSetIDs) == 0 {
		return nil
	}
	insert := sq.Insert(itemItemSetTable).Columns("item_id", "item_set_id").Suffix("ON CONFLICT DO NOTHING")
	for _, id := range itemSetIDs {
		insert = insert.Values(itemID, id)
	}
	query, args, err := buildSQL(insert)
	if err != nil {
		return fmt.Errorf("attach to item sets: %w", err)
	}
	if _, err := r.client.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("attach to item sets: %w", checkPostgresError(err))
	}
	return nil
}

// AttachMedia records the item owning a media.
func (r *ResourceRepository) AttachMedia(ctx context.Context, mediaID, itemID int64) error {
	query, args, err := buildSQL(
		sq.Insert(mediaTable).Columns("id", "item_id").Values(mediaID, itemID).
			Suffix("ON CONFLICT (id) DO UPDATE SET item_id = EXCLUDED.item_id"),
	)
	if err != nil {
		return fmt.Errorf("attach media: %w", err)
	}
	if _, err := r.client.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("attach media: %w", checkPostgresError(err))
	}
	return nil
}

// CreateSite inserts a site and returns its id.
func (r *ResourceRepository) CreateSite(ctx context.Context, slug, title string) (int64, error) {
	query, args, err := buildSQL(
		sq.Insert("site").Columns("slug", "title").Values(slug, title).Suffix("RETURNING id"),
	)
	if err != nil {
		return 0, fmt.Errorf("create site: %w", err)
	}
	var id int64
	if err := r.client.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create site: %w", checkPostgresError(err))
	}
	return id, nil
}

func ensureProperty(ctx context.Context, tx *sqlx.Tx, term string) (int64, error) {
	prefix, localName, ok := strings.Cut(term, ":")
	if !ok || prefix == "" || localName == "" {
		return 0, fmt.Errorf("invalid property term %q", term)
	}

	var vocabID int64
	if err := tx.QueryRowxContext(ctx, `
		INSERT INTO vocabulary (prefix) VALUES ($1)
		ON CONFLICT (prefix) DO UPDATE SET prefix = EXCLUDED.prefix
		RETURNING id`, prefix).Scan(&vocabID); err != nil {
		return 0, fmt.Errorf("ensure vocabulary %q: %w", prefix, err)
	}

	var propID int64
	if err := tx.QueryRowxContext(ctx, `
		INSERT INTO property (vocabulary_id, local_name) VALUES ($1, $2)
		ON CONFLICT (vocabulary_id, local_name) DO UPDATE SET local_name = EXCLUDED.local_name
		RETURNING id`, vocabID, localName).Scan(&propID); err != nil {
		return 0, fmt.Errorf("ensure property %q: %w", term, err)
	}
	return propID, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
