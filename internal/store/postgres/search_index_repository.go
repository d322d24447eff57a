package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/core/resource"
)

const (
	searchIndexTable = "search_index"

	// textSearchConfig is the postgres text search configuration of the
	// documents. "simple" keeps every word, whatever the language.
	textSearchConfig = "simple"
)

// SearchIndexRepository maintains the full text documents of the resources
// indexed by each engine.
type SearchIndexRepository struct {
	client *Client
}

func NewSearchIndexRepository(c *Client) (*SearchIndexRepository, error) {
	if c == nil {
		return nil, errNilDBClient
	}
	return &SearchIndexRepository{client: c}, nil
}

// Index upserts the documents of the resources for the engine. fields are the
// property terms feeding the documents.
func (r *SearchIndexRepository) Index(ctx context.Context, engineID int64, fields []string, resources []resource.Resource) error {
	if len(resources) == 0 {
		return nil
	}

	insert := sq.Insert(searchIndexTable).
		Columns("engine_id", "resource_id", "resource_type", "is_public", "title", "document", "document_public")
	for _, res := range resources {
		insert = insert.Values(
			engineID, res.ID, res.Type, res.IsPublic, nullString(res.Title),
			sq.Expr("to_tsvector('"+textSearchConfig+"', ?)", res.Document(fields, false)),
			sq.Expr("to_tsvector('"+textSearchConfig+"', ?)", res.Document(fields, true)),
		)
	}
	insert = insert.Suffix(`ON CONFLICT (engine_id, resource_id) DO UPDATE SET
		resource_type = EXCLUDED.resource_type,
		is_public = EXCLUDED.is_public,
		title = EXCLUDED.title,
		document = EXCLUDED.document,
		document_public = EXCLUDED.document_public,
		indexed_at = now()`)

	query, args, err := buildSQL(insert)
	if err != nil {
		return fmt.Errorf("index resources: %w", err)
	}
	if _, err := r.client.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("index resources: %w", checkPostgresError(err))
	}
	return nil
}

// Delete removes the documents of the resources from the engine index.
func (r *SearchIndexRepository) Delete(ctx context.Context, engineID int64, resourceIDs []int64) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	query, args, err := buildSQL(
		sq.Delete(searchIndexTable).
			Where(sq.Eq{"engine_id": engineID, "resource_id": resourceIDs}),
	)
	if err != nil {
		return fmt.Errorf("delete from index: %w", err)
	}
	if _, err := r.client.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete from index: %w", err)
	}
	return nil
}

// Clear removes every document of the engine for the resource types and the
// visibility. No type means all of them.
func (r *SearchIndexRepository) Clear(ctx context.Context, engineID int64, types []string, visibility resource.Visibility) error {
	del := sq.Delete(searchIndexTable).Where(sq.Eq{"engine_id": engineID})
	if len(types) > 0 {
		del = del.Where(sq.Eq{"resource_type": types})
	}
	switch visibility {
	case resource.VisibilityPublic:
		del = del.Where(sq.Eq{"is_public": true})
	case resource.VisibilityPrivate:
		del = del.Where(sq.Eq{"is_public": false})
	}
	query, args, err := buildSQL(del)
	if err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	if _, err := r.client.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

func (r *SearchIndexRepository) Count(ctx context.Context, engineID int64) (int, error) {
	query, args, err := buildSQL(
		sq.Select("COUNT(*)").From(searchIndexTable).Where(sq.Eq{"engine_id": engineID}),
	)
	if err != nil {
		return 0, fmt.Errorf("count index: %w", err)
	}
	var n int
	if err := r.client.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count index: %w", err)
	}
	return n, nil
}
