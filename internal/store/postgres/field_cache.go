package postgres

import (
	"context"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
)

// FieldCache memoizes the property id of every term. It lives as long as the
// querier owning it and is emptied with Invalidate when vocabularies change.
type FieldCache struct {
	client *Client

	mu    sync.RWMutex
	terms map[string]int64
}

func NewFieldCache(c *Client) *FieldCache {
	return &FieldCache{client: c}
}

// PropertyID returns the id of the property named by term.
func (fc *FieldCache) PropertyID(ctx context.Context, term string) (int64, bool, error) {
	terms, err := fc.load(ctx)
	if err != nil {
		return 0, false, err
	}
	id, ok := terms[term]
	return id, ok, nil
}

// Invalidate empties the cache: the next lookup reloads every term.
func (fc *FieldCache) Invalidate() {
	fc.mu.Lock()
	fc.terms = nil
	fc.mu.Unlock()
}

func (fc *FieldCache) load(ctx context.Context) (map[string]int64, error) {
	fc.mu.RLock()
	terms := fc.terms
	fc.mu.RUnlock()
	if terms != nil {
		return terms, nil
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.terms != nil {
		return fc.terms, nil
	}

	query, args, err := buildSQL(
		sq.Select("p.id", termExpr+" AS term").
			From(propertyTable + " p").
			Join(vocabularyTable + " voc ON voc.id = p.vocabulary_id"),
	)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}

	var rows []struct {
		ID   int64  `db:"id"`
		Term string `db:"term"`
	}
	if err := fc.client.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}

	terms = make(map[string]int64, len(rows))
	for _, row := range rows {
		terms[row.Term] = row.ID
	}
	fc.terms = terms
	return terms, nil
}
