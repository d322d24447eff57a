package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/core/suggestion"
	"github.com/jackc/pgtype"
	"github.com/jmoiron/sqlx"
)

const (
	suggestionTable     = "search_suggestion"
	suggestionSiteTable = "search_suggestion_site"

	// suggestionInsertChunk bounds the number of rows of one insert
	// statement, below the 65535 bind parameters postgres accepts.
	suggestionInsertChunk = 1000
)

// SuggestionRepository stores the suggestions of each suggester.
type SuggestionRepository struct {
	client *Client
}

func NewSuggestionRepository(c *Client) (*SuggestionRepository, error) {
	if c == nil {
		return nil, errNilDBClient
	}
	return &SuggestionRepository{client: c}, nil
}

// Replace deletes the suggestions of the suggester and inserts the given
// ones with their scope rows, in one transaction.
func (r *SuggestionRepository) Replace(ctx context.Context, suggesterID int64, suggestions []suggestion.Suggestion) error {
	err := r.client.RunWithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := deleteSuggestions(ctx, tx, suggesterID); err != nil {
			return err
		}

		for start := 0; start < len(suggestions); start += suggestionInsertChunk {
			end := start + suggestionInsertChunk
			if end > len(suggestions) {
				end = len(suggestions)
			}
			if err := insertSuggestions(ctx, tx, suggesterID, suggestions[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace suggestions of suggester %d: %w", suggesterID, err)
	}
	return nil
}

func (r *SuggestionRepository) DeleteBySuggester(ctx context.Context, suggesterID int64) error {
	if err := deleteSuggestions(ctx, r.client.db, suggesterID); err != nil {
		return fmt.Errorf("delete suggestions of suggester %d: %w", suggesterID, err)
	}
	return nil
}

func deleteSuggestions(ctx context.Context, execer sqlx.ExecerContext, suggesterID int64) error {
	// scope rows go with their suggestion through the cascade.
	query, args, err := buildSQL(sq.Delete(suggestionTable).Where(sq.Eq{"suggester_id": suggesterID}))
	if err != nil {
		return err
	}
	if _, err := execer.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete suggestions: %w", err)
	}
	return nil
}

func insertSuggestions(ctx context.Context, tx *sqlx.Tx, suggesterID int64, suggestions []suggestion.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	insert := sq.Insert(suggestionTable).Columns("suggester_id", "text", "total_all", "total_public")
	for _, s := range suggestions {
		insert = insert.Values(suggesterID, s.Text, s.TotalAll, s.TotalPublic)
	}
	query, args, err := buildSQL(insert.Suffix("RETURNING id"))
	if err != nil {
		return err
	}

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, query, args...); err != nil {
		return fmt.Errorf("insert suggestions: %w", checkPostgresError(err))
	}
	if len(ids) != len(suggestions) {
		return fmt.Errorf("insert suggestions: got %d ids for %d rows", len(ids), len(suggestions))
	}

	// rows of a multi-values insert are returned in the order of the values.
	var scopeRows [][2]int64
	for i, s := range suggestions {
		for _, scope := range s.Scopes() {
			scopeRows = append(scopeRows, [2]int64{ids[i], scope})
		}
	}
	for start := 0; start < len(scopeRows); start += suggestionInsertChunk {
		end := start + suggestionInsertChunk
		if end > len(scopeRows) {
			end = len(scopeRows)
		}
		scopes := sq.Insert(suggestionSiteTable).Columns("suggestion_id", "site_id")
		for _, row := range scopeRows[start:end] {
			scopes = scopes.Values(row[0], row[1])
		}
		query, args, err := buildSQL(scopes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert suggestion scopes: %w", checkPostgresError(err))
		}
	}
	return nil
}

// Search returns the suggestion texts of the suggester starting with the
// prefix, case insensitively, ordered by the total of the partition.
func (r *SuggestionRepository) Search(ctx context.Context, flt suggestion.SearchFilter) ([]string, error) {
	totalCol := "s.total_all"
	if flt.Public {
		totalCol = "s.total_public"
	}

	builder := sq.Select("s.text").
		From(suggestionTable + " s").
		Join(suggestionSiteTable + " ss ON ss.suggestion_id = s.id").
		Where(sq.Eq{"s.suggester_id": flt.SuggesterID, "ss.site_id": flt.SiteID}).
		Where("lower(s.text) LIKE lower(?)", likePrefix(flt.Prefix)).
		OrderBy(totalCol+" DESC", "s.text ASC").
		Limit(uint64(flt.Limit))
	if flt.Public {
		builder = builder.Where(sq.Gt{"s.total_public": 0})
	}

	query, args, err := buildSQL(builder)
	if err != nil {
		return nil, fmt.Errorf("search suggestions: %w", err)
	}

	var texts []string
	if err := r.client.db.SelectContext(ctx, &texts, query, args...); err != nil {
		return nil, fmt.Errorf("search suggestions: %w", err)
	}
	return texts, nil
}

// SearchValues reads suggestions from the values of one field. Values are
// grouped without case and the most frequent variant is returned.
func (r *SuggestionRepository) SearchValues(ctx context.Context, flt suggestion.ValueFilter) ([]string, error) {
	inner := sq.Select("v.value", "COUNT(*) AS total").
		From(valueTable + " v").
		Join(resourceTable + " r ON r.id = v.resource_id").
		Join(propertyTable + " p ON p.id = v.property_id").
		Join(vocabularyTable + " voc ON voc.id = p.vocabulary_id").
		Where(sq.Expr(termExpr+" = ?", flt.Field)).
		Where("v.value ILIKE ?", likePrefix(flt.Prefix)).
		GroupBy("v.value")
	if len(flt.Types) > 0 {
		inner = inner.Where(sq.Eq{"r.resource_type": flt.Types})
	}
	if flt.Public {
		inner = inner.Where(sq.Eq{"r.is_public": true, "v.is_public": true})
	}
	if flt.SiteID != 0 {
		inner = inner.Where(sq.Expr(
			"EXISTS (SELECT 1 FROM "+resourceSiteTable+" rs WHERE rs.resource_id = r.id AND rs.site_id = ?)", flt.SiteID,
		))
	}

	builder := sq.Select("text").
		FromSelect(
			sq.Select("DISTINCT ON (lower(c.value)) c.value AS text", "SUM(c.total) OVER (PARTITION BY lower(c.value)) AS total").
				FromSelect(inner, "c").
				OrderBy("lower(c.value)", "c.total DESC", "c.value ASC"),
			"g",
		).
		OrderBy("total DESC", "text ASC").
		Limit(uint64(flt.Limit))

	query, args, err := buildSQL(builder)
	if err != nil {
		return nil, fmt.Errorf("search value suggestions: %w", err)
	}

	var texts []string
	if err := r.client.db.SelectContext(ctx, &texts, query, args...); err != nil {
		return nil, fmt.Errorf("search value suggestions: %w", err)
	}
	return texts, nil
}

func (r *SuggestionRepository) Count(ctx context.Context, suggesterID int64) (int, error) {
	query, args, err := buildSQL(
		sq.Select("COUNT(*)").From(suggestionTable).Where(sq.Eq{"suggester_id": suggesterID}),
	)
	if err != nil {
		return 0, fmt.Errorf("count suggestions: %w", err)
	}
	var n int
	if err := r.client.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count suggestions: %w", err)
	}
	return n, nil
}

// List returns every suggestion of the suggester with its site scopes,
// ordered by text.
func (r *SuggestionRepository) List(ctx context.Context, suggesterID int64) ([]suggestion.Suggestion, error) {
	query, args, err := buildSQL(
		sq.Select("s.id", "s.suggester_id", "s.text", "s.total_all", "s.total_public",
			"COALESCE(array_agg(ss.site_id ORDER BY ss.site_id) FILTER (WHERE ss.site_id <> 0), '{}') AS site_ids").
			From(suggestionTable + " s").
			LeftJoin(suggestionSiteTable + " ss ON ss.suggestion_id = s.id").
			Where(sq.Eq{"s.suggester_id": suggesterID}).
			GroupBy("s.id").
			OrderBy("s.text ASC"),
	)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}

	rows, err := r.client.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []suggestion.Suggestion
	for rows.Next() {
		var (
			s     suggestion.Suggestion
			sites pgtype.Int8Array
		)
		if err := rows.Scan(&s.ID, &s.SuggesterID, &s.Text, &s.TotalAll, &s.TotalPublic, &sites); err != nil {
			return nil, fmt.Errorf("list suggestions: scan row: %w", err)
		}
		if len(sites.Elements) > 0 {
			if err := sites.AssignTo(&s.SiteIDs); err != nil {
				return nil, fmt.Errorf("list suggestions: site ids: %w", err)
			}
		}
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return suggestions, nil
}
