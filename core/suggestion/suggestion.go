package suggestion

import (
	"context"
	"errors"
	"fmt"
)

//go:generate mockery --name=Repository -r --case underscore --with-expecter --structname SuggestionRepository --filename suggestion_repository_mock.go --output=./mocks

// Repository persists the suggestions of a suggester and serves the suggest
// read path.
type Repository interface {
	// Replace deletes every suggestion of the suggester and inserts the given
	// ones, in a single transaction.
	Replace(ctx context.Context, suggesterID int64, suggestions []Suggestion) error
	DeleteBySuggester(ctx context.Context, suggesterID int64) error
	Search(ctx context.Context, flt SearchFilter) ([]string, error)
	// SearchValues reads suggestions directly from the values of one field.
	SearchValues(ctx context.Context, flt ValueFilter) ([]string, error)
	Count(ctx context.Context, suggesterID int64) (int, error)
}

// GlobalScope is the scope id of the cross-site partition.
const GlobalScope int64 = 0

var (
	ErrEmptyPrefix = errors.New("suggest prefix is empty")
	ErrNoSuggester = errors.New("suggester id is required")
)

// Suggestion is one stored suggestion text with its counts.
type Suggestion struct {
	ID          int64  `json:"id" db:"id"`
	SuggesterID int64  `json:"suggester_id" db:"suggester_id"`
	Text        string `json:"text" db:"text"`
	TotalAll    int    `json:"total_all" db:"total_all"`
	TotalPublic int    `json:"total_public" db:"total_public"`
	// SiteIDs are the sites holding a resource that carries the text. The
	// global scope is implicit.
	SiteIDs []int64 `json:"site_ids,omitempty" db:"-"`
}

// Scopes returns the scope ids the suggestion is stored under.
func (s Suggestion) Scopes() []int64 {
	scopes := make([]int64, 0, len(s.SiteIDs)+1)
	scopes = append(scopes, GlobalScope)
	for _, id := range s.SiteIDs {
		if id != GlobalScope {
			scopes = append(scopes, id)
		}
	}
	return scopes
}

// SearchFilter selects stored suggestions starting with Prefix, ordered by
// descending total of the partition, then text.
type SearchFilter struct {
	SuggesterID int64
	Prefix      string
	// SiteID restricts to one site scope. 0 is the global scope.
	SiteID int64
	Public bool
	Limit  int
}

type ValueFilter struct {
	Field  string
	Prefix string
	Types  []string
	SiteID int64
	Public bool
	Limit  int
}

type NotFoundError struct {
	SuggesterID int64
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("could not find suggester with id = %d", err.SuggesterID)
}
