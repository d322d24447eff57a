package engine

import (
	"context"
	"time"
)

//go:generate mockery --name=Repository -r --case underscore --with-expecter --structname EngineRepository --filename engine_repository_mock.go --output=./mocks

type Repository interface {
	GetByID(ctx context.Context, id int64) (SearchEngine, error)
	GetAll(ctx context.Context) ([]SearchEngine, error)
	Upsert(ctx context.Context, e *SearchEngine) (int64, error)
}

// Adapter names the querier that serves an engine.
type Adapter string

const (
	AdapterInternal Adapter = "internal"
	AdapterNoop     Adapter = "noop"
)

// SearchEngine is one search configuration: which resources it indexes and how
// its querier behaves.
type SearchEngine struct {
	ID        int64          `json:"id" db:"id"`
	Name      string         `json:"name" db:"name" validate:"required"`
	Adapter   Adapter        `json:"adapter" db:"adapter" validate:"required,oneof=internal noop"`
	Settings  EngineSettings `json:"settings" db:"settings"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

type EngineSettings struct {
	ResourceTypes []string `json:"resource_types" validate:"required,min=1,dive,oneof=items item_sets media"`
	// DefaultFields feed the full-text document of each resource. Empty means
	// every value of the resource.
	DefaultFields []string `json:"default_fields,omitempty"`
	PerPage       int      `json:"per_page,omitempty" validate:"gte=0"`
}

// Indexes reports whether typ is declared by the engine.
func (e SearchEngine) Indexes(typ string) bool {
	for _, t := range e.Settings.ResourceTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// IntersectTypes keeps the requested types the engine declares, in request
// order. An empty request means every declared type.
func (e SearchEngine) IntersectTypes(requested []string) []string {
	if len(requested) == 0 {
		return append([]string(nil), e.Settings.ResourceTypes...)
	}
	var types []string
	seen := make(map[string]struct{}, len(requested))
	for _, typ := range requested {
		if _, ok := seen[typ]; ok || !e.Indexes(typ) {
			continue
		}
		seen[typ] = struct{}{}
		types = append(types, typ)
	}
	return types
}

func (e *SearchEngine) Validate() error {
	return ValidateStruct(e)
}
