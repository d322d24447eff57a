package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/core/engine"
)

const (
	engineTable    = "search_engine"
	suggesterTable = "search_suggester"
)

type engineModel struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Adapter   string    `db:"adapter"`
	Settings  []byte    `db:"settings"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (m engineModel) toEngine() (engine.SearchEngine, error) {
	e := engine.SearchEngine{
		ID:        m.ID,
		Name:      m.Name,
		Adapter:   engine.Adapter(m.Adapter),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Settings) > 0 {
		if err := json.Unmarshal(m.Settings, &e.Settings); err != nil {
			return engine.SearchEngine{}, fmt.Errorf("unmarshal settings of engine %d: %w", m.ID, err)
		}
	}
	return e, nil
}

// EngineRepository stores search engine configurations.
type EngineRepository struct {
	client *Client
}

func NewEngineRepository(c *Client) (*EngineRepository, error) {
	if c == nil {
		return nil, errNilDBClient
	}
	return &EngineRepository{client: c}, nil
}

func (r *EngineRepository) GetByID(ctx context.Context, id int64) (engine.SearchEngine, error) {
	query, args, err := buildSQL(
		sq.Select("id", "name", "adapter", "settings", "created_at", "updated_at").
			From(engineTable).
			Where(sq.Eq{"id": id}),
	)
	if err != nil {
		return engine.SearchEngine{}, fmt.Errorf("get engine: %w", err)
	}

	var m engineModel
	if err := r.client.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.SearchEngine{}, engine.NotFoundError{Kind: "search engine", ID: id}
		}
		return engine.SearchEngine{}, fmt.Errorf("get engine: %w", err)
	}
	return m.toEngine()
}

func (r *EngineRepository) GetAll(ctx context.Context) ([]engine.SearchEngine, error) {
	query, args, err := buildSQL(
		sq.Select("id", "name", "adapter", "settings", "created_at", "updated_at").
			From(engineTable).
			OrderBy("id ASC"),
	)
	if err != nil {
		return nil, fmt.Errorf("get all engines: %w", err)
	}

	var models []engineModel
	if err := r.client.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("get all engines: %w", err)
	}

	engines := make([]engine.SearchEngine, 0, len(models))
	for _, m := range models {
		e, err := m.toEngine()
		if err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}
	return engines, nil
}

// Upsert inserts the engine or updates the one with the same name.
func (r *EngineRepository) Upsert(ctx context.Context, e *engine.SearchEngine) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("upsert engine: %w: engine is nil", engine.ErrInvalidConfig)
	}
	if err := e.Validate(); err != nil {
		return 0, err
	}

	settings, err := json.Marshal(e.Settings)
	if err != nil {
		return 0, fmt.Errorf("upsert engine: marshal settings: %w", err)
	}

	query, args, err := buildSQL(
		sq.Insert(engineTable).
			Columns("name", "adapter", "settings").
			Values(e.Name, string(e.Adapter), string(settings)).
			Suffix("ON CONFLICT (name) DO UPDATE SET adapter = EXCLUDED.adapter, settings = EXCLUDED.settings, updated_at = now() RETURNING id"),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert engine: %w", err)
	}

	var id int64
	if err := r.client.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert engine: %w", checkPostgresError(err))
	}
	e.ID = id
	return id, nil
}

type suggesterModel struct {
	ID        int64     `db:"id"`
	EngineID  int64     `db:"engine_id"`
	Name      string    `db:"name"`
	Settings  []byte    `db:"settings"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (m suggesterModel) toSuggester() (engine.Suggester, error) {
	s := engine.Suggester{
		ID:        m.ID,
		EngineID:  m.EngineID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Settings) > 0 {
		if err := json.Unmarshal(m.Settings, &s.Settings); err != nil {
			return engine.Suggester{}, fmt.Errorf("unmarshal settings of suggester %d: %w", m.ID, err)
		}
	}
	return s, nil
}

// SuggesterRepository stores suggester configurations.
type SuggesterRepository struct {
	client *Client
}

func NewSuggesterRepository(c *Client) (*SuggesterRepository, error) {
	if c == nil {
		return nil, errNilDBClient
	}
	return &SuggesterRepository{client: c}, nil
}

func (r *SuggesterRepository) GetByID(ctx context.Context, id int64) (engine.Suggester, error) {
	query, args, err := buildSQL(
		sq.Select("id", "engine_id", "name", "settings", "created_at", "updated_at").
			From(suggesterTable).
			Where(sq.Eq{"id": id}),
	)
	if err != nil {
		return engine.Suggester{}, fmt.Errorf("get suggester: %w", err)
	}

	var m suggesterModel
	if err := r.client.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Suggester{}, engine.NotFoundError{Kind: "suggester", ID: id}
		}
		return engine.Suggester{}, fmt.Errorf("get suggester: %w", err)
	}
	return m.toSuggester()
}

func (r *SuggesterRepository) GetAll(ctx context.Context) ([]engine.Suggester, error) {
	query, args, err := buildSQL(
		sq.Select("id", "engine_id", "name", "settings", "created_at", "updated_at").
			From(suggesterTable).
			OrderBy("id ASC"),
	)
	if err != nil {
		return nil, fmt.Errorf("get all suggesters: %w", err)
	}

	var models []suggesterModel
	if err := r.client.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("get all suggesters: %w", err)
	}

	suggesters := make([]engine.Suggester, 0, len(models))
	for _, m := range models {
		s, err := m.toSuggester()
		if err != nil {
			return nil, err
		}
		suggesters = append(suggesters, s)
	}
	return suggesters, nil
}

// Upsert inserts the suggester or updates the one with the same engine and
// name.
func (r *SuggesterRepository) Upsert(ctx context.Context, s *engine.Suggester) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("upsert suggester: %w: suggester is nil", engine.ErrInvalidConfig)
	}
	if err := s.Validate(); err != nil {
		return 0, err
	}

	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return 0, fmt.Errorf("upsert suggester: marshal settings: %w", err)
	}

	query, args, err := buildSQL(
		sq.Insert(suggesterTable).
			Columns("engine_id", "name", "settings").
			Values(s.EngineID, s.Name, string(settings)).
			Suffix("ON CONFLICT (engine_id, name) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now() RETURNING id"),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert suggester: %w", err)
	}

	var id int64
	if err := r.client.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		err = checkPostgresError(err)
		if errors.Is(err, errForeignKeyViolation) {
			return 0, engine.NotFoundError{Kind: "search engine", ID: s.EngineID}
		}
		return 0, fmt.Errorf("upsert suggester: %w", err)
	}
	s.ID = id
	return id, nil
}
