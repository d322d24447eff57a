package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const settingTable = "setting"

// ErrSettingNotFound is returned when no value is stored for a key.
var ErrSettingNotFound = errors.New("setting not found")

// SettingRepository is a key/value store of JSON values.
type SettingRepository struct {
	client *Client
}

func NewSettingRepository(c *Client) (*SettingRepository, error) {
	if c == nil {
		return nil, errNilDBClient
	}
	return &SettingRepository{client: c}, nil
}

// Get decodes the value stored for key into v.
func (r *SettingRepository) Get(ctx context.Context, key string, v interface{}) error {
	query, args, err := buildSQL(sq.Select("value").From(settingTable).Where(sq.Eq{"id": key}))
	if err != nil {
		return fmt.Errorf("get setting: %w", err)
	}

	var raw []byte
	if err := r.client.db.GetContext(ctx, &raw, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %q", ErrSettingNotFound, key)
		}
		return fmt.Errorf("get setting: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("get setting %q: %w", key, err)
	}
	return nil
}

// Set stores v under key.
func (r *SettingRepository) Set(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	query, args, err := buildSQL(
		sq.Insert(settingTable).
			Columns("id", "value").
			Values(key, string(raw)).
			Suffix("ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value"),
	)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	if _, err := r.client.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set setting: %w", checkPostgresError(err))
	}
	return nil
}

func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	query, args, err := buildSQL(sq.Delete(settingTable).Where(sq.Eq{"id": key}))
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	if _, err := r.client.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}
