package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

type kvRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// KVRepo is a flat string key/value table. It backs both user settings and
// store bookkeeping.
type KVRepo struct {
	q     Querier
	table string
}

// NewKVRepo returns a KVRepo over table.
func NewKVRepo(q Querier, table string) *KVRepo {
	return &KVRepo{q: q, table: table}
}

// Get returns the value for key and whether it was present.
func (r *KVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := sq.Select("value").From(r.table).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("failed to build query: %w", err)
	}

	var value string
	if err := sqlx.GetContext(ctx, r.q, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s %q: %w", r.table, key, err)
	}
	return value, true, nil
}

// All returns every pair in the table.
func (r *KVRepo) All(ctx context.Context) (map[string]string, error) {
	query, args, err := sq.Select("key", "value").From(r.table).OrderBy("key").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []kvRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table, err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Set stores value under key, replacing any previous value.
func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	query := "INSERT INTO " + r.table + " (key, value) VALUES (:key, :value) ON CONFLICT(key) DO UPDATE SET value = excluded.value"
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, kvRow{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to write %s %q: %w", r.table, key, err)
	}
	return nil
}

// Delete removes key. Missing keys are ignored.
func (r *KVRepo) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete(r.table).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", r.table, key, err)
	}
	return nil
}

// Settings keys.
const (
	SettingTheme     = "theme"
	SettingWeekStart = "weekStart"
)

// SettingsRepo maps schema.Settings onto the settings key/value table.
type SettingsRepo struct {
	kv *KVRepo
}

// NewSettingsRepo returns a SettingsRepo over q.
func NewSettingsRepo(q Querier) *SettingsRepo {
	return &SettingsRepo{kv: NewKVRepo(q, "settings")}
}

// Get returns the stored settings. Missing or invalid keys fall back to
// their default individually.
func (r *SettingsRepo) Get(ctx context.Context) (schema.Settings, error) {
	pairs, err := r.kv.All(ctx)
	if err != nil {
		return schema.Settings{}, err
	}

	s := schema.DefaultSettings()
	if v, ok := pairs[SettingTheme]; ok {
		candidate := s
		candidate.Theme = v
		if candidate.Validate() == nil {
			s = candidate
		}
	}
	if v, ok := pairs[SettingWeekStart]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			candidate := s
			candidate.WeekStart = n
			if candidate.Validate() == nil {
				s = candidate
			}
		}
	}
	return s, nil
}

// Save writes every settings key.
func (r *SettingsRepo) Save(ctx context.Context, s *schema.Settings) error {
	if err := r.kv.Set(ctx, SettingTheme, s.Theme); err != nil {
		return err
	}
	return r.kv.Set(ctx, SettingWeekStart, strconv.Itoa(s.WeekStart))
}

// KV exposes the raw key/value table.
func (r *SettingsRepo) KV() *KVRepo {
	return r.kv
}
