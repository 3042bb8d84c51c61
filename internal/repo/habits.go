package repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var habitColumns = []string{
	"id", "name", "description", "color", "icon", "frequency", "target_days",
	"archived", "sort_order", "created_at", "updated_at",
}

type habitRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Color       string `db:"color"`
	Icon        string `db:"icon"`
	Frequency   string `db:"frequency"`
	TargetDays  string `db:"target_days"`
	Archived    bool   `db:"archived"`
	SortOrder   int    `db:"sort_order"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func habitToRow(h *schema.Habit) habitRow {
	return habitRow{
		ID:          h.ID,
		Name:        schema.Truncate(h.Name, schema.MaxTitleLen),
		Description: schema.Truncate(h.Description, schema.MaxDescriptionLen),
		Color:       h.Color,
		Icon:        h.Icon,
		Frequency:   h.Frequency,
		TargetDays:  schema.EncodeList(h.TargetDays, schema.MaxJSONLen),
		Archived:    h.Archived,
		SortOrder:   h.Order,
		CreatedAt:   formatTime(h.CreatedAt),
		UpdatedAt:   formatTime(h.UpdatedAt),
	}
}

func (r habitRow) toHabit() schema.Habit {
	h := schema.Habit{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		Icon:        r.Icon,
		Frequency:   r.Frequency,
		TargetDays:  schema.DecodeList[int](r.TargetDays, schema.MaxJSONLen),
		Archived:    r.Archived,
		Order:       r.SortOrder,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	h.SetDefaults()
	return h
}

// HabitRepo persists habits.
type HabitRepo struct {
	q Querier
}

// NewHabitRepo returns a HabitRepo over q.
func NewHabitRepo(q Querier) *HabitRepo {
	return &HabitRepo{q: q}
}

// GetAll returns every habit in display order.
func (r *HabitRepo) GetAll(ctx context.Context) ([]schema.Habit, error) {
	b := sq.Select(habitColumns...).From("habits").OrderBy("sort_order", "created_at")
	habits, err := selectAll(ctx, r.q, b, habitRow.toHabit)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	return habits, nil
}

// Upsert inserts or replaces the habit keyed by id.
func (r *HabitRepo) Upsert(ctx context.Context, h *schema.Habit) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("habits", habitColumns), habitToRow(h)); err != nil {
		return fmt.Errorf("failed to upsert habit %s: %w", h.ID, err)
	}
	return nil
}

// Delete removes a habit and all of its entries.
func (r *HabitRepo) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.q, func(q Querier) error {
		query, args, err := sq.Delete("habit_entries").Where(sq.Eq{"habit_id": id}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete entries of habit %s: %w", id, err)
		}
		return deleteByID(ctx, q, "habits", id)
	})
}

var habitEntryColumns = []string{"id", "habit_id", "date", "completed", "value", "note", "created_at", "updated_at"}

type habitEntryRow struct {
	ID        string  `db:"id"`
	HabitID   string  `db:"habit_id"`
	Date      string  `db:"date"`
	Completed bool    `db:"completed"`
	Value     float64 `db:"value"`
	Note      string  `db:"note"`
	CreatedAt string  `db:"created_at"`
	UpdatedAt string  `db:"updated_at"`
}

func habitEntryToRow(e *schema.HabitEntry) habitEntryRow {
	return habitEntryRow{
		ID:        e.ID,
		HabitID:   e.HabitID,
		Date:      e.Date,
		Completed: e.Completed,
		Value:     e.Value,
		Note:      schema.Truncate(e.Note, schema.MaxShortLen),
		CreatedAt: formatTime(e.CreatedAt),
		UpdatedAt: formatTime(e.UpdatedAt),
	}
}

func (r habitEntryRow) toHabitEntry() schema.HabitEntry {
	return schema.HabitEntry{
		ID:        r.ID,
		HabitID:   r.HabitID,
		Date:      r.Date,
		Completed: r.Completed,
		Value:     r.Value,
		Note:      r.Note,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

// HabitEntryRepo persists habit entries. At most one row exists per
// (habit_id, date).
type HabitEntryRepo struct {
	q Querier
}

// NewHabitEntryRepo returns a HabitEntryRepo over q.
func NewHabitEntryRepo(q Querier) *HabitEntryRepo {
	return &HabitEntryRepo{q: q}
}

func (r *HabitEntryRepo) base() sq.SelectBuilder {
	return sq.Select(habitEntryColumns...).From("habit_entries")
}

// GetAll returns every entry ordered by date, then habit.
func (r *HabitEntryRepo) GetAll(ctx context.Context) ([]schema.HabitEntry, error) {
	entries, err := selectAll(ctx, r.q, r.base().OrderBy("date", "habit_id"), habitEntryRow.toHabitEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit entries: %w", err)
	}
	return entries, nil
}

// GetForHabit returns the entries of one habit ordered by date.
func (r *HabitEntryRepo) GetForHabit(ctx context.Context, habitID string) ([]schema.HabitEntry, error) {
	entries, err := selectAll(ctx, r.q, r.base().Where(sq.Eq{"habit_id": habitID}).OrderBy("date"), habitEntryRow.toHabitEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries of habit %s: %w", habitID, err)
	}
	return entries, nil
}

// GetByDate returns all entries recorded on date.
func (r *HabitEntryRepo) GetByDate(ctx context.Context, date string) ([]schema.HabitEntry, error) {
	entries, err := selectAll(ctx, r.q, r.base().Where(sq.Eq{"date": date}).OrderBy("habit_id"), habitEntryRow.toHabitEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit entries for %s: %w", date, err)
	}
	return entries, nil
}

// Upsert writes the entry. An existing row for the same id or the same
// (habit_id, date) pair is replaced.
func (r *HabitEntryRepo) Upsert(ctx context.Context, e *schema.HabitEntry) error {
	// REPLACE resolves both the primary key and the (habit_id, date)
	// unique constraint; ON CONFLICT can only name one target.
	query := "INSERT OR REPLACE INTO habit_entries (id, habit_id, date, completed, value, note, created_at, updated_at) " +
		"VALUES (:id, :habit_id, :date, :completed, :value, :note, :created_at, :updated_at)"
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, habitEntryToRow(e)); err != nil {
		return fmt.Errorf("failed to upsert habit entry %s/%s: %w", e.HabitID, e.Date, err)
	}
	return nil
}

// Delete removes an entry.
func (r *HabitEntryRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "habit_entries", id)
}
