package repo

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var taskColumns = []string{
	"id", "title", "description", "status", "priority", "day", "period",
	"date", "time", "sort_order", "tags", "subtasks", "completed_at",
	"created_at", "updated_at",
}

type taskRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Status      string         `db:"status"`
	Priority    string         `db:"priority"`
	Day         sql.NullInt64  `db:"day"`
	Period      sql.NullString `db:"period"`
	Date        string         `db:"date"`
	Time        string         `db:"time"`
	SortOrder   int            `db:"sort_order"`
	Tags        string         `db:"tags"`
	Subtasks    string         `db:"subtasks"`
	CompletedAt sql.NullString `db:"completed_at"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func taskToRow(t *schema.Task) taskRow {
	r := taskRow{
		ID:          t.ID,
		Title:       schema.Truncate(t.Title, schema.MaxTitleLen),
		Description: schema.Truncate(t.Description, schema.MaxDescriptionLen),
		Status:      t.Status,
		Priority:    t.Priority,
		Period:      refToNull(t.Period),
		Date:        t.Date,
		Time:        t.Time,
		SortOrder:   t.Order,
		Tags:        schema.EncodeList(t.Tags, schema.MaxJSONLen),
		Subtasks:    schema.EncodeList(t.Subtasks, schema.MaxJSONLen),
		CompletedAt: timeToNullString(t.CompletedAt),
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if t.Day != nil {
		r.Day = sql.NullInt64{Int64: int64(*t.Day), Valid: true}
	}
	return r
}

func (r taskRow) toTask() schema.Task {
	t := schema.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Period:      nullToRef(r.Period),
		Date:        r.Date,
		Time:        r.Time,
		Order:       r.SortOrder,
		Tags:        schema.DecodeList[string](r.Tags, schema.MaxJSONLen),
		Subtasks:    schema.DecodeList[schema.Subtask](r.Subtasks, schema.MaxJSONLen),
		CompletedAt: nullStringToTime(r.CompletedAt),
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	if r.Day.Valid {
		d := int(r.Day.Int64)
		t.Day = &d
	}
	t.SetDefaults()
	return t
}

// TaskRepo persists tasks.
type TaskRepo struct {
	q Querier
}

// NewTaskRepo returns a TaskRepo over q.
func NewTaskRepo(q Querier) *TaskRepo {
	return &TaskRepo{q: q}
}

func (r *TaskRepo) base() sq.SelectBuilder {
	return sq.Select(taskColumns...).From("tasks")
}

// GetAll returns every task, backlog first, then by cell and order.
func (r *TaskRepo) GetAll(ctx context.Context) ([]schema.Task, error) {
	tasks, err := selectAll(ctx, r.q, r.base().OrderBy("day", "period", "sort_order", "created_at"), taskRow.toTask)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetInCell returns the tasks placed in (day, period), ordered. Nil
// arguments select the backlog.
func (r *TaskRepo) GetInCell(ctx context.Context, day *int, period *string) ([]schema.Task, error) {
	b := r.base().Where(refEq("period", period)).OrderBy("sort_order", "created_at")
	if day == nil {
		b = b.Where(sq.Eq{"day": nil})
	} else {
		b = b.Where(sq.Eq{"day": *day})
	}
	tasks, err := selectAll(ctx, r.q, b, taskRow.toTask)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks in cell: %w", err)
	}
	return tasks, nil
}

// GetByDate returns tasks due on date.
func (r *TaskRepo) GetByDate(ctx context.Context, date string) ([]schema.Task, error) {
	tasks, err := selectAll(ctx, r.q, r.base().Where(sq.Eq{"date": date}).OrderBy("time", "sort_order"), taskRow.toTask)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for %s: %w", date, err)
	}
	return tasks, nil
}

// Upsert inserts or replaces the task keyed by id.
func (r *TaskRepo) Upsert(ctx context.Context, t *schema.Task) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("tasks", taskColumns), taskToRow(t)); err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
	}
	return nil
}

// Delete removes a task. Deleting a missing id is not an error.
func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "tasks", id)
}
