package repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var eventColumns = []string{
	"id", "title", "description", "date", "start_time", "end_time", "all_day",
	"location", "color", "recurrence", "reminders", "created_at", "updated_at",
}

type eventRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Date        string `db:"date"`
	StartTime   string `db:"start_time"`
	EndTime     string `db:"end_time"`
	AllDay      bool   `db:"all_day"`
	Location    string `db:"location"`
	Color       string `db:"color"`
	Recurrence  string `db:"recurrence"`
	Reminders   string `db:"reminders"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func eventToRow(e *schema.Event) eventRow {
	return eventRow{
		ID:          e.ID,
		Title:       schema.Truncate(e.Title, schema.MaxTitleLen),
		Description: schema.Truncate(e.Description, schema.MaxDescriptionLen),
		Date:        e.Date,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		AllDay:      e.AllDay,
		Location:    schema.Truncate(e.Location, schema.MaxShortLen),
		Color:       e.Color,
		Recurrence:  e.Recurrence,
		Reminders:   schema.EncodeList(e.Reminders, schema.MaxJSONLen),
		CreatedAt:   formatTime(e.CreatedAt),
		UpdatedAt:   formatTime(e.UpdatedAt),
	}
}

func (r eventRow) toEvent() schema.Event {
	e := schema.Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		AllDay:      r.AllDay,
		Location:    r.Location,
		Color:       r.Color,
		Recurrence:  r.Recurrence,
		Reminders:   schema.DecodeList[int](r.Reminders, schema.MaxJSONLen),
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	e.SetDefaults()
	return e
}

// EventRepo persists calendar events.
type EventRepo struct {
	q Querier
}

// NewEventRepo returns an EventRepo over q.
func NewEventRepo(q Querier) *EventRepo {
	return &EventRepo{q: q}
}

func (r *EventRepo) base() sq.SelectBuilder {
	return sq.Select(eventColumns...).From("events")
}

// GetAll returns every event ordered by date and start time.
func (r *EventRepo) GetAll(ctx context.Context) ([]schema.Event, error) {
	events, err := selectAll(ctx, r.q, r.base().OrderBy("date", "start_time", "created_at"), eventRow.toEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// GetByDate returns the events on date.
func (r *EventRepo) GetByDate(ctx context.Context, date string) ([]schema.Event, error) {
	events, err := selectAll(ctx, r.q, r.base().Where(sq.Eq{"date": date}).OrderBy("start_time"), eventRow.toEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", date, err)
	}
	return events, nil
}

// GetBetween returns events dated in [from, to], both inclusive.
func (r *EventRepo) GetBetween(ctx context.Context, from, to string) ([]schema.Event, error) {
	b := r.base().Where(sq.GtOrEq{"date": from}).Where(sq.LtOrEq{"date": to}).OrderBy("date", "start_time")
	events, err := selectAll(ctx, r.q, b, eventRow.toEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to list events %s..%s: %w", from, to, err)
	}
	return events, nil
}

// Upsert inserts or replaces the event keyed by id.
func (r *EventRepo) Upsert(ctx context.Context, e *schema.Event) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("events", eventColumns), eventToRow(e)); err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", e.ID, err)
	}
	return nil
}

// Delete removes an event.
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "events", id)
}
