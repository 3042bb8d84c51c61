package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var habitKind = kind[schema.Habit]{
	name:   "habit",
	items:  func(s *Snapshot) *[]schema.Habit { return &s.Habits },
	id:     func(h *schema.Habit) string { return h.ID },
	clone:  schema.Habit.Clone,
	upsert: func(ctx context.Context, r *repo.Set, h *schema.Habit) error { return r.Habits.Upsert(ctx, h) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Habits.Delete(ctx, id) },
}

// AddHabit creates a habit, last in display order.
func (s *Store) AddHabit(ctx context.Context, draft schema.Habit) (schema.Habit, error) {
	return addItem(ctx, s, &habitKind, draft.Clone(), func(next *Snapshot, h *schema.Habit, now time.Time) error {
		h.ID = s.newID()
		h.SetDefaults()
		h.CreatedAt, h.UpdatedAt = now, now
		h.Order = nextOrder(next.Habits, func(*schema.Habit) bool { return true }, func(o *schema.Habit) int { return o.Order })
		if err := h.Validate(); err != nil {
			return fmt.Errorf("invalid habit: %w", err)
		}
		return nil
	})
}

// UpdateHabit applies fn to the habit with id.
func (s *Store) UpdateHabit(ctx context.Context, id string, fn func(*schema.Habit)) (schema.Habit, error) {
	return updateItem(ctx, s, &habitKind, id, fn, func(_ *Snapshot, old, h *schema.Habit, now time.Time) error {
		h.ID, h.CreatedAt, h.UpdatedAt = old.ID, old.CreatedAt, now
		h.SetDefaults()
		if err := h.Validate(); err != nil {
			return fmt.Errorf("invalid habit: %w", err)
		}
		return nil
	})
}

// DeleteHabit removes the habit with id together with all of its entries.
func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &habitKind, id, func(next *Snapshot, _ time.Time) {
		next.HabitEntries = removeWhere(next.HabitEntries, func(e *schema.HabitEntry) bool { return e.HabitID == id })
	})
}

// UpsertHabitEntry records draft as the entry for (HabitID, Date). An
// existing entry for that pair keeps its id and creation time and takes
// every other field from draft.
func (s *Store) UpsertHabitEntry(ctx context.Context, draft schema.HabitEntry) (schema.HabitEntry, error) {
	entry := draft
	err := s.mutate(ctx, func(next *Snapshot, now time.Time) (func(*repo.Set) error, error) {
		if indexOf(next.Habits, habitKind.id, entry.HabitID) < 0 {
			return nil, notFound(habitKind.name, entry.HabitID)
		}

		i := -1
		for n := range next.HabitEntries {
			if next.HabitEntries[n].HabitID == entry.HabitID && next.HabitEntries[n].Date == entry.Date {
				i = n
				break
			}
		}
		if i >= 0 {
			entry.ID = next.HabitEntries[i].ID
			entry.CreatedAt = next.HabitEntries[i].CreatedAt
		} else {
			entry.ID = s.newID()
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("invalid habit entry: %w", err)
		}

		if i >= 0 {
			next.HabitEntries = replaceAt(next.HabitEntries, i, entry)
		} else {
			next.HabitEntries = appendItem(next.HabitEntries, entry)
		}
		return func(tx *repo.Set) error { return tx.HabitEntries.Upsert(ctx, &entry) }, nil
	})
	if err != nil {
		return schema.HabitEntry{}, err
	}
	return entry, nil
}

// DeleteHabitEntry removes the entry with id.
func (s *Store) DeleteHabitEntry(ctx context.Context, id string) error {
	k := kind[schema.HabitEntry]{
		name:   "habit entry",
		items:  func(s *Snapshot) *[]schema.HabitEntry { return &s.HabitEntries },
		id:     func(e *schema.HabitEntry) string { return e.ID },
		remove: func(ctx context.Context, r *repo.Set, id string) error { return r.HabitEntries.Delete(ctx, id) },
	}
	return deleteItem(ctx, s, &k, id, nil)
}
