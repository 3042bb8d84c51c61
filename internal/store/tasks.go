package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var taskKind = kind[schema.Task]{
	name:   "task",
	items:  func(s *Snapshot) *[]schema.Task { return &s.Tasks },
	id:     func(t *schema.Task) string { return t.ID },
	clone:  schema.Task.Clone,
	upsert: func(ctx context.Context, r *repo.Set, t *schema.Task) error { return r.Tasks.Upsert(ctx, t) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Tasks.Delete(ctx, id) },
}

func taskOrder(t *schema.Task) int { return t.Order }

// AddTask creates a task from draft. The id, timestamps and order are
// always assigned by the store; the task goes to the end of its cell.
func (s *Store) AddTask(ctx context.Context, draft schema.Task) (schema.Task, error) {
	return addItem(ctx, s, &taskKind, draft.Clone(), func(next *Snapshot, t *schema.Task, now time.Time) error {
		t.ID = s.newID()
		t.SetDefaults()
		t.CreatedAt, t.UpdatedAt = now, now
		t.Order = nextOrder(next.Tasks, func(o *schema.Task) bool { return o.InCell(t.Day, t.Period) }, taskOrder)
		settleCompletion(nil, t, now)
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid task: %w", err)
		}
		return nil
	})
}

// UpdateTask applies fn to the task with id. Moving a task to another cell
// without choosing an order appends it there.
func (s *Store) UpdateTask(ctx context.Context, id string, fn func(*schema.Task)) (schema.Task, error) {
	return updateItem(ctx, s, &taskKind, id, fn, func(next *Snapshot, old, t *schema.Task, now time.Time) error {
		t.ID, t.CreatedAt, t.UpdatedAt = old.ID, old.CreatedAt, now
		t.SetDefaults()
		if !t.InCell(old.Day, old.Period) && t.Order == old.Order {
			t.Order = nextOrder(next.Tasks, func(o *schema.Task) bool { return o.ID != t.ID && o.InCell(t.Day, t.Period) }, taskOrder)
		}
		settleCompletion(old, t, now)
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid task: %w", err)
		}
		return nil
	})
}

// DeleteTask removes the task with id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &taskKind, id, nil)
}

// CompleteTask marks the task done.
func (s *Store) CompleteTask(ctx context.Context, id string) (schema.Task, error) {
	return s.UpdateTask(ctx, id, func(t *schema.Task) { t.Status = schema.StatusDone })
}

// MoveTask places the task at index inside the (day, period) cell, nil
// meaning the backlog. Both the source and destination cells are
// renumbered 0..n-1. index is clamped to the cell.
func (s *Store) MoveTask(ctx context.Context, id string, day *int, period *string, index int) (schema.Task, error) {
	var moved schema.Task
	err := s.mutate(ctx, func(next *Snapshot, now time.Time) (func(*repo.Set) error, error) {
		i := indexOf(next.Tasks, taskKind.id, id)
		if i < 0 {
			return nil, notFound(taskKind.name, id)
		}
		task := next.Tasks[i].Clone()
		srcDay, srcPeriod := task.Day, task.Period

		task.Day = clonePtr(day)
		task.Period = clonePtr(period)
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("invalid task: %w", err)
		}

		dest := next.TasksAt(day, period)
		dest = removeWhere(dest, func(t *schema.Task) bool { return t.ID == id })
		index = max(0, min(index, len(dest)))
		dest = append(dest[:index], append([]schema.Task{task}, dest[index:]...)...)

		changed := map[string]schema.Task{}
		renumber := func(cell []schema.Task) {
			for n := range cell {
				t := cell[n]
				if t.ID == id || t.Order != n {
					t = t.Clone()
					t.Order = n
					t.UpdatedAt = now
					changed[t.ID] = t
				}
			}
		}
		renumber(dest)
		if !task.InCell(srcDay, srcPeriod) {
			renumber(removeWhere(next.TasksAt(srcDay, srcPeriod), func(t *schema.Task) bool { return t.ID == id }))
		}

		next.Tasks = mapWhere(next.Tasks,
			func(t *schema.Task) bool { _, ok := changed[t.ID]; return ok },
			func(t *schema.Task) { *t = changed[t.ID] })
		moved = changed[id]

		return func(tx *repo.Set) error {
			for _, t := range changed {
				if err := tx.Tasks.Upsert(ctx, &t); err != nil {
					return err
				}
			}
			return nil
		}, nil
	})
	if err != nil {
		return schema.Task{}, err
	}
	return moved.Clone(), nil
}

// settleCompletion keeps CompletedAt consistent with Status.
func settleCompletion(old, t *schema.Task, now time.Time) {
	if t.Status != schema.StatusDone {
		t.CompletedAt = nil
		return
	}
	if t.CompletedAt == nil || (old != nil && old.Status != schema.StatusDone) {
		t.CompletedAt = &now
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
