package store

import (
	"time"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

// Snapshot is one immutable version of the whole store. The store never
// modifies a published snapshot; mutations publish a new one. Readers must
// not modify it either. Its JSON encoding is the backup blob format.
type Snapshot struct {
	schema.Dataset

	// UpdatedAt is the time of the last local mutation. Zero means the
	// store has never been mutated on this device.
	UpdatedAt time.Time `json:"storeUpdatedAt"`
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Dataset: schema.EmptyDataset()}
}

// clone returns a copy sharing every collection. Mutations replace the
// collections they touch instead of editing them.
func (s *Snapshot) clone() *Snapshot {
	n := *s
	return &n
}

// TasksAt returns the tasks in a planner cell, ordered. Nil arguments
// select the backlog.
func (s *Snapshot) TasksAt(day *int, period *string) []schema.Task {
	var out []schema.Task
	for i := range s.Tasks {
		if s.Tasks[i].InCell(day, period) {
			out = append(out, s.Tasks[i])
		}
	}
	sortByOrder(out, func(t *schema.Task) int { return t.Order })
	return out
}

// Backlog returns the tasks with no planner cell, ordered.
func (s *Snapshot) Backlog() []schema.Task {
	return s.TasksAt(nil, nil)
}

// Task looks up a task by id.
func (s *Snapshot) Task(id string) (schema.Task, bool) {
	return find(s.Tasks, func(t *schema.Task) bool { return t.ID == id })
}

// Habit looks up a habit by id.
func (s *Snapshot) Habit(id string) (schema.Habit, bool) {
	return find(s.Habits, func(h *schema.Habit) bool { return h.ID == id })
}

// Contact looks up a contact by id.
func (s *Snapshot) Contact(id string) (schema.Contact, bool) {
	return find(s.Contacts, func(c *schema.Contact) bool { return c.ID == id })
}

// EntriesForHabit returns the entries of one habit in date order.
func (s *Snapshot) EntriesForHabit(habitID string) []schema.HabitEntry {
	var out []schema.HabitEntry
	for _, e := range s.HabitEntries {
		if e.HabitID == habitID {
			out = append(out, e)
		}
	}
	sortStable(out, func(a, b *schema.HabitEntry) bool { return a.Date < b.Date })
	return out
}

// EntryOn returns the entry for (habitID, date) if one exists.
func (s *Snapshot) EntryOn(habitID, date string) (schema.HabitEntry, bool) {
	return find(s.HabitEntries, func(e *schema.HabitEntry) bool { return e.HabitID == habitID && e.Date == date })
}

// InteractionsFor returns a contact's interactions, newest first.
func (s *Snapshot) InteractionsFor(contactID string) []schema.Interaction {
	var out []schema.Interaction
	for _, i := range s.Interactions {
		if i.ContactID == contactID {
			out = append(out, i)
		}
	}
	sortStable(out, func(a, b *schema.Interaction) bool {
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out
}

// NotesIn returns the notes filed in folderID (nil for the root), pinned
// first, then by order.
func (s *Snapshot) NotesIn(folderID *string) []schema.Note {
	var out []schema.Note
	for _, n := range s.Notes {
		if schema.EqualRef(n.FolderID, folderID) {
			out = append(out, n)
		}
	}
	sortStable(out, func(a, b *schema.Note) bool {
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.Order < b.Order
	})
	return out
}

// FolderPath returns the breadcrumb from the root down to folder id. The
// walk stops at a dangling parent reference or a cycle.
func (s *Snapshot) FolderPath(id string) []schema.Folder {
	byID := make(map[string]schema.Folder, len(s.Folders))
	for _, f := range s.Folders {
		byID[f.ID] = f
	}

	var path []schema.Folder
	seen := map[string]bool{}
	cur := &id
	for cur != nil {
		f, ok := byID[*cur]
		if !ok || seen[f.ID] {
			break
		}
		seen[f.ID] = true
		path = append(path, f)
		cur = f.ParentID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Stats summarizes a snapshot for status displays.
type Stats struct {
	Counts    map[string]int `json:"counts"`
	Total     int            `json:"total"`
	OpenTasks int            `json:"openTasks"`
	UpdatedAt time.Time      `json:"storeUpdatedAt"`
}

// Stats computes entity counts.
func (s *Snapshot) Stats() Stats {
	st := Stats{
		Counts:    s.Counts(),
		Total:     s.Total(),
		UpdatedAt: s.UpdatedAt,
	}
	for i := range s.Tasks {
		if s.Tasks[i].Status != schema.StatusDone {
			st.OpenTasks++
		}
	}
	return st
}
