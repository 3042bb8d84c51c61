package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

func plain() (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPrinterWithProfile(&buf, termenv.Ascii), &buf
}

func TestTasksGroupedByCell(t *testing.T) {
	p, buf := plain()
	mon, evening := 1, schema.PeriodEvening
	p.Tasks([]schema.Task{
		{ID: "t2", Title: "Plan week", Priority: "P1", Status: schema.StatusTodo, Day: &mon, Period: &evening},
		{ID: "t1", Title: "Draft report", Priority: "P2", Status: schema.StatusDone, Tags: []string{"work"}},
		{ID: "t3", Title: "Pay rent", Priority: "P3", Status: schema.StatusInProgress, Date: "2026-10-31",
			Subtasks: []schema.Subtask{{ID: "s", Done: true}, {ID: "s2"}}},
	})

	out := buf.String()
	assert.Less(t, strings.Index(out, "Backlog"), strings.Index(out, "Mon evening"))
	assert.Contains(t, out, "[x] P2 Draft report #work t1")
	assert.Contains(t, out, "[~] P3 Pay rent due 2026-10-31 (1/2) t3")
	assert.Contains(t, out, "[ ] P1 Plan week t2")
}

func TestEmptyLists(t *testing.T) {
	p, buf := plain()
	snap := &store.Snapshot{Dataset: schema.EmptyDataset()}
	p.Tasks(nil)
	p.Habits(snap, "2026-10-14")
	p.Notes(snap, nil)
	assert.Equal(t, "No tasks.\nNo habits.\nNo notes.\n", buf.String())
}

func TestHabitsShowToday(t *testing.T) {
	p, buf := plain()
	snap := &store.Snapshot{Dataset: schema.EmptyDataset()}
	snap.Habits = []schema.Habit{
		{ID: "h1", Name: "Read", Frequency: schema.FrequencyDaily},
		{ID: "h2", Name: "Old", Archived: true},
	}
	snap.HabitEntries = []schema.HabitEntry{
		{ID: "e1", HabitID: "h1", Date: "2026-10-14", Completed: true},
		{ID: "e2", HabitID: "h1", Date: "2026-10-13", Completed: true},
	}
	p.Habits(snap, "2026-10-14")

	out := buf.String()
	assert.Contains(t, out, "● Read daily, 2 done h1")
	assert.NotContains(t, out, "Old")
}

func TestStatus(t *testing.T) {
	p, buf := plain()
	p.Status(cloudsync.Status{
		State:      cloudsync.StateError,
		Identity:   "bob",
		LastReport: &cloudsync.Report{Err: errors.New("backup upload failed")},
	}, store.Stats{Total: 4, OpenTasks: 2}, "https://api.example.com")

	out := buf.String()
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "4 (2 open tasks)")
	assert.Contains(t, out, "backup upload failed")
	assert.Contains(t, out, "never")
}

func TestHydration(t *testing.T) {
	tests := []struct {
		name string
		res  cloudsync.HydrateResult
		want string
	}{
		{"none", cloudsync.HydrateResult{}, "No cloud backup found."},
		{"kept", cloudsync.HydrateResult{Found: true}, "kept local data"},
		{"applied", cloudsync.HydrateResult{Found: true, Applied: true, Entities: 9, RemoteUpdatedAt: time.Now()}, "restored 9 entities"},
		{"failed", cloudsync.HydrateResult{Err: errors.New("boom")}, "could not restore backup: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := plain()
			p.Hydration(tt.res)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestCountsSkipsEmpty(t *testing.T) {
	p, buf := plain()
	p.Counts(map[string]int{"tasks": 3, "notes": 0, "habits": 1})
	out := buf.String()
	assert.NotContains(t, out, "notes")
	assert.Less(t, strings.Index(out, "habits"), strings.Index(out, "tasks"))
}
