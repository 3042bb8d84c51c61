package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

// entityTables lists every replaceable table, in clear order.
var entityTables = []string{
	"tasks", "events", "notes", "folders", "habit_entries", "habits",
	"transactions", "finance_config", "interactions", "contacts", "playbooks",
	"shortcuts", "shortcut_folders", "palettes", "study_sessions", "settings",
}

// Set bundles one repository per entity family over a shared Querier.
type Set struct {
	q Querier

	Tasks           *TaskRepo
	Events          *EventRepo
	Folders         *FolderRepo
	Notes           *NoteRepo
	Habits          *HabitRepo
	HabitEntries    *HabitEntryRepo
	Transactions    *TransactionRepo
	Finance         *FinanceConfigRepo
	Contacts        *ContactRepo
	Interactions    *InteractionRepo
	Playbooks       *PlaybookRepo
	ShortcutFolders *ShortcutFolderRepo
	Shortcuts       *ShortcutRepo
	Palettes        *PaletteRepo
	StudySessions   *StudySessionRepo
	Settings        *SettingsRepo
	Meta            *KVRepo
}

// New returns a Set whose repositories all use q.
func New(q Querier) *Set {
	return &Set{
		q:               q,
		Tasks:           NewTaskRepo(q),
		Events:          NewEventRepo(q),
		Folders:         NewFolderRepo(q),
		Notes:           NewNoteRepo(q),
		Habits:          NewHabitRepo(q),
		HabitEntries:    NewHabitEntryRepo(q),
		Transactions:    NewTransactionRepo(q),
		Finance:         NewFinanceConfigRepo(q),
		Contacts:        NewContactRepo(q),
		Interactions:    NewInteractionRepo(q),
		Playbooks:       NewPlaybookRepo(q),
		ShortcutFolders: NewShortcutFolderRepo(q),
		Shortcuts:       NewShortcutRepo(q),
		Palettes:        NewPaletteRepo(q),
		StudySessions:   NewStudySessionRepo(q),
		Settings:        NewSettingsRepo(q),
		Meta:            NewKVRepo(q, "store_meta"),
	}
}

// WithTx runs fn with a Set bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Set) WithTx(ctx context.Context, fn func(tx *Set) error) error {
	return inTx(ctx, s.q, func(q Querier) error {
		return fn(New(q))
	})
}

// LoadAll reads every collection into one Dataset.
func (s *Set) LoadAll(ctx context.Context) (schema.Dataset, error) {
	var (
		d   schema.Dataset
		err error
	)
	if d.Tasks, err = s.Tasks.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Events, err = s.Events.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Folders, err = s.Folders.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Notes, err = s.Notes.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Habits, err = s.Habits.GetAll(ctx); err != nil {
		return d, err
	}
	if d.HabitEntries, err = s.HabitEntries.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Transactions, err = s.Transactions.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Finance, err = s.Finance.Get(ctx); err != nil {
		return d, err
	}
	if d.Contacts, err = s.Contacts.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Interactions, err = s.Interactions.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Playbooks, err = s.Playbooks.GetAll(ctx); err != nil {
		return d, err
	}
	if d.ShortcutFolders, err = s.ShortcutFolders.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Shortcuts, err = s.Shortcuts.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Palettes, err = s.Palettes.GetAll(ctx); err != nil {
		return d, err
	}
	if d.StudySessions, err = s.StudySessions.GetAll(ctx); err != nil {
		return d, err
	}
	if d.Settings, err = s.Settings.Get(ctx); err != nil {
		return d, err
	}
	return d, nil
}

// ReplaceAll clears every entity table and writes d in one transaction.
// Store bookkeeping in store_meta is left alone.
func (s *Set) ReplaceAll(ctx context.Context, d schema.Dataset) error {
	return s.WithTx(ctx, func(tx *Set) error {
		for _, table := range entityTables {
			if err := clearTable(ctx, tx.q, table); err != nil {
				return err
			}
		}
		return tx.writeAll(ctx, &d)
	})
}

func (s *Set) writeAll(ctx context.Context, d *schema.Dataset) error {
	for i := range d.Tasks {
		if err := s.Tasks.Upsert(ctx, &d.Tasks[i]); err != nil {
			return err
		}
	}
	for i := range d.Events {
		if err := s.Events.Upsert(ctx, &d.Events[i]); err != nil {
			return err
		}
	}
	for i := range d.Folders {
		if err := s.Folders.Upsert(ctx, &d.Folders[i]); err != nil {
			return err
		}
	}
	for i := range d.Notes {
		if err := s.Notes.Upsert(ctx, &d.Notes[i]); err != nil {
			return err
		}
	}
	for i := range d.Habits {
		if err := s.Habits.Upsert(ctx, &d.Habits[i]); err != nil {
			return err
		}
	}
	for i := range d.HabitEntries {
		if err := s.HabitEntries.Upsert(ctx, &d.HabitEntries[i]); err != nil {
			return err
		}
	}
	for i := range d.Transactions {
		if err := s.Transactions.Upsert(ctx, &d.Transactions[i]); err != nil {
			return err
		}
	}
	if err := s.Finance.Save(ctx, &d.Finance); err != nil {
		return err
	}
	for i := range d.Contacts {
		if err := s.Contacts.Upsert(ctx, &d.Contacts[i]); err != nil {
			return err
		}
	}
	for i := range d.Interactions {
		if err := s.Interactions.Upsert(ctx, &d.Interactions[i]); err != nil {
			return err
		}
	}
	for i := range d.Playbooks {
		if err := s.Playbooks.Upsert(ctx, &d.Playbooks[i]); err != nil {
			return err
		}
	}
	for i := range d.ShortcutFolders {
		if err := s.ShortcutFolders.Upsert(ctx, &d.ShortcutFolders[i]); err != nil {
			return err
		}
	}
	for i := range d.Shortcuts {
		if err := s.Shortcuts.Upsert(ctx, &d.Shortcuts[i]); err != nil {
			return err
		}
	}
	for i := range d.Palettes {
		if err := s.Palettes.Upsert(ctx, &d.Palettes[i]); err != nil {
			return err
		}
	}
	for i := range d.StudySessions {
		if err := s.StudySessions.Upsert(ctx, &d.StudySessions[i]); err != nil {
			return err
		}
	}
	if err := s.Settings.Save(ctx, &d.Settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Counts returns the row count of every entity table.
func (s *Set) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(entityTables))
	for _, table := range entityTables {
		var n int
		if err := sqlx.GetContext(ctx, s.q, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}
