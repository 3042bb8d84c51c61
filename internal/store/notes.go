package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var eventKind = kind[schema.Event]{
	name:   "event",
	items:  func(s *Snapshot) *[]schema.Event { return &s.Events },
	id:     func(e *schema.Event) string { return e.ID },
	clone:  schema.Event.Clone,
	upsert: func(ctx context.Context, r *repo.Set, e *schema.Event) error { return r.Events.Upsert(ctx, e) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Events.Delete(ctx, id) },
}

// AddEvent creates a calendar event from draft.
func (s *Store) AddEvent(ctx context.Context, draft schema.Event) (schema.Event, error) {
	return addItem(ctx, s, &eventKind, draft.Clone(), func(_ *Snapshot, e *schema.Event, now time.Time) error {
		e.ID = s.newID()
		e.SetDefaults()
		e.CreatedAt, e.UpdatedAt = now, now
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid event: %w", err)
		}
		return nil
	})
}

// UpdateEvent applies fn to the event with id.
func (s *Store) UpdateEvent(ctx context.Context, id string, fn func(*schema.Event)) (schema.Event, error) {
	return updateItem(ctx, s, &eventKind, id, fn, func(_ *Snapshot, old, e *schema.Event, now time.Time) error {
		e.ID, e.CreatedAt, e.UpdatedAt = old.ID, old.CreatedAt, now
		e.SetDefaults()
		if err := e.Validate(); err != nil {
			return fmt.Errorf("invalid event: %w", err)
		}
		return nil
	})
}

// DeleteEvent removes the event with id.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &eventKind, id, nil)
}

var folderKind = kind[schema.Folder]{
	name:   "folder",
	items:  func(s *Snapshot) *[]schema.Folder { return &s.Folders },
	id:     func(f *schema.Folder) string { return f.ID },
	clone:  schema.Folder.Clone,
	upsert: func(ctx context.Context, r *repo.Set, f *schema.Folder) error { return r.Folders.Upsert(ctx, f) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Folders.Delete(ctx, id) },
}

// AddFolder creates a note folder, last among its siblings.
func (s *Store) AddFolder(ctx context.Context, draft schema.Folder) (schema.Folder, error) {
	return addItem(ctx, s, &folderKind, draft.Clone(), func(next *Snapshot, f *schema.Folder, now time.Time) error {
		f.ID = s.newID()
		f.SetDefaults()
		f.CreatedAt, f.UpdatedAt = now, now
		if err := checkFolderRef(next.Folders, f.ParentID); err != nil {
			return err
		}
		f.Order = nextOrder(next.Folders, func(o *schema.Folder) bool { return schema.EqualRef(o.ParentID, f.ParentID) }, func(o *schema.Folder) int { return o.Order })
		return f.Validate()
	})
}

// UpdateFolder applies fn to the folder with id. Re-parenting under one of
// its own descendants is rejected.
func (s *Store) UpdateFolder(ctx context.Context, id string, fn func(*schema.Folder)) (schema.Folder, error) {
	return updateItem(ctx, s, &folderKind, id, fn, func(next *Snapshot, old, f *schema.Folder, now time.Time) error {
		f.ID, f.CreatedAt, f.UpdatedAt = old.ID, old.CreatedAt, now
		f.SetDefaults()
		if !schema.EqualRef(old.ParentID, f.ParentID) {
			if err := checkFolderRef(next.Folders, f.ParentID); err != nil {
				return err
			}
		}
		if f.ParentID != nil && createsCycle(next.Folders, f.ID, *f.ParentID) {
			return fmt.Errorf("invalid folder: moving %s under %s creates a cycle", f.ID, *f.ParentID)
		}
		return f.Validate()
	})
}

// DeleteFolder removes the folder with id. Its notes move to the root;
// child folders keep their now dangling parent reference.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &folderKind, id, func(next *Snapshot, now time.Time) {
		next.Notes = mapWhere(next.Notes,
			func(n *schema.Note) bool { return n.FolderID != nil && *n.FolderID == id },
			func(n *schema.Note) { n.FolderID = nil })
	})
}

func checkFolderRef(folders []schema.Folder, ref *string) error {
	if ref == nil {
		return nil
	}
	if indexOf(folders, folderKind.id, *ref) < 0 {
		return notFound(folderKind.name, *ref)
	}
	return nil
}

// createsCycle reports whether parent is id or one of id's descendants.
func createsCycle(folders []schema.Folder, id, parent string) bool {
	parents := make(map[string]*string, len(folders))
	for _, f := range folders {
		parents[f.ID] = f.ParentID
	}
	seen := map[string]bool{}
	for cur := &parent; cur != nil; cur = parents[*cur] {
		if *cur == id {
			return true
		}
		if seen[*cur] {
			return false
		}
		seen[*cur] = true
	}
	return false
}

var noteKind = kind[schema.Note]{
	name:   "note",
	items:  func(s *Snapshot) *[]schema.Note { return &s.Notes },
	id:     func(n *schema.Note) string { return n.ID },
	clone:  schema.Note.Clone,
	upsert: func(ctx context.Context, r *repo.Set, n *schema.Note) error { return r.Notes.Upsert(ctx, n) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Notes.Delete(ctx, id) },
}

// AddNote creates a note, last in its folder.
func (s *Store) AddNote(ctx context.Context, draft schema.Note) (schema.Note, error) {
	return addItem(ctx, s, &noteKind, draft.Clone(), func(next *Snapshot, n *schema.Note, now time.Time) error {
		n.ID = s.newID()
		n.SetDefaults()
		n.CreatedAt, n.UpdatedAt = now, now
		if err := checkFolderRef(next.Folders, n.FolderID); err != nil {
			return err
		}
		n.Order = nextOrder(next.Notes, func(o *schema.Note) bool { return schema.EqualRef(o.FolderID, n.FolderID) }, func(o *schema.Note) int { return o.Order })
		if err := n.Validate(); err != nil {
			return fmt.Errorf("invalid note: %w", err)
		}
		return nil
	})
}

// UpdateNote applies fn to the note with id.
func (s *Store) UpdateNote(ctx context.Context, id string, fn func(*schema.Note)) (schema.Note, error) {
	return updateItem(ctx, s, &noteKind, id, fn, func(next *Snapshot, old, n *schema.Note, now time.Time) error {
		n.ID, n.CreatedAt, n.UpdatedAt = old.ID, old.CreatedAt, now
		n.SetDefaults()
		if err := checkFolderRef(next.Folders, n.FolderID); err != nil {
			return err
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("invalid note: %w", err)
		}
		return nil
	})
}

// DeleteNote removes the note with id.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &noteKind, id, nil)
}
