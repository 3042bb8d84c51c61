package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var shortcutFolderKind = kind[schema.ShortcutFolder]{
	name:   "shortcut folder",
	items:  func(s *Snapshot) *[]schema.ShortcutFolder { return &s.ShortcutFolders },
	id:     func(f *schema.ShortcutFolder) string { return f.ID },
	clone:  schema.ShortcutFolder.Clone,
	upsert: func(ctx context.Context, r *repo.Set, f *schema.ShortcutFolder) error { return r.ShortcutFolders.Upsert(ctx, f) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.ShortcutFolders.Delete(ctx, id) },
}

func checkShortcutFolderRef(folders []schema.ShortcutFolder, ref *string) error {
	if ref != nil && indexOf(folders, shortcutFolderKind.id, *ref) < 0 {
		return notFound(shortcutFolderKind.name, *ref)
	}
	return nil
}

// AddShortcutFolder creates a shortcut folder, last among its siblings.
func (s *Store) AddShortcutFolder(ctx context.Context, draft schema.ShortcutFolder) (schema.ShortcutFolder, error) {
	return addItem(ctx, s, &shortcutFolderKind, draft.Clone(), func(next *Snapshot, f *schema.ShortcutFolder, now time.Time) error {
		f.ID = s.newID()
		f.CreatedAt, f.UpdatedAt = now, now
		if err := checkShortcutFolderRef(next.ShortcutFolders, f.ParentID); err != nil {
			return err
		}
		f.Order = nextOrder(next.ShortcutFolders, func(o *schema.ShortcutFolder) bool { return schema.EqualRef(o.ParentID, f.ParentID) }, func(o *schema.ShortcutFolder) int { return o.Order })
		return f.Validate()
	})
}

// UpdateShortcutFolder applies fn to the shortcut folder with id.
func (s *Store) UpdateShortcutFolder(ctx context.Context, id string, fn func(*schema.ShortcutFolder)) (schema.ShortcutFolder, error) {
	return updateItem(ctx, s, &shortcutFolderKind, id, fn, func(next *Snapshot, old, f *schema.ShortcutFolder, now time.Time) error {
		f.ID, f.CreatedAt, f.UpdatedAt = old.ID, old.CreatedAt, now
		if !schema.EqualRef(old.ParentID, f.ParentID) {
			if err := checkShortcutFolderRef(next.ShortcutFolders, f.ParentID); err != nil {
				return err
			}
		}
		return f.Validate()
	})
}

// DeleteShortcutFolder removes the folder with id. Its shortcuts move to
// the root; child folders are left as they are.
func (s *Store) DeleteShortcutFolder(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &shortcutFolderKind, id, func(next *Snapshot, _ time.Time) {
		next.Shortcuts = mapWhere(next.Shortcuts,
			func(sc *schema.Shortcut) bool { return sc.FolderID != nil && *sc.FolderID == id },
			func(sc *schema.Shortcut) { sc.FolderID = nil })
	})
}

var shortcutKind = kind[schema.Shortcut]{
	name:   "shortcut",
	items:  func(s *Snapshot) *[]schema.Shortcut { return &s.Shortcuts },
	id:     func(sc *schema.Shortcut) string { return sc.ID },
	clone:  schema.Shortcut.Clone,
	upsert: func(ctx context.Context, r *repo.Set, sc *schema.Shortcut) error { return r.Shortcuts.Upsert(ctx, sc) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Shortcuts.Delete(ctx, id) },
}

// AddShortcut creates a shortcut, last in its folder.
func (s *Store) AddShortcut(ctx context.Context, draft schema.Shortcut) (schema.Shortcut, error) {
	return addItem(ctx, s, &shortcutKind, draft.Clone(), func(next *Snapshot, sc *schema.Shortcut, now time.Time) error {
		sc.ID = s.newID()
		sc.CreatedAt, sc.UpdatedAt = now, now
		if err := checkShortcutFolderRef(next.ShortcutFolders, sc.FolderID); err != nil {
			return err
		}
		sc.Order = nextOrder(next.Shortcuts, func(o *schema.Shortcut) bool { return schema.EqualRef(o.FolderID, sc.FolderID) }, func(o *schema.Shortcut) int { return o.Order })
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("invalid shortcut: %w", err)
		}
		return nil
	})
}

// UpdateShortcut applies fn to the shortcut with id.
func (s *Store) UpdateShortcut(ctx context.Context, id string, fn func(*schema.Shortcut)) (schema.Shortcut, error) {
	return updateItem(ctx, s, &shortcutKind, id, fn, func(next *Snapshot, old, sc *schema.Shortcut, now time.Time) error {
		sc.ID, sc.CreatedAt, sc.UpdatedAt = old.ID, old.CreatedAt, now
		if err := checkShortcutFolderRef(next.ShortcutFolders, sc.FolderID); err != nil {
			return err
		}
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("invalid shortcut: %w", err)
		}
		return nil
	})
}

// DeleteShortcut removes the shortcut with id.
func (s *Store) DeleteShortcut(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &shortcutKind, id, nil)
}

var paletteKind = kind[schema.Palette]{
	name:   "palette",
	items:  func(s *Snapshot) *[]schema.Palette { return &s.Palettes },
	id:     func(p *schema.Palette) string { return p.ID },
	clone:  schema.Palette.Clone,
	upsert: func(ctx context.Context, r *repo.Set, p *schema.Palette) error { return r.Palettes.Upsert(ctx, p) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Palettes.Delete(ctx, id) },
}

// AddPalette creates a palette, last in display order.
func (s *Store) AddPalette(ctx context.Context, draft schema.Palette) (schema.Palette, error) {
	return addItem(ctx, s, &paletteKind, draft.Clone(), func(next *Snapshot, p *schema.Palette, now time.Time) error {
		p.ID = s.newID()
		p.SetDefaults()
		p.CreatedAt, p.UpdatedAt = now, now
		p.Order = nextOrder(next.Palettes, func(*schema.Palette) bool { return true }, func(o *schema.Palette) int { return o.Order })
		return p.Validate()
	})
}

// UpdatePalette applies fn to the palette with id.
func (s *Store) UpdatePalette(ctx context.Context, id string, fn func(*schema.Palette)) (schema.Palette, error) {
	return updateItem(ctx, s, &paletteKind, id, fn, func(_ *Snapshot, old, p *schema.Palette, now time.Time) error {
		p.ID, p.CreatedAt, p.UpdatedAt = old.ID, old.CreatedAt, now
		p.SetDefaults()
		return p.Validate()
	})
}

// DeletePalette removes the palette with id.
func (s *Store) DeletePalette(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &paletteKind, id, nil)
}

var studySessionKind = kind[schema.StudySession]{
	name:   "study session",
	items:  func(s *Snapshot) *[]schema.StudySession { return &s.StudySessions },
	id:     func(ss *schema.StudySession) string { return ss.ID },
	clone:  schema.StudySession.Clone,
	upsert: func(ctx context.Context, r *repo.Set, ss *schema.StudySession) error { return r.StudySessions.Upsert(ctx, ss) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.StudySessions.Delete(ctx, id) },
}

// AddStudySession logs a study session. An empty date means today.
func (s *Store) AddStudySession(ctx context.Context, draft schema.StudySession) (schema.StudySession, error) {
	return addItem(ctx, s, &studySessionKind, draft.Clone(), func(_ *Snapshot, ss *schema.StudySession, now time.Time) error {
		ss.ID = s.newID()
		ss.SetDefaults()
		ss.CreatedAt = now
		if ss.Date == "" {
			ss.Date = now.Format(schema.DateLayout)
		}
		if err := ss.Validate(); err != nil {
			return fmt.Errorf("invalid study session: %w", err)
		}
		return nil
	})
}

// UpdateStudySession applies fn to the session with id.
func (s *Store) UpdateStudySession(ctx context.Context, id string, fn func(*schema.StudySession)) (schema.StudySession, error) {
	return updateItem(ctx, s, &studySessionKind, id, fn, func(_ *Snapshot, old, ss *schema.StudySession, _ time.Time) error {
		ss.ID, ss.CreatedAt = old.ID, old.CreatedAt
		ss.SetDefaults()
		if err := ss.Validate(); err != nil {
			return fmt.Errorf("invalid study session: %w", err)
		}
		return nil
	})
}

// DeleteStudySession removes the session with id.
func (s *Store) DeleteStudySession(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &studySessionKind, id, nil)
}
