package repo

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var shortcutFolderColumns = []string{"id", "name", "parent_id", "sort_order", "created_at", "updated_at"}

type shortcutFolderRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	ParentID  sql.NullString `db:"parent_id"`
	SortOrder int            `db:"sort_order"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

func (r shortcutFolderRow) toShortcutFolder() schema.ShortcutFolder {
	return schema.ShortcutFolder{
		ID:        r.ID,
		Name:      r.Name,
		ParentID:  nullToRef(r.ParentID),
		Order:     r.SortOrder,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

// ShortcutFolderRepo persists the shortcut folder tree.
type ShortcutFolderRepo struct {
	q Querier
}

// NewShortcutFolderRepo returns a ShortcutFolderRepo over q.
func NewShortcutFolderRepo(q Querier) *ShortcutFolderRepo {
	return &ShortcutFolderRepo{q: q}
}

// GetAll returns every shortcut folder grouped by parent and ordered.
func (r *ShortcutFolderRepo) GetAll(ctx context.Context) ([]schema.ShortcutFolder, error) {
	b := sq.Select(shortcutFolderColumns...).From("shortcut_folders").OrderBy("parent_id", "sort_order", "created_at")
	out, err := selectAll(ctx, r.q, b, shortcutFolderRow.toShortcutFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortcut folders: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces the folder keyed by id.
func (r *ShortcutFolderRepo) Upsert(ctx context.Context, f *schema.ShortcutFolder) error {
	row := shortcutFolderRow{
		ID:        f.ID,
		Name:      schema.Truncate(f.Name, schema.MaxTitleLen),
		ParentID:  refToNull(f.ParentID),
		SortOrder: f.Order,
		CreatedAt: formatTime(f.CreatedAt),
		UpdatedAt: formatTime(f.UpdatedAt),
	}
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("shortcut_folders", shortcutFolderColumns), row); err != nil {
		return fmt.Errorf("failed to upsert shortcut folder %s: %w", f.ID, err)
	}
	return nil
}

// Delete removes a folder. Its shortcuts move to the root; child folders
// are left untouched.
func (r *ShortcutFolderRepo) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.q, func(q Querier) error {
		if err := clearRef(ctx, q, "shortcuts", "folder_id", id); err != nil {
			return err
		}
		return deleteByID(ctx, q, "shortcut_folders", id)
	})
}

var shortcutColumns = []string{"id", "title", "url", "icon", "folder_id", "sort_order", "created_at", "updated_at"}

type shortcutRow struct {
	ID        string         `db:"id"`
	Title     string         `db:"title"`
	URL       string         `db:"url"`
	Icon      string         `db:"icon"`
	FolderID  sql.NullString `db:"folder_id"`
	SortOrder int            `db:"sort_order"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

func (r shortcutRow) toShortcut() schema.Shortcut {
	return schema.Shortcut{
		ID:        r.ID,
		Title:     r.Title,
		URL:       r.URL,
		Icon:      r.Icon,
		FolderID:  nullToRef(r.FolderID),
		Order:     r.SortOrder,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

// ShortcutRepo persists shortcuts.
type ShortcutRepo struct {
	q Querier
}

// NewShortcutRepo returns a ShortcutRepo over q.
func NewShortcutRepo(q Querier) *ShortcutRepo {
	return &ShortcutRepo{q: q}
}

func (r *ShortcutRepo) base() sq.SelectBuilder {
	return sq.Select(shortcutColumns...).From("shortcuts")
}

// GetAll returns every shortcut grouped by folder and ordered.
func (r *ShortcutRepo) GetAll(ctx context.Context) ([]schema.Shortcut, error) {
	out, err := selectAll(ctx, r.q, r.base().OrderBy("folder_id", "sort_order", "created_at"), shortcutRow.toShortcut)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortcuts: %w", err)
	}
	return out, nil
}

// GetInFolder returns the shortcuts in folderID; nil selects the root.
func (r *ShortcutRepo) GetInFolder(ctx context.Context, folderID *string) ([]schema.Shortcut, error) {
	out, err := selectAll(ctx, r.q, r.base().Where(refEq("folder_id", folderID)).OrderBy("sort_order"), shortcutRow.toShortcut)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortcuts in folder: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces the shortcut keyed by id.
func (r *ShortcutRepo) Upsert(ctx context.Context, s *schema.Shortcut) error {
	row := shortcutRow{
		ID:        s.ID,
		Title:     schema.Truncate(s.Title, schema.MaxTitleLen),
		URL:       schema.Truncate(s.URL, schema.MaxShortLen),
		Icon:      s.Icon,
		FolderID:  refToNull(s.FolderID),
		SortOrder: s.Order,
		CreatedAt: formatTime(s.CreatedAt),
		UpdatedAt: formatTime(s.UpdatedAt),
	}
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("shortcuts", shortcutColumns), row); err != nil {
		return fmt.Errorf("failed to upsert shortcut %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes a shortcut.
func (r *ShortcutRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "shortcuts", id)
}

var paletteColumns = []string{"id", "name", "colors", "sort_order", "created_at", "updated_at"}

type paletteRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Colors    string `db:"colors"`
	SortOrder int    `db:"sort_order"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r paletteRow) toPalette() schema.Palette {
	p := schema.Palette{
		ID:        r.ID,
		Name:      r.Name,
		Colors:    schema.DecodeList[string](r.Colors, schema.MaxJSONLen),
		Order:     r.SortOrder,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
	p.SetDefaults()
	return p
}

// PaletteRepo persists color palettes.
type PaletteRepo struct {
	q Querier
}

// NewPaletteRepo returns a PaletteRepo over q.
func NewPaletteRepo(q Querier) *PaletteRepo {
	return &PaletteRepo{q: q}
}

// GetAll returns every palette in display order.
func (r *PaletteRepo) GetAll(ctx context.Context) ([]schema.Palette, error) {
	b := sq.Select(paletteColumns...).From("palettes").OrderBy("sort_order", "created_at")
	out, err := selectAll(ctx, r.q, b, paletteRow.toPalette)
	if err != nil {
		return nil, fmt.Errorf("failed to list palettes: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces the palette keyed by id.
func (r *PaletteRepo) Upsert(ctx context.Context, p *schema.Palette) error {
	row := paletteRow{
		ID:        p.ID,
		Name:      schema.Truncate(p.Name, schema.MaxTitleLen),
		Colors:    schema.EncodeList(p.Colors, schema.MaxJSONLen),
		SortOrder: p.Order,
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("palettes", paletteColumns), row); err != nil {
		return fmt.Errorf("failed to upsert palette %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a palette.
func (r *PaletteRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "palettes", id)
}

var studySessionColumns = []string{"id", "subject", "date", "duration_minutes", "topics", "notes", "created_at"}

type studySessionRow struct {
	ID              string `db:"id"`
	Subject         string `db:"subject"`
	Date            string `db:"date"`
	DurationMinutes int    `db:"duration_minutes"`
	Topics          string `db:"topics"`
	Notes           string `db:"notes"`
	CreatedAt       string `db:"created_at"`
}

func (r studySessionRow) toStudySession() schema.StudySession {
	s := schema.StudySession{
		ID:              r.ID,
		Subject:         r.Subject,
		Date:            r.Date,
		DurationMinutes: r.DurationMinutes,
		Topics:          schema.DecodeList[string](r.Topics, schema.MaxJSONLen),
		Notes:           r.Notes,
		CreatedAt:       parseTime(r.CreatedAt),
	}
	s.SetDefaults()
	return s
}

// StudySessionRepo persists study sessions.
type StudySessionRepo struct {
	q Querier
}

// NewStudySessionRepo returns a StudySessionRepo over q.
func NewStudySessionRepo(q Querier) *StudySessionRepo {
	return &StudySessionRepo{q: q}
}

func (r *StudySessionRepo) base() sq.SelectBuilder {
	return sq.Select(studySessionColumns...).From("study_sessions")
}

// GetAll returns every session ordered by date.
func (r *StudySessionRepo) GetAll(ctx context.Context) ([]schema.StudySession, error) {
	out, err := selectAll(ctx, r.q, r.base().OrderBy("date", "created_at"), studySessionRow.toStudySession)
	if err != nil {
		return nil, fmt.Errorf("failed to list study sessions: %w", err)
	}
	return out, nil
}

// GetByDate returns the sessions logged on date.
func (r *StudySessionRepo) GetByDate(ctx context.Context, date string) ([]schema.StudySession, error) {
	out, err := selectAll(ctx, r.q, r.base().Where(sq.Eq{"date": date}).OrderBy("created_at"), studySessionRow.toStudySession)
	if err != nil {
		return nil, fmt.Errorf("failed to list study sessions for %s: %w", date, err)
	}
	return out, nil
}

// Upsert inserts or replaces the session keyed by id.
func (r *StudySessionRepo) Upsert(ctx context.Context, s *schema.StudySession) error {
	row := studySessionRow{
		ID:              s.ID,
		Subject:         schema.Truncate(s.Subject, schema.MaxTitleLen),
		Date:            s.Date,
		DurationMinutes: s.DurationMinutes,
		Topics:          schema.EncodeList(s.Topics, schema.MaxJSONLen),
		Notes:           schema.Truncate(s.Notes, schema.MaxTextLen),
		CreatedAt:       formatTime(s.CreatedAt),
	}
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("study_sessions", studySessionColumns), row); err != nil {
		return fmt.Errorf("failed to upsert study session %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes a session.
func (r *StudySessionRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "study_sessions", id)
}
