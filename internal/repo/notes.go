package repo

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var folderColumns = []string{"id", "name", "parent_id", "color", "sort_order", "created_at", "updated_at"}

type folderRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	ParentID  sql.NullString `db:"parent_id"`
	Color     string         `db:"color"`
	SortOrder int            `db:"sort_order"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

func folderToRow(f *schema.Folder) folderRow {
	return folderRow{
		ID:        f.ID,
		Name:      schema.Truncate(f.Name, schema.MaxTitleLen),
		ParentID:  refToNull(f.ParentID),
		Color:     f.Color,
		SortOrder: f.Order,
		CreatedAt: formatTime(f.CreatedAt),
		UpdatedAt: formatTime(f.UpdatedAt),
	}
}

func (r folderRow) toFolder() schema.Folder {
	return schema.Folder{
		ID:        r.ID,
		Name:      r.Name,
		ParentID:  nullToRef(r.ParentID),
		Color:     r.Color,
		Order:     r.SortOrder,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

// FolderRepo persists note folders.
type FolderRepo struct {
	q Querier
}

// NewFolderRepo returns a FolderRepo over q.
func NewFolderRepo(q Querier) *FolderRepo {
	return &FolderRepo{q: q}
}

// GetAll returns every folder grouped by parent and ordered.
func (r *FolderRepo) GetAll(ctx context.Context) ([]schema.Folder, error) {
	b := sq.Select(folderColumns...).From("folders").OrderBy("parent_id", "sort_order", "created_at")
	folders, err := selectAll(ctx, r.q, b, folderRow.toFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// Upsert inserts or replaces the folder keyed by id.
func (r *FolderRepo) Upsert(ctx context.Context, f *schema.Folder) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("folders", folderColumns), folderToRow(f)); err != nil {
		return fmt.Errorf("failed to upsert folder %s: %w", f.ID, err)
	}
	return nil
}

// Delete removes a folder. Notes filed in it move to the root; child
// folders are neither reparented nor deleted.
func (r *FolderRepo) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.q, func(q Querier) error {
		if err := clearRef(ctx, q, "notes", "folder_id", id); err != nil {
			return err
		}
		return deleteByID(ctx, q, "folders", id)
	})
}

var noteColumns = []string{"id", "title", "content", "folder_id", "tags", "pinned", "sort_order", "created_at", "updated_at"}

type noteRow struct {
	ID        string         `db:"id"`
	Title     string         `db:"title"`
	Content   string         `db:"content"`
	FolderID  sql.NullString `db:"folder_id"`
	Tags      string         `db:"tags"`
	Pinned    bool           `db:"pinned"`
	SortOrder int            `db:"sort_order"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

func noteToRow(n *schema.Note) noteRow {
	return noteRow{
		ID:        n.ID,
		Title:     schema.Truncate(n.Title, schema.MaxTitleLen),
		Content:   schema.Truncate(n.Content, schema.MaxTextLen),
		FolderID:  refToNull(n.FolderID),
		Tags:      schema.EncodeList(n.Tags, schema.MaxJSONLen),
		Pinned:    n.Pinned,
		SortOrder: n.Order,
		CreatedAt: formatTime(n.CreatedAt),
		UpdatedAt: formatTime(n.UpdatedAt),
	}
}

func (r noteRow) toNote() schema.Note {
	n := schema.Note{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		FolderID:  nullToRef(r.FolderID),
		Tags:      schema.DecodeList[string](r.Tags, schema.MaxJSONLen),
		Pinned:    r.Pinned,
		Order:     r.SortOrder,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
	n.SetDefaults()
	return n
}

// NoteRepo persists notes.
type NoteRepo struct {
	q Querier
}

// NewNoteRepo returns a NoteRepo over q.
func NewNoteRepo(q Querier) *NoteRepo {
	return &NoteRepo{q: q}
}

func (r *NoteRepo) base() sq.SelectBuilder {
	return sq.Select(noteColumns...).From("notes")
}

// GetAll returns every note grouped by folder and ordered.
func (r *NoteRepo) GetAll(ctx context.Context) ([]schema.Note, error) {
	notes, err := selectAll(ctx, r.q, r.base().OrderBy("folder_id", "sort_order", "created_at"), noteRow.toNote)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// GetInFolder returns the notes filed in folderID; nil selects the root.
// Pinned notes sort first.
func (r *NoteRepo) GetInFolder(ctx context.Context, folderID *string) ([]schema.Note, error) {
	b := r.base().Where(refEq("folder_id", folderID)).OrderBy("pinned DESC", "sort_order", "created_at")
	notes, err := selectAll(ctx, r.q, b, noteRow.toNote)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes in folder: %w", err)
	}
	return notes, nil
}

// Upsert inserts or replaces the note keyed by id.
func (r *NoteRepo) Upsert(ctx context.Context, n *schema.Note) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("notes", noteColumns), noteToRow(n)); err != nil {
		return fmt.Errorf("failed to upsert note %s: %w", n.ID, err)
	}
	return nil
}

// Delete removes a note.
func (r *NoteRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "notes", id)
}
