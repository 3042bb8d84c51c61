package schema

import (
	"fmt"
	"time"
)

// Folder groups notes. Folders nest through ParentID.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parentId"`
	Color     string    `json:"color"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (f *Folder) SetDefaults() {
	if f.Name == "" {
		f.Name = "Untitled folder"
	}
}

// Validate checks if the Folder has valid field values.
func (f *Folder) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.ParentID != nil && *f.ParentID == f.ID {
		return fmt.Errorf("folder %s cannot be its own parent", f.ID)
	}
	return nil
}

// Clone returns a deep copy.
func (f Folder) Clone() Folder {
	f.ParentID = clonePtr(f.ParentID)
	return f
}

// Note is a free-form document, optionally filed in a Folder.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FolderID  *string   `json:"folderId"`
	Tags      []string  `json:"tags"`
	Pinned    bool      `json:"pinned"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (n *Note) SetDefaults() {
	if n.Tags == nil {
		n.Tags = []string{}
	}
}

// Validate checks if the Note has valid field values.
func (n *Note) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(n.Title) > MaxTitleLen {
		return fmt.Errorf("title must be %d bytes or less (got %d)", MaxTitleLen, len(n.Title))
	}
	return nil
}

// Clone returns a deep copy.
func (n Note) Clone() Note {
	n.FolderID = clonePtr(n.FolderID)
	n.Tags = cloneSlice(n.Tags)
	return n
}
