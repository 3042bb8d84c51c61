package schema

import (
	"fmt"
	"time"
)

// ShortcutFolder is a node in the shortcut tree.
type ShortcutFolder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parentId"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks if the ShortcutFolder has valid field values.
func (f *ShortcutFolder) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.ParentID != nil && *f.ParentID == f.ID {
		return fmt.Errorf("folder %s cannot be its own parent", f.ID)
	}
	return nil
}

// Clone returns a deep copy.
func (f ShortcutFolder) Clone() ShortcutFolder {
	f.ParentID = clonePtr(f.ParentID)
	return f
}

// Shortcut is a saved link, optionally filed in a ShortcutFolder.
type Shortcut struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Icon      string    `json:"icon"`
	FolderID  *string   `json:"folderId"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks if the Shortcut has valid field values.
func (s *Shortcut) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(s.URL) > MaxShortLen {
		return fmt.Errorf("url must be %d bytes or less (got %d)", MaxShortLen, len(s.URL))
	}
	return nil
}

// Clone returns a deep copy.
func (s Shortcut) Clone() Shortcut {
	s.FolderID = clonePtr(s.FolderID)
	return s
}

// Palette is a named list of colors.
type Palette struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Colors    []string  `json:"colors"` // #rrggbb
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (p *Palette) SetDefaults() {
	if p.Colors == nil {
		p.Colors = []string{}
	}
}

// Validate checks if the Palette has valid field values.
func (p *Palette) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// Clone returns a deep copy.
func (p Palette) Clone() Palette {
	p.Colors = cloneSlice(p.Colors)
	return p
}

// StudySession logs time spent studying on a date.
type StudySession struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	Date            string    `json:"date"`
	DurationMinutes int       `json:"durationMinutes"`
	Topics          []string  `json:"topics"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SetDefaults applies default values for optional fields.
func (s *StudySession) SetDefaults() {
	if s.Topics == nil {
		s.Topics = []string{}
	}
}

// Validate checks if the StudySession has valid field values.
func (s *StudySession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.DurationMinutes < 0 {
		return fmt.Errorf("duration must not be negative (got %d)", s.DurationMinutes)
	}
	return validDate(s.Date)
}

// Clone returns a deep copy.
func (s StudySession) Clone() StudySession {
	s.Topics = cloneSlice(s.Topics)
	return s
}

// Themes.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Settings holds singleton preferences persisted in the key/value table.
type Settings struct {
	Theme     string `json:"theme"`
	WeekStart int    `json:"weekStart"` // 0=Sunday, 1=Monday
}

// DefaultSettings returns the preferences used on first start.
func DefaultSettings() Settings {
	return Settings{Theme: ThemeSystem, WeekStart: 1}
}

// Validate checks if the Settings have valid field values.
func (s *Settings) Validate() error {
	switch s.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("invalid theme %q", s.Theme)
	}
	if s.WeekStart < 0 || s.WeekStart > 6 {
		return fmt.Errorf("week start must be between 0 and 6 (got %d)", s.WeekStart)
	}
	return nil
}
