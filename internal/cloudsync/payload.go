package cloudsync

import (
	"encoding/json"
	"fmt"

	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/schema"
)

// record is one local item headed for a remote collection.
type record struct {
	id    string
	value any
}

// collection maps one dataset collection onto a remote collection.
type collection struct {
	name    string
	records func(*schema.Dataset) []record
}

func recordsOf[T any](items []T, id func(*T) string) []record {
	out := make([]record, len(items))
	for i := range items {
		out[i] = record{id: id(&items[i]), value: items[i]}
	}
	return out
}

// collections lists every structured collection in sync order. The
// singletons (finance configuration, settings) travel in the backup blob
// only.
var collections = []collection{
	{"tasks", func(d *schema.Dataset) []record { return recordsOf(d.Tasks, func(t *schema.Task) string { return t.ID }) }},
	{"events", func(d *schema.Dataset) []record { return recordsOf(d.Events, func(e *schema.Event) string { return e.ID }) }},
	{"folders", func(d *schema.Dataset) []record { return recordsOf(d.Folders, func(f *schema.Folder) string { return f.ID }) }},
	{"notes", func(d *schema.Dataset) []record { return recordsOf(d.Notes, func(n *schema.Note) string { return n.ID }) }},
	{"habits", func(d *schema.Dataset) []record { return recordsOf(d.Habits, func(h *schema.Habit) string { return h.ID }) }},
	{"habitEntries", func(d *schema.Dataset) []record {
		return recordsOf(d.HabitEntries, func(e *schema.HabitEntry) string { return e.ID })
	}},
	{"transactions", func(d *schema.Dataset) []record {
		return recordsOf(d.Transactions, func(t *schema.Transaction) string { return t.ID })
	}},
	{"contacts", func(d *schema.Dataset) []record { return recordsOf(d.Contacts, func(c *schema.Contact) string { return c.ID }) }},
	{"interactions", func(d *schema.Dataset) []record {
		return recordsOf(d.Interactions, func(i *schema.Interaction) string { return i.ID })
	}},
	{"playbooks", func(d *schema.Dataset) []record { return recordsOf(d.Playbooks, func(p *schema.Playbook) string { return p.ID }) }},
	{"shortcutFolders", func(d *schema.Dataset) []record {
		return recordsOf(d.ShortcutFolders, func(f *schema.ShortcutFolder) string { return f.ID })
	}},
	{"shortcuts", func(d *schema.Dataset) []record { return recordsOf(d.Shortcuts, func(s *schema.Shortcut) string { return s.ID }) }},
	{"palettes", func(d *schema.Dataset) []record { return recordsOf(d.Palettes, func(p *schema.Palette) string { return p.ID }) }},
	{"studySessions", func(d *schema.Dataset) []record {
		return recordsOf(d.StudySessions, func(s *schema.StudySession) string { return s.ID })
	}},
}

// CollectionNames returns the remote collection names in sync order.
func CollectionNames() []string {
	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.name
	}
	return names
}

// fieldCap returns the byte cap for a string field.
func fieldCap(key string) int {
	switch key {
	case "title", "name", "subject":
		return schema.MaxTitleLen
	case "description":
		return schema.MaxDescriptionLen
	case "content", "notes", "note", "summary":
		return schema.MaxTextLen
	}
	return schema.MaxShortLen
}

// capField bounds one payload value. Strings are truncated per field;
// lists and objects are sent as JSON text under the sub-structure cap.
func capField(key string, v any) any {
	switch x := v.(type) {
	case string:
		return schema.Truncate(x, fieldCap(key))
	case []any:
		return schema.EncodeList(x, schema.MaxJSONLen)
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil || len(b) > schema.MaxJSONLen {
			return "{}"
		}
		return string(b)
	}
	return v
}

// toDocument builds the remote document for r, owned by owner.
func toDocument(owner string, r record) (remote.Document, error) {
	raw, err := json.Marshal(r.value)
	if err != nil {
		return remote.Document{}, fmt.Errorf("encode %s: %w", r.id, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return remote.Document{}, fmt.Errorf("encode %s: %w", r.id, err)
	}
	for k, v := range fields {
		fields[k] = capField(k, v)
	}
	fields["owner"] = owner
	return remote.Document{ID: r.id, Owner: owner, Fields: fields}, nil
}
