// Package schema defines the entity shapes held by the lifedeck store.
//
// # Overview
//
// Every entity family (tasks, calendar events, notes, habits, finances,
// CRM, shortcuts, palettes, study sessions, settings) has a flat struct
// with JSON tags matching the backup payload. Structured sub-fields (tags,
// subtasks, reminders, ...) are plain slices here; the repository layer
// encodes them as JSON text with EncodeList/DecodeList.
//
// # Lifecycle
//
// The store assigns ID, CreatedAt and UpdatedAt. SetDefaults fills zero
// fields with the documented defaults, Validate rejects values the store
// must never persist, and Clone produces a deep copy so snapshots handed
// to subscribers are never aliased by later mutations.
//
// # Dates
//
// Calendar dates are "2006-01-02" strings and times of day are "15:04"
// strings: they are wall-clock values with no time zone and compare
// correctly as text. Timestamps are time.Time in UTC.
//
// # Money
//
// Amounts are int64 minor units (cents) so summing never drifts.
package schema
