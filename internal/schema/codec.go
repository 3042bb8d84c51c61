package schema

import (
	"encoding/json"
	"unicode/utf8"
)

// Size caps, in bytes of encoded text. They bound what a single field can
// contribute to a sync payload; the local store applies the same caps to
// JSON sub-fields so a record that round-trips locally also fits remotely.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
	MaxTextLen        = 20000
	MaxShortLen       = 500
	MaxJSONLen        = 8000
)

// Truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// EncodeList serializes items as a JSON array no longer than max bytes.
// When the full encoding is too long, trailing elements are dropped until
// it fits, so the result is always valid JSON and depends only on the input.
func EncodeList[T any](items []T, max int) string {
	if len(items) == 0 {
		return "[]"
	}
	for n := len(items); n > 0; n-- {
		data, err := json.Marshal(items[:n])
		if err != nil {
			return "[]"
		}
		if len(data) <= max {
			return string(data)
		}
	}
	return "[]"
}

// DecodeList parses a JSON array written by EncodeList. Empty, null,
// oversized or malformed input yields an empty, non-nil slice.
func DecodeList[T any](s string, max int) []T {
	out := []T{}
	if s == "" || s == "null" || len(s) > max {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

// FitList returns the prefix of items that EncodeList would keep.
func FitList[T any](items []T, max int) []T {
	kept := DecodeList[T](EncodeList(items, max), max)
	if len(kept) == len(items) {
		return items
	}
	return kept
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
