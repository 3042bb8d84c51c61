package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDue(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		in        string
		wantDate  string
		wantClock string
	}{
		{"", "", ""},
		{"2026-10-31", "2026-10-31", ""},
		{"2026-10-31 18:15", "2026-10-31", "18:15"},
		{"tomorrow", "2026-10-15", ""},
		{"tomorrow at 5pm", "2026-10-15", "17:00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			date, clock, err := parseDue(tt.in, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDate, date)
			assert.Equal(t, tt.wantClock, clock)
		})
	}

	_, _, err := parseDue("whenever", now)
	assert.Error(t, err)
}

func TestParseDay(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	for in, want := range map[string]int{"0": 0, "6": 6, "mon": 1, "Friday": 5, "sat": 6, "today": 3} {
		got, err := parseDay(in, now)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"7", "-1", "mo", "someday"} {
		_, err := parseDay(in, now)
		assert.Error(t, err, in)
	}
}
