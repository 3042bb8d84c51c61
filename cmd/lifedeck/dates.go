package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDue turns "2026-10-31", "tomorrow 5pm" or "next friday" into a
// date and, when the text names one, a time of day.
func parseDue(text string, now time.Time) (date, clock string, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", nil
	}
	if t, err := time.ParseInLocation("2006-01-02", text, now.Location()); err == nil {
		return t.Format("2006-01-02"), "", nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", text, now.Location()); err == nil {
		return t.Format("2006-01-02"), t.Format("15:04"), nil
	}

	r, err := dateParser.Parse(text, now)
	if err != nil {
		return "", "", fmt.Errorf("parse date %q: %w", text, err)
	}
	if r == nil {
		return "", "", fmt.Errorf("could not understand date %q", text)
	}
	date = r.Time.Format("2006-01-02")
	if r.Time.Hour() != now.Hour() || r.Time.Minute() != now.Minute() {
		clock = r.Time.Format("15:04")
	}
	return date, clock, nil
}

// parseDay accepts a weekday name ("mon", "Monday") or 0-6 with 0=Sunday.
// "today" resolves against now.
func parseDay(s string, now time.Time) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "today" {
		return int(now.Weekday()), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("day must be between 0 and 6 (got %d)", n)
		}
		return n, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return int(d), nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", s)
}
