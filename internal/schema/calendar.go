package schema

import (
	"fmt"
	"time"
)

// Recurrence rules for calendar events.
const (
	RecurNone    = "none"
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
	RecurYearly  = "yearly"
)

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`      // 2006-01-02
	StartTime   string    `json:"startTime"` // 15:04, empty when AllDay
	EndTime     string    `json:"endTime"`
	AllDay      bool      `json:"allDay"`
	Location    string    `json:"location"`
	Color       string    `json:"color"`
	Recurrence  string    `json:"recurrence"`
	Reminders   []int     `json:"reminders"` // minutes before start
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (e *Event) SetDefaults() {
	if e.Recurrence == "" {
		e.Recurrence = RecurNone
	}
	if e.Reminders == nil {
		e.Reminders = []int{}
	}
}

// Validate checks if the Event has valid field values.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(e.Title) > MaxTitleLen {
		return fmt.Errorf("title must be %d bytes or less (got %d)", MaxTitleLen, len(e.Title))
	}
	switch e.Recurrence {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
	default:
		return fmt.Errorf("invalid recurrence %q", e.Recurrence)
	}
	if err := validDate(e.Date); err != nil {
		return err
	}
	if err := validClock(e.StartTime); err != nil {
		return err
	}
	if err := validClock(e.EndTime); err != nil {
		return err
	}
	if e.StartTime != "" && e.EndTime != "" && e.EndTime < e.StartTime {
		return fmt.Errorf("end time %s is before start time %s", e.EndTime, e.StartTime)
	}
	return nil
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	e.Reminders = cloneSlice(e.Reminders)
	return e
}
