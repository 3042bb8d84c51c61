package schema

import (
	"fmt"
	"time"
)

// Habit frequencies.
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

// Habit is a recurring behaviour tracked through HabitEntry rows.
type Habit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	Frequency   string    `json:"frequency"`
	TargetDays  []int     `json:"targetDays"` // weekdays, 0=Sunday
	Archived    bool      `json:"archived"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (h *Habit) SetDefaults() {
	if h.Frequency == "" {
		h.Frequency = FrequencyDaily
	}
	if h.TargetDays == nil {
		h.TargetDays = []int{}
	}
}

// Validate checks if the Habit has valid field values.
func (h *Habit) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch h.Frequency {
	case FrequencyDaily, FrequencyWeekly:
	default:
		return fmt.Errorf("invalid frequency %q", h.Frequency)
	}
	for _, d := range h.TargetDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("target day must be between 0 and 6 (got %d)", d)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (h Habit) Clone() Habit {
	h.TargetDays = cloneSlice(h.TargetDays)
	return h
}

// HabitEntry records a habit on one date. At most one entry exists per
// (HabitID, Date).
type HabitEntry struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habitId"`
	Date      string    `json:"date"`
	Completed bool      `json:"completed"`
	Value     float64   `json:"value"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks if the HabitEntry has valid field values.
func (e *HabitEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.HabitID == "" {
		return fmt.Errorf("habitId is required")
	}
	if e.Date == "" {
		return fmt.Errorf("date is required")
	}
	return validDate(e.Date)
}
