package schema

import (
	"fmt"
	"time"
)

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Task priorities, P1 = most urgent.
const (
	PriorityP1 = "P1"
	PriorityP2 = "P2"
	PriorityP3 = "P3"
	PriorityP4 = "P4"
)

// Planner periods. Together with a weekday they name a placement cell.
const (
	PeriodMorning   = "morning"
	PeriodAfternoon = "afternoon"
	PeriodEvening   = "evening"
)

// Subtask is a checklist item embedded in a Task.
type Subtask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Task is a to-do item. It sits in at most one planner cell (Day, Period);
// a nil Day and nil Period means the task is in the backlog. Date and Time
// are an optional due date independent of the planner cell.
type Task struct {
	// ===== Core Identification =====
	ID string `json:"id"`

	// ===== Task Content =====
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`   // todo, in_progress, done
	Priority    string `json:"priority"` // P1..P4

	// ===== Placement =====
	Day    *int    `json:"day"`    // 0=Sunday .. 6=Saturday
	Period *string `json:"period"` // morning, afternoon, evening
	Order  int     `json:"order"`  // position inside the (Day, Period) cell

	// ===== Due date =====
	Date string `json:"date"` // 2006-01-02, optional
	Time string `json:"time"` // 15:04, optional

	// ===== Classification =====
	Tags     []string  `json:"tags"`
	Subtasks []Subtask `json:"subtasks"`

	// ===== Timestamps =====
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityP3
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(t.Title) > MaxTitleLen {
		return fmt.Errorf("title must be %d bytes or less (got %d)", MaxTitleLen, len(t.Title))
	}
	switch t.Status {
	case StatusTodo, StatusInProgress, StatusDone:
	default:
		return fmt.Errorf("invalid status %q", t.Status)
	}
	switch t.Priority {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4:
	default:
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if t.Day != nil && (*t.Day < 0 || *t.Day > 6) {
		return fmt.Errorf("day must be between 0 and 6 (got %d)", *t.Day)
	}
	if t.Period != nil {
		switch *t.Period {
		case PeriodMorning, PeriodAfternoon, PeriodEvening:
		default:
			return fmt.Errorf("invalid period %q", *t.Period)
		}
	}
	if err := validDate(t.Date); err != nil {
		return err
	}
	return validClock(t.Time)
}

// InBacklog reports whether the task has no planner cell.
func (t *Task) InBacklog() bool {
	return t.Day == nil && t.Period == nil
}

// InCell reports whether the task is placed in the given cell. Nil
// arguments match the backlog dimension.
func (t *Task) InCell(day *int, period *string) bool {
	return equalIntPtr(t.Day, day) && equalStringPtr(t.Period, period)
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	t.Day = clonePtr(t.Day)
	t.Period = clonePtr(t.Period)
	t.Tags = cloneSlice(t.Tags)
	t.Subtasks = cloneSlice(t.Subtasks)
	t.CompletedAt = clonePtr(t.CompletedAt)
	return t
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EqualRef compares two nullable references.
func EqualRef(a, b *string) bool {
	return equalStringPtr(a, b)
}

func validDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return nil
}

func validClock(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(ClockLayout, s); err != nil {
		return fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return nil
}

// Layouts for the wall-clock string fields.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)
