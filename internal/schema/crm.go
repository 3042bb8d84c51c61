package schema

import (
	"fmt"
	"time"
)

// Contact pipeline stages.
const (
	StageLead    = "lead"
	StageActive  = "active"
	StageDormant = "dormant"
)

// Interaction kinds.
const (
	InteractionCall    = "call"
	InteractionEmail   = "email"
	InteractionMeeting = "meeting"
	InteractionMessage = "message"
	InteractionNote    = "note"
)

// Contact is a CRM person record. Interactions reference it by ID.
type Contact struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Company         string     `json:"company"`
	Role            string     `json:"role"`
	Stage           string     `json:"stage"`
	Tags            []string   `json:"tags"`
	Notes           string     `json:"notes"`
	LastContactedAt *time.Time `json:"lastContactedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (c *Contact) SetDefaults() {
	if c.Stage == "" {
		c.Stage = StageLead
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
}

// Validate checks if the Contact has valid field values.
func (c *Contact) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch c.Stage {
	case StageLead, StageActive, StageDormant:
	default:
		return fmt.Errorf("invalid stage %q", c.Stage)
	}
	return nil
}

// Clone returns a deep copy.
func (c Contact) Clone() Contact {
	c.Tags = cloneSlice(c.Tags)
	c.LastContactedAt = clonePtr(c.LastContactedAt)
	return c
}

// Interaction is a logged touchpoint with a Contact.
type Interaction struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contactId"`
	Kind      string    `json:"kind"`
	Summary   string    `json:"summary"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// SetDefaults applies default values for optional fields.
func (i *Interaction) SetDefaults() {
	if i.Kind == "" {
		i.Kind = InteractionNote
	}
}

// Validate checks if the Interaction has valid field values.
func (i *Interaction) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("id is required")
	}
	if i.ContactID == "" {
		return fmt.Errorf("contactId is required")
	}
	switch i.Kind {
	case InteractionCall, InteractionEmail, InteractionMeeting, InteractionMessage, InteractionNote:
	default:
		return fmt.Errorf("invalid interaction kind %q", i.Kind)
	}
	return validDate(i.Date)
}

// PlaybookStep is one checklist step of a Playbook.
type PlaybookStep struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Playbook is an ordered, reusable outreach checklist.
type Playbook struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Steps       []PlaybookStep `json:"steps"`
	Order       int            `json:"order"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (p *Playbook) SetDefaults() {
	if p.Steps == nil {
		p.Steps = []PlaybookStep{}
	}
}

// Validate checks if the Playbook has valid field values.
func (p *Playbook) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// Clone returns a deep copy.
func (p Playbook) Clone() Playbook {
	p.Steps = cloneSlice(p.Steps)
	return p
}
