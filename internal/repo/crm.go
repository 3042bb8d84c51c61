package repo

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var contactColumns = []string{
	"id", "name", "email", "phone", "company", "role", "stage", "tags", "notes",
	"last_contacted_at", "created_at", "updated_at",
}

type contactRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Email           string         `db:"email"`
	Phone           string         `db:"phone"`
	Company         string         `db:"company"`
	Role            string         `db:"role"`
	Stage           string         `db:"stage"`
	Tags            string         `db:"tags"`
	Notes           string         `db:"notes"`
	LastContactedAt sql.NullString `db:"last_contacted_at"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       string         `db:"updated_at"`
}

func contactToRow(c *schema.Contact) contactRow {
	return contactRow{
		ID:              c.ID,
		Name:            schema.Truncate(c.Name, schema.MaxTitleLen),
		Email:           schema.Truncate(c.Email, schema.MaxShortLen),
		Phone:           schema.Truncate(c.Phone, schema.MaxShortLen),
		Company:         schema.Truncate(c.Company, schema.MaxShortLen),
		Role:            schema.Truncate(c.Role, schema.MaxShortLen),
		Stage:           c.Stage,
		Tags:            schema.EncodeList(c.Tags, schema.MaxJSONLen),
		Notes:           schema.Truncate(c.Notes, schema.MaxTextLen),
		LastContactedAt: timeToNullString(c.LastContactedAt),
		CreatedAt:       formatTime(c.CreatedAt),
		UpdatedAt:       formatTime(c.UpdatedAt),
	}
}

func (r contactRow) toContact() schema.Contact {
	c := schema.Contact{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		Company:         r.Company,
		Role:            r.Role,
		Stage:           r.Stage,
		Tags:            schema.DecodeList[string](r.Tags, schema.MaxJSONLen),
		Notes:           r.Notes,
		LastContactedAt: nullStringToTime(r.LastContactedAt),
		CreatedAt:       parseTime(r.CreatedAt),
		UpdatedAt:       parseTime(r.UpdatedAt),
	}
	c.SetDefaults()
	return c
}

// ContactRepo persists CRM contacts.
type ContactRepo struct {
	q Querier
}

// NewContactRepo returns a ContactRepo over q.
func NewContactRepo(q Querier) *ContactRepo {
	return &ContactRepo{q: q}
}

func (r *ContactRepo) base() sq.SelectBuilder {
	return sq.Select(contactColumns...).From("contacts")
}

// GetAll returns every contact ordered by name.
func (r *ContactRepo) GetAll(ctx context.Context) ([]schema.Contact, error) {
	contacts, err := selectAll(ctx, r.q, r.base().OrderBy("name COLLATE NOCASE", "created_at"), contactRow.toContact)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// GetByStage returns the contacts in one pipeline stage.
func (r *ContactRepo) GetByStage(ctx context.Context, stage string) ([]schema.Contact, error) {
	b := r.base().Where(sq.Eq{"stage": stage}).OrderBy("name COLLATE NOCASE")
	contacts, err := selectAll(ctx, r.q, b, contactRow.toContact)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s contacts: %w", stage, err)
	}
	return contacts, nil
}

// Upsert inserts or replaces the contact keyed by id.
func (r *ContactRepo) Upsert(ctx context.Context, c *schema.Contact) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("contacts", contactColumns), contactToRow(c)); err != nil {
		return fmt.Errorf("failed to upsert contact %s: %w", c.ID, err)
	}
	return nil
}

// Delete removes a contact and its interactions.
func (r *ContactRepo) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.q, func(q Querier) error {
		query, args, err := sq.Delete("interactions").Where(sq.Eq{"contact_id": id}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete interactions of contact %s: %w", id, err)
		}
		return deleteByID(ctx, q, "contacts", id)
	})
}

var interactionColumns = []string{"id", "contact_id", "kind", "summary", "date", "created_at"}

type interactionRow struct {
	ID        string `db:"id"`
	ContactID string `db:"contact_id"`
	Kind      string `db:"kind"`
	Summary   string `db:"summary"`
	Date      string `db:"date"`
	CreatedAt string `db:"created_at"`
}

func interactionToRow(i *schema.Interaction) interactionRow {
	return interactionRow{
		ID:        i.ID,
		ContactID: i.ContactID,
		Kind:      i.Kind,
		Summary:   schema.Truncate(i.Summary, schema.MaxDescriptionLen),
		Date:      i.Date,
		CreatedAt: formatTime(i.CreatedAt),
	}
}

func (r interactionRow) toInteraction() schema.Interaction {
	i := schema.Interaction{
		ID:        r.ID,
		ContactID: r.ContactID,
		Kind:      r.Kind,
		Summary:   r.Summary,
		Date:      r.Date,
		CreatedAt: parseTime(r.CreatedAt),
	}
	i.SetDefaults()
	return i
}

// InteractionRepo persists CRM interactions.
type InteractionRepo struct {
	q Querier
}

// NewInteractionRepo returns an InteractionRepo over q.
func NewInteractionRepo(q Querier) *InteractionRepo {
	return &InteractionRepo{q: q}
}

func (r *InteractionRepo) base() sq.SelectBuilder {
	return sq.Select(interactionColumns...).From("interactions")
}

// GetAll returns every interaction, newest first.
func (r *InteractionRepo) GetAll(ctx context.Context) ([]schema.Interaction, error) {
	out, err := selectAll(ctx, r.q, r.base().OrderBy("date DESC", "created_at DESC"), interactionRow.toInteraction)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	return out, nil
}

// GetForContact returns one contact's interactions, newest first.
func (r *InteractionRepo) GetForContact(ctx context.Context, contactID string) ([]schema.Interaction, error) {
	b := r.base().Where(sq.Eq{"contact_id": contactID}).OrderBy("date DESC", "created_at DESC")
	out, err := selectAll(ctx, r.q, b, interactionRow.toInteraction)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions of contact %s: %w", contactID, err)
	}
	return out, nil
}

// Upsert inserts or replaces the interaction keyed by id.
func (r *InteractionRepo) Upsert(ctx context.Context, i *schema.Interaction) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("interactions", interactionColumns), interactionToRow(i)); err != nil {
		return fmt.Errorf("failed to upsert interaction %s: %w", i.ID, err)
	}
	return nil
}

// Delete removes an interaction.
func (r *InteractionRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "interactions", id)
}

var playbookColumns = []string{"id", "title", "description", "steps", "sort_order", "created_at", "updated_at"}

type playbookRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Steps       string `db:"steps"`
	SortOrder   int    `db:"sort_order"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func playbookToRow(p *schema.Playbook) playbookRow {
	return playbookRow{
		ID:          p.ID,
		Title:       schema.Truncate(p.Title, schema.MaxTitleLen),
		Description: schema.Truncate(p.Description, schema.MaxDescriptionLen),
		Steps:       schema.EncodeList(p.Steps, schema.MaxJSONLen),
		SortOrder:   p.Order,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

func (r playbookRow) toPlaybook() schema.Playbook {
	p := schema.Playbook{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Steps:       schema.DecodeList[schema.PlaybookStep](r.Steps, schema.MaxJSONLen),
		Order:       r.SortOrder,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	p.SetDefaults()
	return p
}

// PlaybookRepo persists playbooks.
type PlaybookRepo struct {
	q Querier
}

// NewPlaybookRepo returns a PlaybookRepo over q.
func NewPlaybookRepo(q Querier) *PlaybookRepo {
	return &PlaybookRepo{q: q}
}

// GetAll returns every playbook in display order.
func (r *PlaybookRepo) GetAll(ctx context.Context) ([]schema.Playbook, error) {
	b := sq.Select(playbookColumns...).From("playbooks").OrderBy("sort_order", "created_at")
	out, err := selectAll(ctx, r.q, b, playbookRow.toPlaybook)
	if err != nil {
		return nil, fmt.Errorf("failed to list playbooks: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces the playbook keyed by id.
func (r *PlaybookRepo) Upsert(ctx context.Context, p *schema.Playbook) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("playbooks", playbookColumns), playbookToRow(p)); err != nil {
		return fmt.Errorf("failed to upsert playbook %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a playbook.
func (r *PlaybookRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "playbooks", id)
}
