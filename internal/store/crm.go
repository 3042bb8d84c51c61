package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var contactKind = kind[schema.Contact]{
	name:   "contact",
	items:  func(s *Snapshot) *[]schema.Contact { return &s.Contacts },
	id:     func(c *schema.Contact) string { return c.ID },
	clone:  schema.Contact.Clone,
	upsert: func(ctx context.Context, r *repo.Set, c *schema.Contact) error { return r.Contacts.Upsert(ctx, c) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Contacts.Delete(ctx, id) },
}

// AddContact creates a CRM contact.
func (s *Store) AddContact(ctx context.Context, draft schema.Contact) (schema.Contact, error) {
	return addItem(ctx, s, &contactKind, draft.Clone(), func(_ *Snapshot, c *schema.Contact, now time.Time) error {
		c.ID = s.newID()
		c.SetDefaults()
		c.CreatedAt, c.UpdatedAt = now, now
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid contact: %w", err)
		}
		return nil
	})
}

// UpdateContact applies fn to the contact with id.
func (s *Store) UpdateContact(ctx context.Context, id string, fn func(*schema.Contact)) (schema.Contact, error) {
	return updateItem(ctx, s, &contactKind, id, fn, func(_ *Snapshot, old, c *schema.Contact, now time.Time) error {
		c.ID, c.CreatedAt, c.UpdatedAt = old.ID, old.CreatedAt, now
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid contact: %w", err)
		}
		return nil
	})
}

// DeleteContact removes the contact with id and its interactions.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &contactKind, id, func(next *Snapshot, _ time.Time) {
		next.Interactions = removeWhere(next.Interactions, func(i *schema.Interaction) bool { return i.ContactID == id })
	})
}

var interactionKind = kind[schema.Interaction]{
	name:   "interaction",
	items:  func(s *Snapshot) *[]schema.Interaction { return &s.Interactions },
	id:     func(i *schema.Interaction) string { return i.ID },
	clone:  func(i schema.Interaction) schema.Interaction { return i },
	upsert: func(ctx context.Context, r *repo.Set, i *schema.Interaction) error { return r.Interactions.Upsert(ctx, i) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Interactions.Delete(ctx, id) },
}

// AddInteraction logs an interaction and refreshes the contact's
// LastContactedAt.
func (s *Store) AddInteraction(ctx context.Context, draft schema.Interaction) (schema.Interaction, error) {
	in := draft
	err := s.mutate(ctx, func(next *Snapshot, now time.Time) (func(*repo.Set) error, error) {
		ci := indexOf(next.Contacts, contactKind.id, in.ContactID)
		if ci < 0 {
			return nil, notFound(contactKind.name, in.ContactID)
		}

		in.ID = s.newID()
		in.SetDefaults()
		in.CreatedAt = now
		if in.Date == "" {
			in.Date = now.Format(schema.DateLayout)
		}
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("invalid interaction: %w", err)
		}

		contact := next.Contacts[ci].Clone()
		contact.LastContactedAt = &now
		contact.UpdatedAt = now

		next.Interactions = appendItem(next.Interactions, in)
		next.Contacts = replaceAt(next.Contacts, ci, contact)
		return func(tx *repo.Set) error {
			if err := tx.Interactions.Upsert(ctx, &in); err != nil {
				return err
			}
			return tx.Contacts.Upsert(ctx, &contact)
		}, nil
	})
	if err != nil {
		return schema.Interaction{}, err
	}
	return in, nil
}

// UpdateInteraction applies fn to the interaction with id. The contact
// reference cannot change.
func (s *Store) UpdateInteraction(ctx context.Context, id string, fn func(*schema.Interaction)) (schema.Interaction, error) {
	return updateItem(ctx, s, &interactionKind, id, fn, func(_ *Snapshot, old, i *schema.Interaction, _ time.Time) error {
		i.ID, i.ContactID, i.CreatedAt = old.ID, old.ContactID, old.CreatedAt
		i.SetDefaults()
		if err := i.Validate(); err != nil {
			return fmt.Errorf("invalid interaction: %w", err)
		}
		return nil
	})
}

// DeleteInteraction removes the interaction with id.
func (s *Store) DeleteInteraction(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &interactionKind, id, nil)
}

var playbookKind = kind[schema.Playbook]{
	name:   "playbook",
	items:  func(s *Snapshot) *[]schema.Playbook { return &s.Playbooks },
	id:     func(p *schema.Playbook) string { return p.ID },
	clone:  schema.Playbook.Clone,
	upsert: func(ctx context.Context, r *repo.Set, p *schema.Playbook) error { return r.Playbooks.Upsert(ctx, p) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Playbooks.Delete(ctx, id) },
}

// AddPlaybook creates a playbook, last in display order. Steps without an
// id get one.
func (s *Store) AddPlaybook(ctx context.Context, draft schema.Playbook) (schema.Playbook, error) {
	return addItem(ctx, s, &playbookKind, draft.Clone(), func(next *Snapshot, p *schema.Playbook, now time.Time) error {
		p.ID = s.newID()
		p.SetDefaults()
		p.CreatedAt, p.UpdatedAt = now, now
		p.Order = nextOrder(next.Playbooks, func(*schema.Playbook) bool { return true }, func(o *schema.Playbook) int { return o.Order })
		s.fillStepIDs(p)
		return p.Validate()
	})
}

// UpdatePlaybook applies fn to the playbook with id.
func (s *Store) UpdatePlaybook(ctx context.Context, id string, fn func(*schema.Playbook)) (schema.Playbook, error) {
	return updateItem(ctx, s, &playbookKind, id, fn, func(_ *Snapshot, old, p *schema.Playbook, now time.Time) error {
		p.ID, p.CreatedAt, p.UpdatedAt = old.ID, old.CreatedAt, now
		p.SetDefaults()
		s.fillStepIDs(p)
		return p.Validate()
	})
}

// DeletePlaybook removes the playbook with id.
func (s *Store) DeletePlaybook(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &playbookKind, id, nil)
}

func (s *Store) fillStepIDs(p *schema.Playbook) {
	for i := range p.Steps {
		if p.Steps[i].ID == "" {
			p.Steps[i].ID = s.newID()
		}
	}
}
