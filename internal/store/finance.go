package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var transactionKind = kind[schema.Transaction]{
	name:   "transaction",
	items:  func(s *Snapshot) *[]schema.Transaction { return &s.Transactions },
	id:     func(t *schema.Transaction) string { return t.ID },
	clone:  schema.Transaction.Clone,
	upsert: func(ctx context.Context, r *repo.Set, t *schema.Transaction) error { return r.Transactions.Upsert(ctx, t) },
	remove: func(ctx context.Context, r *repo.Set, id string) error { return r.Transactions.Delete(ctx, id) },
}

// AddTransaction records an income or expense.
func (s *Store) AddTransaction(ctx context.Context, draft schema.Transaction) (schema.Transaction, error) {
	return addItem(ctx, s, &transactionKind, draft.Clone(), func(_ *Snapshot, t *schema.Transaction, now time.Time) error {
		t.ID = s.newID()
		t.SetDefaults()
		t.CreatedAt, t.UpdatedAt = now, now
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid transaction: %w", err)
		}
		return nil
	})
}

// UpdateTransaction applies fn to the transaction with id.
func (s *Store) UpdateTransaction(ctx context.Context, id string, fn func(*schema.Transaction)) (schema.Transaction, error) {
	return updateItem(ctx, s, &transactionKind, id, fn, func(_ *Snapshot, old, t *schema.Transaction, now time.Time) error {
		t.ID, t.CreatedAt, t.UpdatedAt = old.ID, old.CreatedAt, now
		t.SetDefaults()
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid transaction: %w", err)
		}
		return nil
	})
}

// DeleteTransaction removes the transaction with id.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return deleteItem(ctx, s, &transactionKind, id, nil)
}

// UpdateFinanceConfig applies fn to the singleton finance configuration.
func (s *Store) UpdateFinanceConfig(ctx context.Context, fn func(*schema.FinanceConfig)) (schema.FinanceConfig, error) {
	var out schema.FinanceConfig
	err := s.mutate(ctx, func(next *Snapshot, now time.Time) (func(*repo.Set) error, error) {
		cfg := next.Finance.Clone()
		fn(&cfg)
		cfg.SetDefaults()
		cfg.UpdatedAt = now
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid finance config: %w", err)
		}
		next.Finance = cfg
		out = cfg
		return func(tx *repo.Set) error { return tx.Finance.Save(ctx, &cfg) }, nil
	})
	if err != nil {
		return schema.FinanceConfig{}, err
	}
	return out.Clone(), nil
}

// UpdateSettings applies fn to the singleton settings.
func (s *Store) UpdateSettings(ctx context.Context, fn func(*schema.Settings)) (schema.Settings, error) {
	var out schema.Settings
	err := s.mutate(ctx, func(next *Snapshot, _ time.Time) (func(*repo.Set) error, error) {
		settings := next.Settings
		fn(&settings)
		if err := settings.Validate(); err != nil {
			return nil, fmt.Errorf("invalid settings: %w", err)
		}
		next.Settings = settings
		out = settings
		return func(tx *repo.Set) error { return tx.Settings.Save(ctx, &settings) }, nil
	})
	return out, err
}
