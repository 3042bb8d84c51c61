// Package store is the in-memory aggregate that every consumer reads and
// that funnels every mutation into the repositories.
//
// The store publishes immutable snapshots. A mutation persists through the
// repositories first (one transaction, including the storeUpdatedAt stamp)
// and only then publishes the next snapshot, so a failed write leaves both
// memory and disk unchanged. Subscribers see every published snapshot; the
// single change listener (the sync engine) is skipped while a hydration is
// being applied.
//
// Reload picks up writes made by other processes sharing the database.
//
// Callbacks run synchronously while the store's write lock is held. They
// must return quickly and must not call mutation methods.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mschirtzinger/lifedeck/internal/repo"
)

const metaUpdatedAt = "storeUpdatedAt"

// Listener receives a published snapshot.
type Listener func(*Snapshot)

// Store is the aggregate. The zero value is not usable; call New.
type Store struct {
	repos *repo.Set
	now   func() time.Time
	newID func() string
	log   *slog.Logger

	mu       sync.Mutex // serializes mutations, Load, Reload and Hydrate
	snap     atomic.Pointer[Snapshot]
	loaded   atomic.Bool
	hydrate  atomic.Bool
	listener Listener
	subs     map[int]Listener
	nextSub  int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New returns an unloaded store holding the empty default snapshot.
func New(repos *repo.Set, opts ...Option) *Store {
	s := &Store{
		repos: repos,
		now:   time.Now,
		newID: uuid.NewString,
		subs:  make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "store")
	}
	s.snap.Store(emptySnapshot())
	return s
}

// Load reads every repository once and publishes the result. On failure
// the store keeps its empty default snapshot, stays unloaded and the
// error is returned for the caller to report.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.read(ctx)
	if err != nil {
		s.log.Error("initial load failed, using empty store", "error", err)
		return fmt.Errorf("failed to load store: %w", err)
	}

	s.loaded.Store(true)
	s.log.Debug("store loaded", "entities", next.Total(), "updated_at", next.UpdatedAt)
	s.publish(next, false)
	return nil
}

// Reload re-reads the repositories after another process wrote to the
// database. When the persisted storeUpdatedAt differs from the current
// snapshot's, the result is published like a local mutation, change
// listener included, and changed is true.
func (s *Store) Reload(ctx context.Context) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded.Load() {
		return false, fmt.Errorf("failed to reload store: not loaded")
	}
	next, err := s.read(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reload store: %w", err)
	}
	if next.UpdatedAt.Equal(s.snap.Load().UpdatedAt) {
		return false, nil
	}

	s.log.Debug("store reloaded", "entities", next.Total(), "updated_at", next.UpdatedAt)
	s.publish(next, true)
	return true, nil
}

func (s *Store) read(ctx context.Context) (*Snapshot, error) {
	data, err := s.repos.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	data.Normalize()

	next := &Snapshot{Dataset: data}
	if v, ok, err := s.repos.Meta.Get(ctx, metaUpdatedAt); err != nil {
		s.log.Warn("failed to read store timestamp", "error", err)
	} else if ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			next.UpdatedAt = t.UTC()
		}
	}
	return next, nil
}

// Loaded reports whether Load has completed successfully.
func (s *Store) Loaded() bool {
	return s.loaded.Load()
}

// Snapshot returns the current snapshot. It must not be modified.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Subscribe registers fn for every published snapshot, hydrations
// included. The returned func removes the subscription.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// SetChangeListener installs the single change listener, replacing any
// previous one. Nil detaches it. The listener is not called for
// snapshots published by Load or Hydrate.
func (s *Store) SetChangeListener(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// Hydrating reports whether a hydration is being applied.
func (s *Store) Hydrating() bool {
	return s.hydrate.Load()
}

// Hydrate replaces the whole store with snap, bypassing the mutation
// methods. It persists in one transaction when the store is loaded and
// keeps snap's UpdatedAt. Hydrate takes ownership of snap's collections.
func (s *Store) Hydrate(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hydrate.Store(true)
	defer s.hydrate.Store(false)

	next := snap
	next.Dataset.Normalize()
	next.UpdatedAt = next.UpdatedAt.UTC()

	if s.loaded.Load() {
		err := s.repos.WithTx(ctx, func(tx *repo.Set) error {
			if err := tx.ReplaceAll(ctx, next.Dataset); err != nil {
				return err
			}
			return s.writeStamp(ctx, tx, next.UpdatedAt)
		})
		if err != nil {
			return fmt.Errorf("failed to persist hydration: %w", err)
		}
	}

	s.log.Info("store hydrated", "entities", next.Total(), "updated_at", next.UpdatedAt)
	s.publish(&next, false)
	return nil
}

// mutate runs one mutation. edit receives a private copy of the current
// snapshot and the mutation time, replaces the collections it changes and
// returns the repository writes to perform. Nothing is published when
// edit or the writes fail.
func (s *Store) mutate(ctx context.Context, edit func(next *Snapshot, now time.Time) (persist func(*repo.Set) error, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	next := cur.clone()
	now := s.stamp(cur.UpdatedAt)

	persist, err := edit(next, now)
	if err != nil {
		return err
	}
	next.UpdatedAt = now

	if s.loaded.Load() {
		err := s.repos.WithTx(ctx, func(tx *repo.Set) error {
			if persist != nil {
				if err := persist(tx); err != nil {
					return err
				}
			}
			return s.writeStamp(ctx, tx, now)
		})
		if err != nil {
			return err
		}
	}

	s.publish(next, true)
	return nil
}

// stamp returns a mutation time strictly after prev.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (s *Store) writeStamp(ctx context.Context, tx *repo.Set, t time.Time) error {
	if t.IsZero() {
		return tx.Meta.Delete(ctx, metaUpdatedAt)
	}
	return tx.Meta.Set(ctx, metaUpdatedAt, t.UTC().Format(time.RFC3339Nano))
}

// publish swaps in next and notifies. Caller holds s.mu.
func (s *Store) publish(next *Snapshot, notifyListener bool) {
	s.snap.Store(next)
	for _, fn := range s.subs {
		fn(next)
	}
	if notifyListener && s.listener != nil && !s.hydrate.Load() {
		s.listener(next)
	}
}
