package store

import (
	"context"
	"slices"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/repo"
)

// kind describes one entity collection to the generic mutation helpers.
type kind[T any] struct {
	name   string
	items  func(*Snapshot) *[]T
	id     func(*T) string
	clone  func(T) T
	upsert func(context.Context, *repo.Set, *T) error
	remove func(context.Context, *repo.Set, string) error
}

// addItem appends item after prepare has filled ids, defaults and
// timestamps.
func addItem[T any](ctx context.Context, s *Store, k *kind[T], item T, prepare func(next *Snapshot, item *T, now time.Time) error) (T, error) {
	err := s.mutate(ctx, func(next *Snapshot, now time.Time) (func(*repo.Set) error, error) {
		if err := prepare(next, &item, now); err != nil {
			return nil, err
		}
		items := k.items(next)
		*items = appendItem(*items, item)
		return func(tx *repo.Set) error { return k.upsert(ctx, tx, &item) }, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return k.clone(item), nil
}

// updateItem applies fn to a copy of the item with id, then lets finish
// restore immutable fields, stamp and validate.
func updateItem[T any](ctx context.Context, s *Store, k *kind[T], id string, fn func(*T), finish func(next *Snapshot, old, item *T, now time.Time) error) (T, error) {
	var out T
	err := s.mutate(ctx, func(next *Snapshot, now time.Time) (func(*repo.Set) error, error) {
		items := k.items(next)
		i := indexOf(*items, k.id, id)
		if i < 0 {
			return nil, notFound(k.name, id)
		}
		old := (*items)[i]
		item := k.clone(old)
		fn(&item)
		if err := finish(next, &old, &item, now); err != nil {
			return nil, err
		}
		*items = replaceAt(*items, i, item)
		out = item
		return func(tx *repo.Set) error { return k.upsert(ctx, tx, &item) }, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return k.clone(out), nil
}

// deleteItem removes the item with id. cascade edits the other affected
// collections of next; the repository's Delete performs the same cascade
// on disk.
func deleteItem[T any](ctx context.Context, s *Store, k *kind[T], id string, cascade func(next *Snapshot, now time.Time)) error {
	return s.mutate(ctx, func(next *Snapshot, now time.Time) (func(*repo.Set) error, error) {
		items := k.items(next)
		if indexOf(*items, k.id, id) < 0 {
			return nil, notFound(k.name, id)
		}
		*items = removeWhere(*items, func(v *T) bool { return k.id(v) == id })
		if cascade != nil {
			cascade(next, now)
		}
		return func(tx *repo.Set) error { return k.remove(ctx, tx, id) }, nil
	})
}

func indexOf[T any](items []T, id func(*T) string, want string) int {
	for i := range items {
		if id(&items[i]) == want {
			return i
		}
	}
	return -1
}

func find[T any](items []T, match func(*T) bool) (T, bool) {
	for i := range items {
		if match(&items[i]) {
			return items[i], true
		}
	}
	var zero T
	return zero, false
}

// The helpers below never write into their input's backing array, since
// that array may belong to a published snapshot.

func appendItem[T any](items []T, v T) []T {
	out := make([]T, len(items), len(items)+1)
	copy(out, items)
	return append(out, v)
}

func replaceAt[T any](items []T, i int, v T) []T {
	out := slices.Clone(items)
	out[i] = v
	return out
}

func removeWhere[T any](items []T, drop func(*T) bool) []T {
	out := make([]T, 0, len(items))
	for i := range items {
		if !drop(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

// mapWhere returns a copy of items with edit applied to every match.
func mapWhere[T any](items []T, match func(*T) bool, edit func(*T)) []T {
	out := slices.Clone(items)
	for i := range out {
		if match(&out[i]) {
			edit(&out[i])
		}
	}
	return out
}

// nextOrder returns one past the highest order among items in scope.
func nextOrder[T any](items []T, inScope func(*T) bool, order func(*T) int) int {
	n := 0
	for i := range items {
		if inScope(&items[i]) && order(&items[i]) >= n {
			n = order(&items[i]) + 1
		}
	}
	return n
}

func sortStable[T any](items []T, less func(a, b *T) bool) {
	slices.SortStableFunc(items, func(a, b T) int {
		switch {
		case less(&a, &b):
			return -1
		case less(&b, &a):
			return 1
		}
		return 0
	})
}

func sortByOrder[T any](items []T, order func(*T) int) {
	sortStable(items, func(a, b *T) bool { return order(a) < order(b) })
}
