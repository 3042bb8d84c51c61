package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

// HydrateResult describes one hydration attempt.
type HydrateResult struct {
	// Found is true when a readable backup exists.
	Found bool
	// Applied is true when the backup replaced local state.
	Applied bool
	// RemoteUpdatedAt is the backup's storeUpdatedAt.
	RemoteUpdatedAt time.Time
	// Entities is the number of entities in the backup.
	Entities int
	// Err is a download, decode or local write failure. A missing backup
	// is not an error.
	Err error
}

// Pull downloads the user's backup and replaces local state with it. A
// missing backup returns a result with Found false and no error.
func (e *Engine) Pull(ctx context.Context) (HydrateResult, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return HydrateResult{}, ErrNotLoggedIn
	}
	sess := *e.session
	e.mu.Unlock()

	res := e.hydrate(ctx, sess, true)
	return res, res.Err
}

// hydrate fetches the backup for sess. With force it always replaces
// local state; otherwise only when the backup is newer or local state has
// never been written.
func (e *Engine) hydrate(ctx context.Context, sess Session, force bool) HydrateResult {
	var res HydrateResult

	data, err := e.blobs.GetBlob(ctx, remote.BackupName(sess.Identity))
	if errors.Is(err, remote.ErrNotFound) {
		e.log.Info("no remote backup", "identity", sess.Identity)
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("download backup: %w", err)
		return res
	}

	var decoded *store.Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		// An unreadable backup is treated as no backup.
		e.log.Warn("ignoring unreadable remote backup", "identity", sess.Identity, "error", err)
		return res
	}
	if decoded == nil || (decoded.UpdatedAt.IsZero() && decoded.Total() == 0) {
		e.log.Warn("ignoring empty remote backup", "identity", sess.Identity, "bytes", len(data))
		return res
	}
	snap := *decoded
	res.Found = true
	res.RemoteUpdatedAt = snap.UpdatedAt
	res.Entities = snap.Total()

	local := e.store.Snapshot().UpdatedAt
	if !force && !local.IsZero() && !snap.UpdatedAt.After(local) {
		e.log.Info("local state is current, skipping hydration",
			"identity", sess.Identity, "local", local, "remote", snap.UpdatedAt)
		return res
	}

	if err := e.store.Hydrate(ctx, snap); err != nil {
		res.Err = err
		return res
	}
	res.Applied = true

	// Whatever was pending predates the hydration and must not overwrite it.
	e.mu.Lock()
	e.stopTimerLocked()
	e.pending = nil
	var (
		st Status
		ws []func(Status)
	)
	if e.state == StatePending {
		st, ws = e.setState(StateIdle)
	}
	e.mu.Unlock()
	emit(st, ws)

	e.log.Info("hydrated from remote backup", "identity", sess.Identity, "entities", res.Entities, "remote_updated_at", snap.UpdatedAt)
	return res
}
