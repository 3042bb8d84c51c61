package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

// State is the engine's sync state.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateSyncing State = "syncing"
	StateSynced  State = "synced"
	StateError   State = "error"
)

// DefaultDebounce is the quiet period after the last mutation before a
// cycle runs.
const DefaultDebounce = 10 * time.Second

// ErrNotLoggedIn is returned by operations that need a session.
var ErrNotLoggedIn = errors.New("cloudsync: not logged in")

// Config tunes an Engine. Zero values take defaults.
type Config struct {
	// Debounce is the quiet period before a cycle. Default 10s.
	Debounce time.Duration
	// Concurrency bounds how many collections sync at once. Default 4.
	Concurrency int
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Session identifies the logged-in user.
type Session struct {
	// Identity is the user's stable identity (email or account id). It
	// owns remote documents and names the backup blob.
	Identity string
	// Token is the short-lived bearer token for this session.
	Token string
}

// Status is a point-in-time view of the engine.
type Status struct {
	State      State     `json:"state"`
	Identity   string    `json:"identity,omitempty"`
	Pending    bool      `json:"pending"`
	LastSync   time.Time `json:"lastSync,omitzero"`
	LastReport *Report   `json:"lastReport,omitempty"`
}

// Engine is the sync engine. It is safe for concurrent use.
type Engine struct {
	store *store.Store
	blobs remote.BlobStore
	docs  remote.Collections
	cfg   Config
	log   *slog.Logger

	// run serializes cycles.
	run sync.Mutex

	mu       sync.Mutex
	session  *Session
	gen      uint64
	state    State
	pending  *store.Snapshot
	timer    *time.Timer
	last     *Report
	lastSync time.Time
	watchers []func(Status)
}

// New creates an engine for st. blobs and docs are usually the same
// backend wrapped in remote.Retry. A nil logger logs to stderr.
func New(st *store.Store, blobs remote.BlobStore, docs remote.Collections, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "cloudsync")
	}
	return &Engine{
		store: st,
		blobs: blobs,
		docs:  docs,
		cfg:   cfg.withDefaults(),
		log:   logger,
		state: StateIdle,
	}
}

// SetDebounce changes the debounce window for subsequent mutations.
func (e *Engine) SetDebounce(d time.Duration) {
	if d <= 0 {
		d = DefaultDebounce
	}
	e.mu.Lock()
	e.cfg.Debounce = d
	e.mu.Unlock()
}

// OnStateChange registers fn for every state change. fn runs on the
// goroutine that caused the change and must not block.
func (e *Engine) OnStateChange(fn func(Status)) {
	e.mu.Lock()
	e.watchers = append(e.watchers, fn)
	e.mu.Unlock()
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	st := Status{
		State:      e.state,
		Pending:    e.pending != nil,
		LastSync:   e.lastSync,
		LastReport: e.last,
	}
	if e.session != nil {
		st.Identity = e.session.Identity
	}
	return st
}

// setState changes state and returns the watchers to notify with the new
// status. Caller holds e.mu and calls emit after unlocking.
func (e *Engine) setState(s State) (Status, []func(Status)) {
	e.state = s
	return e.statusLocked(), append([]func(Status){}, e.watchers...)
}

func emit(st Status, watchers []func(Status)) {
	for _, fn := range watchers {
		fn(st)
	}
}

// Login starts a session: it sets the token on the backend, attaches the
// engine to the store and hydrates from the user's backup when it is newer
// than local state. Hydration problems are reported in the result, never
// as an error.
func (e *Engine) Login(ctx context.Context, sess Session) (HydrateResult, error) {
	sess, err := e.attach(sess)
	if err != nil {
		return HydrateResult{}, err
	}
	e.log.Info("logged in", "identity", sess.Identity)

	res := e.hydrate(ctx, sess, false)
	if res.Err != nil {
		e.log.Warn("login hydration failed", "identity", sess.Identity, "error", res.Err)
	}
	return res, nil
}

// Resume restores a session saved by an earlier process without
// hydrating. Local mutations are synced from then on.
func (e *Engine) Resume(sess Session) error {
	sess, err := e.attach(sess)
	if err != nil {
		return err
	}
	e.log.Debug("session resumed", "identity", sess.Identity)
	return nil
}

func (e *Engine) attach(sess Session) (Session, error) {
	sess.Identity = strings.TrimSpace(sess.Identity)
	if sess.Identity == "" {
		return sess, errors.New("cloudsync: login requires an identity")
	}

	e.mu.Lock()
	e.stopTimerLocked()
	e.pending = nil
	e.session = &sess
	e.gen++
	st, ws := e.setState(StateIdle)
	e.mu.Unlock()
	emit(st, ws)

	e.setToken(sess.Token)
	e.store.SetChangeListener(e.onChange)
	return sess, nil
}

// Logout ends the session: pending changes are dropped, the engine
// detaches from the store and returns to idle. Local data is kept.
func (e *Engine) Logout() {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return
	}
	identity := e.session.Identity
	e.stopTimerLocked()
	e.pending = nil
	e.session = nil
	e.gen++
	e.last = nil
	e.lastSync = time.Time{}
	st, ws := e.setState(StateIdle)
	e.mu.Unlock()

	e.store.SetChangeListener(nil)
	e.setToken("")
	emit(st, ws)
	e.log.Info("logged out", "identity", identity)
}

// Close detaches the engine from the store and stops the debounce timer
// without ending the session. Unflushed changes are left to the next
// owner of the store.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopTimerLocked()
	e.pending = nil
	e.gen++
	e.mu.Unlock()
	e.store.SetChangeListener(nil)
}

func (e *Engine) setToken(token string) {
	if a, ok := e.blobs.(remote.Authenticator); ok {
		a.SetToken(token)
	}
	if a, ok := e.docs.(remote.Authenticator); ok {
		a.SetToken(token)
	}
}

// onChange is the store's change listener. It runs under the store's
// mutation lock, so it only records the snapshot and rearms the timer.
func (e *Engine) onChange(snap *store.Snapshot) {
	if e.store.Hydrating() {
		return
	}
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return
	}
	e.pending = snap
	e.stopTimerLocked()
	e.timer = time.AfterFunc(e.cfg.Debounce, e.fire)
	st, ws := e.setState(StatePending)
	e.mu.Unlock()
	emit(st, ws)
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// fire runs when the debounce timer expires. A timer that raced a Logout
// finds no session and does nothing.
func (e *Engine) fire() {
	_, err := e.runPending(context.Background())
	if err != nil && !errors.Is(err, errNothingPending) && !errors.Is(err, ErrNotLoggedIn) {
		e.log.Warn("sync cycle failed", "error", err)
	}
}

var errNothingPending = errors.New("cloudsync: nothing pending")

// Flush runs the pending cycle now instead of waiting for the timer. It
// is a no-op when nothing is pending.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	e.stopTimerLocked()
	e.mu.Unlock()

	_, err := e.runPending(ctx)
	if errors.Is(err, errNothingPending) {
		return nil
	}
	return err
}

// SyncNow runs a cycle with the current store snapshot, whether or not
// anything changed.
func (e *Engine) SyncNow(ctx context.Context) (Report, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return Report{}, ErrNotLoggedIn
	}
	e.stopTimerLocked()
	e.pending = e.store.Snapshot()
	e.mu.Unlock()

	rep, err := e.runPending(ctx)
	if errors.Is(err, errNothingPending) {
		// A concurrent cycle already sent the snapshot.
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.last != nil {
			return *e.last, nil
		}
		return Report{}, nil
	}
	return rep, err
}

// runPending takes the pending snapshot and runs one cycle with it. Cycles
// never overlap; a caller arriving during a cycle waits and then runs with
// whatever is pending at that point.
func (e *Engine) runPending(ctx context.Context) (Report, error) {
	e.run.Lock()
	defer e.run.Unlock()

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return Report{}, ErrNotLoggedIn
	}
	snap := e.pending
	if snap == nil {
		e.mu.Unlock()
		return Report{}, errNothingPending
	}
	e.pending = nil
	sess := *e.session
	gen := e.gen
	st, ws := e.setState(StateSyncing)
	e.mu.Unlock()
	emit(st, ws)

	rep := e.cycle(ctx, sess, snap)

	e.mu.Lock()
	if gen != e.gen {
		// Logged out (or in again) mid-cycle.
		e.mu.Unlock()
		return rep, rep.Err
	}
	e.last = &rep
	next := StateSynced
	if rep.Err != nil {
		next = StateError
	} else {
		e.lastSync = rep.FinishedAt
	}
	if e.pending != nil {
		// A mutation arrived during the cycle; its timer is running.
		next = StatePending
	}
	st, ws = e.setState(next)
	e.mu.Unlock()
	emit(st, ws)

	return rep, rep.Err
}

// cycle uploads the backup and then replace-syncs every collection.
func (e *Engine) cycle(ctx context.Context, sess Session, snap *store.Snapshot) Report {
	rep := Report{StartedAt: time.Now().UTC()}

	data, err := json.Marshal(snap)
	if err != nil {
		rep.Err = fmt.Errorf("encode backup: %w", err)
		rep.FinishedAt = time.Now().UTC()
		return rep
	}
	rep.BackupBytes = len(data)

	if err := e.blobs.PutBlob(ctx, remote.BackupName(sess.Identity), data); err != nil {
		rep.Err = fmt.Errorf("upload backup: %w", err)
		rep.FinishedAt = time.Now().UTC()
		e.log.Warn("backup upload failed", "identity", sess.Identity, "error", err)
		return rep
	}

	rep.Collections = e.syncCollections(ctx, sess.Identity, &snap.Dataset)
	rep.FinishedAt = time.Now().UTC()

	e.log.Info("sync complete",
		"identity", sess.Identity,
		"backup_bytes", rep.BackupBytes,
		"sent", rep.Sent(),
		"skipped", rep.Skipped(),
		"errors", rep.Errors(),
		"took", rep.FinishedAt.Sub(rep.StartedAt))
	return rep
}
