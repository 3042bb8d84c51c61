// Package daemon provides the long-running sync owner.
//
// The daemon:
// 1. Holds the store and sync engine for a data directory
// 2. Watches the database for writes made by other lifedeck processes and
//    reloads the store, which schedules a sync cycle
// 3. Watches the session file and follows logins and logouts
// 4. Periodically reloads as a fallback for missed file events
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

const (
	changeDatabase = "database"
	changeSession  = "session"
)

// Sessions reads the persisted login.
type Sessions interface {
	Load() (cloudsync.Session, bool, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long file events must settle before the
	// store is reloaded. SQLite writes touch the database and its WAL
	// several times per transaction.
	DebounceInterval time.Duration

	// PollInterval is how often the store is reloaded regardless of file
	// events. Zero disables polling.
	PollInterval time.Duration

	// Logger for daemon activity
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 250 * time.Millisecond,
		PollInterval:     time.Minute,
		Logger:           slog.Default(),
	}
}

// Daemon orchestrates file watching, store reloads and session changes.
type Daemon struct {
	store    *store.Store
	engine   *cloudsync.Engine
	sessions Sessions
	dbPath   string
	sessPath string
	config   *Config
	log      *slog.Logger

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // change kind -> last event
	changeQueueMu sync.Mutex

	session *cloudsync.Session // last session applied to the engine

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a daemon for st, persisted at dbPath. engine and sessions
// may be nil when no remote is configured; the daemon then only keeps the
// store current.
func New(st *store.Store, engine *cloudsync.Engine, sessions Sessions, dbPath, sessionPath string) (*Daemon, error) {
	return NewWithConfig(st, engine, sessions, dbPath, sessionPath, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(st *store.Store, engine *cloudsync.Engine, sessions Sessions, dbPath, sessionPath string, config *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}
	if engine != nil && (sessions == nil || sessionPath == "") {
		return nil, fmt.Errorf("a sync engine requires a session file")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		store:       st,
		engine:      engine,
		sessions:    sessions,
		dbPath:      filepath.Clean(dbPath),
		sessPath:    cleanOrEmpty(sessionPath),
		config:      config,
		log:         logger.With("component", "daemon"),
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

func cleanOrEmpty(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Apply the saved session, if any
// 2. Start watching the data directory
// 3. Reload the store after debounced database changes
// 4. Periodically reload the store
//
// This blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.log.Info("starting daemon", "db", d.dbPath)

	d.applySession(ctx)

	dirs := map[string]bool{filepath.Dir(d.dbPath): true}
	if d.sessPath != "" {
		dirs[filepath.Dir(d.sessPath)] = true
	}
	for dir := range dirs {
		if err := d.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		d.log.Debug("watching", "dir", dir)
	}

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()
	if d.config.PollInterval > 0 {
		d.wg.Add(1)
		go d.pollStore()
	}

	// Wait for shutdown
	select {
	case <-ctx.Done():
		d.log.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. It does not flush the engine;
// the owner of the engine does that after Stop returns.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.log.Info("stopping daemon")
		d.cancel()
		if err := d.watcher.Close(); err != nil {
			d.log.Warn("error closing watcher", "error", err)
		}
		d.wg.Wait()
		d.log.Info("daemon stopped")
	})
	return nil
}

// classify maps a file event to a change kind, or "".
func (d *Daemon) classify(name string) string {
	name = filepath.Clean(name)
	switch name {
	case d.dbPath, d.dbPath + "-wal":
		return changeDatabase
	case d.sessPath:
		if d.sessPath != "" {
			return changeSession
		}
	}
	return ""
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			kind := d.classify(event.Name)
			if kind == "" {
				continue
			}
			d.queueChange(kind)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.Warn("watcher error", "error", err)
		}
	}
}

// queueChange records a change with debouncing.
func (d *Daemon) queueChange(kind string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[kind] = time.Now()
}

// processChangeQueue processes queued changes with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges handles changes that have settled.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	now := time.Now()
	ready := map[string]bool{}
	for kind, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready[kind] = true
		delete(d.changeQueue, kind)
	}
	d.changeQueueMu.Unlock()

	// Session first: a login that arrives together with writes must be in
	// place before the reload schedules a push.
	if ready[changeSession] {
		d.applySession(d.ctx)
	}
	if ready[changeDatabase] {
		d.reload()
	}
}

// pollStore periodically reloads the store.
func (d *Daemon) pollStore() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.reload()
		}
	}
}

func (d *Daemon) reload() {
	changed, err := d.store.Reload(d.ctx)
	if err != nil {
		d.log.Error("failed to reload store", "error", err)
		return
	}
	if changed {
		d.log.Info("picked up external changes", "updated_at", d.store.Snapshot().UpdatedAt)
	}
}

// applySession makes the engine follow the session file. A new identity
// logs in, hydrating from its backup; a new token for the same identity
// resumes; a removed session logs out.
func (d *Daemon) applySession(ctx context.Context) {
	if d.engine == nil {
		return
	}
	sess, ok, err := d.sessions.Load()
	if err != nil {
		d.log.Warn("ignoring unreadable session", "error", err)
		return
	}

	cur := d.session
	switch {
	case !ok:
		if cur != nil {
			d.log.Info("session removed, logging out", "identity", cur.Identity)
			d.engine.Logout()
			d.session = nil
		}

	case cur != nil && *cur == sess:
		// unchanged

	case cur != nil && cur.Identity == sess.Identity:
		if err := d.engine.Resume(sess); err != nil {
			d.log.Warn("failed to resume session", "error", err)
			return
		}
		d.session = &sess

	default:
		if cur == nil && d.engine.Status().Identity == sess.Identity {
			// Already resumed by the caller.
			if err := d.engine.Resume(sess); err != nil {
				d.log.Warn("failed to resume session", "error", err)
				return
			}
			d.session = &sess
			return
		}
		res, err := d.engine.Login(ctx, sess)
		if err != nil {
			d.log.Warn("failed to log in", "identity", sess.Identity, "error", err)
			return
		}
		d.session = &sess
		d.log.Info("session applied", "identity", sess.Identity, "hydrated", res.Applied)
	}
}
