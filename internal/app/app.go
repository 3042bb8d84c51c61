// Package app wires configuration, logging, the database, the store and
// the sync engine into one handle used by every command.
//
// Several lifedeck processes may share a data directory. SQLite arbitrates
// database access; syncing is owned by whichever process holds the sync
// lock file. A process without the lock never pushes. Its writes reach
// the cloud through the owner, which reloads the database when it changes
// on disk.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/config"
	"github.com/mschirtzinger/lifedeck/internal/db"
	"github.com/mschirtzinger/lifedeck/internal/logging"
	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

var (
	// ErrNoRemote is returned by sync operations when remote.url is unset.
	ErrNoRemote = errors.New("no remote configured (set remote.url or LIFEDECK_REMOTE_URL)")

	// ErrSyncBusy is returned when another process owns syncing.
	ErrSyncBusy = errors.New("sync is owned by another lifedeck process (is the daemon running?)")
)

// SyncMode selects how Open treats the sync lock.
type SyncMode int

const (
	// SyncOff never takes the lock; no engine is created.
	SyncOff SyncMode = iota
	// SyncAuto takes the lock if it is free and otherwise runs without an
	// engine.
	SyncAuto
	// SyncRequired fails with ErrSyncBusy when the lock is taken, and
	// with ErrNoRemote when no remote is configured.
	SyncRequired
	// SyncWait blocks until the lock is free or ctx is done.
	SyncWait
)

// Options configure Open.
type Options struct {
	Sync SyncMode
	// Stderr receives logs when no log file is configured. Default os.Stderr.
	Stderr io.Writer
	// HTTPClient overrides the client used to reach the remote.
	HTTPClient *http.Client
	// LockRetry is the polling interval for SyncWait. Default 1s.
	LockRetry time.Duration
}

// App is an opened data directory.
type App struct {
	Config   *config.Config
	Log      *logging.Logger
	DB       *db.DB
	Store    *store.Store
	Sessions *SessionFile

	// LoadErr is the initial store load failure, if any. The store then
	// holds the empty default state and mutations are not persisted.
	LoadErr error

	// Client and Backend are nil when no remote is configured.
	Client  *remote.Client
	Backend *remote.Retry
	// Engine is nil unless this process owns syncing.
	Engine *cloudsync.Engine

	lock *flock.Flock
}

// Open opens the data directory described by cfg.
func Open(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.LockRetry <= 0 {
		opts.LockRetry = time.Second
	}

	log, err := logging.New(cfg.Log, opts.Stderr)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, Sessions: NewSessionFile(cfg.SessionPath())}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a.DB, err = db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := a.DB.InitSchemaContext(ctx); err != nil {
		return nil, err
	}

	a.Store = store.New(repo.New(a.DB.X()), store.WithLogger(log.Component("store")))
	if err := a.Store.Load(ctx); err != nil {
		a.LoadErr = err
	}

	if cfg.Remote.URL != "" {
		a.Client, err = remote.NewClient(cfg.Remote.URL, opts.HTTPClient)
		if err != nil {
			return nil, err
		}
		a.Backend = remote.NewRetry(a.Client, a.Client, remote.RetryPolicy{
			Attempts:    cfg.Remote.Attempts,
			BaseBackoff: cfg.Remote.BaseBackoff,
			MaxBackoff:  cfg.Remote.MaxBackoff,
			Timeout:     cfg.Remote.Timeout,
		}, log.Component("remote"))
	}

	if err := a.acquire(ctx, opts); err != nil {
		return nil, err
	}
	if a.lock != nil && a.Backend != nil {
		if err := a.startEngine(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *App) acquire(ctx context.Context, opts Options) error {
	if opts.Sync == SyncOff {
		return nil
	}
	if opts.Sync == SyncRequired && a.Backend == nil {
		return ErrNoRemote
	}

	lock := flock.New(a.Config.SyncLockPath())
	var locked bool
	var err error
	if opts.Sync == SyncWait {
		locked, err = lock.TryLockContext(ctx, opts.LockRetry)
	} else {
		locked, err = lock.TryLock()
	}
	if err != nil {
		return fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !locked {
		if opts.Sync == SyncRequired {
			return ErrSyncBusy
		}
		a.Log.Debug("sync lock held elsewhere, running without sync")
		return nil
	}
	a.lock = lock
	return nil
}

func (a *App) startEngine() error {
	a.Engine = cloudsync.New(a.Store, a.Backend, a.Backend, cloudsync.Config{
		Debounce:    a.Config.Sync.Debounce,
		Concurrency: a.Config.Sync.Concurrency,
	}, a.Log.Component("sync"))

	sess, ok, err := a.Sessions.Load()
	if err != nil {
		a.Log.Warn("ignoring unreadable session", "path", a.Sessions.Path(), "error", err)
		return nil
	}
	if ok {
		return a.Engine.Resume(sess)
	}
	return nil
}

// OwnsSync reports whether this process holds the sync lock.
func (a *App) OwnsSync() bool { return a.lock != nil }

// LoginResult reports how a login was carried out.
type LoginResult struct {
	cloudsync.HydrateResult
	// Delegated is true when another process owns syncing. The session
	// was saved for it to pick up, and it hydrates instead of this one.
	Delegated bool
}

// Login starts a session and saves it for later processes.
func (a *App) Login(ctx context.Context, sess cloudsync.Session) (LoginResult, error) {
	if a.Backend == nil {
		return LoginResult{}, ErrNoRemote
	}
	if strings.TrimSpace(sess.Identity) == "" {
		return LoginResult{}, errors.New("login requires an identity")
	}
	sess.Identity = strings.TrimSpace(sess.Identity)

	if a.Engine == nil {
		if err := a.Sessions.Save(sess); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Delegated: true}, nil
	}
	res, err := a.Engine.Login(ctx, sess)
	if err != nil {
		return LoginResult{}, err
	}
	if err := a.Sessions.Save(sess); err != nil {
		return LoginResult{HydrateResult: res}, err
	}
	return LoginResult{HydrateResult: res}, nil
}

// Logout ends the session. A running daemon notices the removed session
// file and logs out too.
func (a *App) Logout() error {
	if a.Engine != nil {
		a.Engine.Logout()
	}
	return a.Sessions.Clear()
}

// Session returns the saved session.
func (a *App) Session() (cloudsync.Session, bool, error) {
	return a.Sessions.Load()
}

func (a *App) requireEngine() error {
	if a.Backend == nil {
		return ErrNoRemote
	}
	if a.Engine == nil {
		return ErrSyncBusy
	}
	return nil
}

// SyncNow runs a cycle immediately.
func (a *App) SyncNow(ctx context.Context) (cloudsync.Report, error) {
	if err := a.requireEngine(); err != nil {
		return cloudsync.Report{}, err
	}
	return a.Engine.SyncNow(ctx)
}

// Pull replaces local state with the cloud backup.
func (a *App) Pull(ctx context.Context) (cloudsync.HydrateResult, error) {
	if err := a.requireEngine(); err != nil {
		return cloudsync.HydrateResult{}, err
	}
	return a.Engine.Pull(ctx)
}

// Status returns the engine status, or an idle status carrying the saved
// identity when this process does not sync.
func (a *App) Status() cloudsync.Status {
	if a.Engine != nil {
		return a.Engine.Status()
	}
	st := cloudsync.Status{State: cloudsync.StateIdle}
	if sess, ok, err := a.Sessions.Load(); err == nil && ok {
		st.Identity = sess.Identity
	}
	return st
}

// Close flushes pending changes when configured to, then releases the
// database, the sync lock and the log file.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Engine != nil {
		if a.Config.Sync.FlushOnExit {
			if err := a.Engine.Flush(ctx); err != nil && !errors.Is(err, cloudsync.ErrNotLoggedIn) {
				errs = append(errs, fmt.Errorf("flush: %w", err))
			}
		}
		a.Engine.Close()
	}
	return errors.Join(append(errs, a.closeResources())...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
		a.DB = nil
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Unlock())
		a.lock = nil
	}
	if a.Log != nil {
		errs = append(errs, a.Log.Close())
	}
	return errors.Join(errs...)
}

// Logger returns the process logger.
func (a *App) Logger() *slog.Logger { return a.Log.Logger }
