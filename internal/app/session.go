package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
)

// SessionFile persists the logged-in session between processes. It holds
// a bearer token, so it is written with owner-only permissions.
type SessionFile struct {
	path string
}

type storedSession struct {
	Identity   string    `json:"identity"`
	Token      string    `json:"token,omitempty"`
	LoggedInAt time.Time `json:"loggedInAt"`
}

// NewSessionFile returns the session file at path.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Path returns the file location.
func (f *SessionFile) Path() string { return f.path }

// Load returns the saved session. ok is false when nobody is logged in.
func (f *SessionFile) Load() (sess cloudsync.Session, ok bool, err error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return cloudsync.Session{}, false, nil
	}
	if err != nil {
		return cloudsync.Session{}, false, fmt.Errorf("failed to read session: %w", err)
	}
	var s storedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return cloudsync.Session{}, false, fmt.Errorf("failed to parse session %s: %w", f.path, err)
	}
	if s.Identity == "" {
		return cloudsync.Session{}, false, nil
	}
	return cloudsync.Session{Identity: s.Identity, Token: s.Token}, true, nil
}

// Save writes sess atomically.
func (f *SessionFile) Save(sess cloudsync.Session) error {
	data, err := json.MarshalIndent(storedSession{
		Identity:   sess.Identity,
		Token:      sess.Token,
		LoggedInAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear removes the saved session. Clearing when logged out is not an
// error.
func (f *SessionFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
