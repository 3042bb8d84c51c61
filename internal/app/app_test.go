package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/config"
	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

const identity = "bob@example.com"

func newConfig(t *testing.T, remoteURL string) *config.Config {
	t.Helper()
	t.Setenv("LIFEDECK_DATA_DIR", t.TempDir())
	t.Setenv("LIFEDECK_REMOTE_URL", remoteURL)
	t.Setenv("LIFEDECK_REMOTE_BASE_BACKOFF", "1ms")
	t.Setenv("LIFEDECK_REMOTE_MAX_BACKOFF", "2ms")
	cfg, err := config.NewLoader("").Load()
	require.NoError(t, err)
	return cfg
}

func newBackend(t *testing.T) (*remote.Memory, string) {
	t.Helper()
	mem := remote.NewMemory()
	srv := httptest.NewServer(remote.NewHandler(mem, mem))
	t.Cleanup(srv.Close)
	return mem, srv.URL
}

func open(t *testing.T, cfg *config.Config, mode SyncMode) *App {
	t.Helper()
	a, err := Open(context.Background(), cfg, Options{Sync: mode, Stderr: io.Discard})
	require.NoError(t, err)
	return a
}

func TestOpenWithoutRemote(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t, "")

	a := open(t, cfg, SyncAuto)
	assert.NoError(t, a.LoadErr)
	assert.True(t, a.Store.Loaded())
	assert.Nil(t, a.Client)
	assert.Nil(t, a.Engine)

	_, err := a.SyncNow(ctx)
	assert.ErrorIs(t, err, ErrNoRemote)

	_, err = a.Store.AddTask(ctx, schema.Task{Title: "Draft report"})
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))

	again := open(t, cfg, SyncOff)
	defer again.Close(ctx)
	assert.Len(t, again.Store.Snapshot().Tasks, 1)

	_, err = Open(ctx, cfg, Options{Sync: SyncRequired, Stderr: io.Discard})
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestLoginPersistsSessionAndResumes(t *testing.T) {
	ctx := context.Background()
	mem, url := newBackend(t)
	cfg := newConfig(t, url)

	a := open(t, cfg, SyncRequired)
	require.True(t, a.OwnsSync())
	res, err := a.Login(ctx, cloudsync.Session{Identity: identity, Token: "tok"})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, res.Delegated)
	require.NoError(t, a.Close(ctx))

	info, err := os.Stat(cfg.SessionPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	b := open(t, cfg, SyncAuto)
	require.NotNil(t, b.Engine)
	assert.Equal(t, identity, b.Status().Identity)

	_, err = b.Store.AddTask(ctx, schema.Task{Title: "Draft report"})
	require.NoError(t, err)
	assert.True(t, b.Engine.Status().Pending)
	require.NoError(t, b.Close(ctx))

	data, ok := mem.Blob(remote.BackupName(identity))
	require.True(t, ok, "backup not flushed on close")
	var snap store.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Len(t, snap.Tasks, 1)
	assert.Len(t, mem.Documents("tasks"), 1)
}

func TestSyncLockOwnership(t *testing.T) {
	ctx := context.Background()
	_, url := newBackend(t)
	cfg := newConfig(t, url)

	owner := open(t, cfg, SyncRequired)
	defer owner.Close(ctx)

	other := open(t, cfg, SyncAuto)
	defer other.Close(ctx)
	assert.False(t, other.OwnsSync())
	assert.Nil(t, other.Engine)
	_, err := other.Pull(ctx)
	assert.ErrorIs(t, err, ErrSyncBusy)

	res, err := other.Login(ctx, cloudsync.Session{Identity: " " + identity})
	require.NoError(t, err)
	assert.True(t, res.Delegated)
	sess, ok, err := other.Session()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, identity, sess.Identity)

	_, err = Open(ctx, cfg, Options{Sync: SyncRequired, Stderr: io.Discard})
	assert.ErrorIs(t, err, ErrSyncBusy)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = Open(waitCtx, cfg, Options{Sync: SyncWait, Stderr: io.Discard, LockRetry: 10 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, owner.Close(ctx))
	next := open(t, cfg, SyncRequired)
	assert.True(t, next.OwnsSync())
	require.NoError(t, next.Close(ctx))
}

func TestLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	_, url := newBackend(t)
	cfg := newConfig(t, url)

	a := open(t, cfg, SyncRequired)
	defer a.Close(ctx)
	_, err := a.Login(ctx, cloudsync.Session{Identity: identity})
	require.NoError(t, err)

	require.NoError(t, a.Logout())
	_, ok, err := a.Session()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, a.Status().Identity)

	require.NoError(t, a.Logout())
}

func TestSessionFile(t *testing.T) {
	f := NewSessionFile(filepath.Join(t.TempDir(), "nested", "session.json"))

	_, ok, err := f.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Save(cloudsync.Session{Identity: identity, Token: "tok"}))
	sess, ok, err := f.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cloudsync.Session{Identity: identity, Token: "tok"}, sess)

	require.NoError(t, os.WriteFile(f.Path(), []byte("{"), 0o600))
	_, _, err = f.Load()
	assert.Error(t, err)

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
}
