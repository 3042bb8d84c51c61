package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/lifedeck/internal/db"
	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

const identity = "bob@example.com"

func newTestStore(t *testing.T, base time.Time) *store.Store {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.InitSchema())

	clock := base
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	st := store.New(repo.New(database.X()), store.WithClock(now))
	require.NoError(t, st.Load(context.Background()))
	return st
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s Status) {
	l.mu.Lock()
	l.states = append(l.states, s.State)
	l.mu.Unlock()
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newTestEngine(t *testing.T, st *store.Store, blobs remote.BlobStore, docs remote.Collections, debounce time.Duration) *Engine {
	t.Helper()
	e := New(st, blobs, docs, Config{Debounce: debounce}, nil)
	t.Cleanup(e.Logout)
	return e
}

func addTasks(t *testing.T, st *store.Store, n int) []schema.Task {
	t.Helper()
	out := make([]schema.Task, n)
	for i := range n {
		task, err := st.AddTask(context.Background(), schema.Task{Title: fmt.Sprintf("Task %d", i)})
		require.NoError(t, err)
		out[i] = task
	}
	return out
}

func backupOf(t *testing.T, m *remote.Memory) store.Snapshot {
	t.Helper()
	data, ok := m.Blob(remote.BackupName(identity))
	require.True(t, ok, "backup blob missing")
	var snap store.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func TestEngine_CoalescesBurst(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	e := newTestEngine(t, st, mem, mem, 200*time.Millisecond)

	var log stateLog
	e.OnStateChange(log.record)

	res, err := e.Login(ctx, Session{Identity: identity, Token: "tok"})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, "tok", mem.Token())

	addTasks(t, st, 5)
	assert.Equal(t, StatePending, e.Status().State)

	require.Eventually(t, func() bool { return e.Status().State == StateSynced }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, 1, mem.Calls(remote.OpPutBlob))
	assert.Len(t, backupOf(t, mem).Tasks, 5)
	assert.Len(t, mem.Documents("tasks"), 5)

	states := log.all()
	assert.Equal(t, []State{StateIdle, StatePending, StatePending, StatePending, StatePending, StatePending, StateSyncing, StateSynced}, states)

	status := e.Status()
	assert.Equal(t, identity, status.Identity)
	assert.False(t, status.LastSync.IsZero())
	require.NotNil(t, status.LastReport)
	assert.Equal(t, 5, status.LastReport.Sent())
}

func TestEngine_DuplicatesAreSkipped(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	e := newTestEngine(t, st, mem, mem, time.Hour)
	_, err := e.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)

	tasks := addTasks(t, st, 8)
	// Left behind by an earlier partial sync under another owner tag, so
	// the replace-all listing does not see it.
	mem.Put("tasks", remote.Document{ID: tasks[3].ID, Owner: "legacy"})

	rep, err := e.SyncNow(ctx)
	require.NoError(t, err)

	res, ok := rep.Collection("tasks")
	require.True(t, ok)
	assert.Equal(t, 7, res.Sent)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, StateSynced, e.Status().State)
}

func TestEngine_ReplaceAllRemovesStaleRecords(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	e := newTestEngine(t, st, mem, mem, time.Hour)
	_, err := e.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)

	mem.Put("tasks", remote.Document{ID: "stale", Owner: identity})
	mem.Put("tasks", remote.Document{ID: "someone-else", Owner: "eve"})
	task := addTasks(t, st, 1)[0]

	rep, err := e.SyncNow(ctx)
	require.NoError(t, err)
	res, _ := rep.Collection("tasks")
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Sent)

	var ids []string
	for _, d := range mem.Documents("tasks") {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{task.ID, "someone-else"}, ids)
}

func TestEngine_CollectionFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	e := newTestEngine(t, st, mem, mem, time.Hour)
	_, err := e.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)

	addTasks(t, st, 2)
	for i := range 3 {
		_, err := st.AddNote(ctx, schema.Note{Title: fmt.Sprintf("Note %d", i)})
		require.NoError(t, err)
	}
	mem.FailNext(remote.CollectionOp(remote.OpList, "notes"), 1, errors.New("connection reset"))

	rep, err := e.SyncNow(ctx)
	require.NoError(t, err)

	notes, _ := rep.Collection("notes")
	assert.Equal(t, 3, notes.Errors)
	assert.Equal(t, 0, notes.Sent)
	assert.Contains(t, notes.Err, "connection reset")

	tasks, _ := rep.Collection("tasks")
	assert.Equal(t, 2, tasks.Sent)
	assert.Equal(t, 0, tasks.Errors)

	assert.Len(t, rep.Collections, len(CollectionNames()))
	assert.Equal(t, StateSynced, e.Status().State)
}

func TestEngine_BackupFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	e := newTestEngine(t, st, mem, mem, time.Hour)
	_, err := e.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)

	addTasks(t, st, 1)
	mem.FailNext(remote.OpPutBlob, 1, remote.ErrUnauthorized)

	_, err = e.SyncNow(ctx)
	assert.ErrorIs(t, err, remote.ErrUnauthorized)
	assert.Equal(t, StateError, e.Status().State)
	assert.Equal(t, 0, mem.Calls(remote.CollectionOp(remote.OpList, "tasks")))

	// The next mutation starts a new cycle.
	addTasks(t, st, 1)
	assert.Equal(t, StatePending, e.Status().State)
	require.NoError(t, e.Flush(ctx))
	assert.Equal(t, StateSynced, e.Status().State)
	assert.Len(t, backupOf(t, mem).Tasks, 2)
}

// gatedBlobs blocks the first PutBlob until gate is closed.
type gatedBlobs struct {
	*remote.Memory
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedBlobs) PutBlob(ctx context.Context, fileID string, data []byte) error {
	select {
	case g.entered <- struct{}{}:
		<-g.gate
	default:
	}
	return g.Memory.PutBlob(ctx, fileID, data)
}

func TestEngine_MutationDuringCycleQueuesOne(t *testing.T) {
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	blobs := &gatedBlobs{Memory: mem, entered: make(chan struct{}, 1), gate: make(chan struct{})}
	e := newTestEngine(t, st, blobs, mem, 20*time.Millisecond)
	_, err := e.Login(context.Background(), Session{Identity: identity})
	require.NoError(t, err)

	addTasks(t, st, 1)
	select {
	case <-blobs.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("first cycle did not start")
	}
	assert.Equal(t, StateSyncing, e.Status().State)

	addTasks(t, st, 2)
	assert.Equal(t, StatePending, e.Status().State)
	time.Sleep(60 * time.Millisecond)
	close(blobs.gate)

	require.Eventually(t, func() bool {
		return e.Status().State == StateSynced && mem.Calls(remote.OpPutBlob) == 2
	}, 3*time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 2, mem.Calls(remote.OpPutBlob))
	assert.Len(t, backupOf(t, mem).Tasks, 3)
}

func TestEngine_HydrateWithoutBackupIsNoop(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	addTasks(t, st, 2)
	before := st.Snapshot()

	mem := remote.NewMemory()
	e := newTestEngine(t, st, mem, mem, time.Hour)
	res, err := e.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, res.Applied)
	assert.NoError(t, res.Err)
	assert.Same(t, before, st.Snapshot())

	pulled, err := e.Pull(ctx)
	require.NoError(t, err)
	assert.False(t, pulled.Found)
	assert.Same(t, before, st.Snapshot())
	assert.Equal(t, StateIdle, e.Status().State)
}

func TestEngine_UnreadableBackupIsNoData(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	require.NoError(t, mem.PutBlob(ctx, remote.BackupName(identity), []byte("{not json")))

	e := newTestEngine(t, st, mem, mem, time.Hour)
	res, err := e.Pull(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	res, err = e.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.NoError(t, res.Err)
	assert.Empty(t, st.Snapshot().Tasks)
}

func TestEngine_EmptyBackupKeepsLocalData(t *testing.T) {
	for _, body := range []string{"null", "{}"} {
		t.Run(body, func(t *testing.T) {
			ctx := context.Background()
			st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
			addTasks(t, st, 3)
			before := st.Snapshot()

			mem := remote.NewMemory()
			e := newTestEngine(t, st, mem, mem, time.Hour)
			_, err := e.Login(ctx, Session{Identity: identity})
			require.NoError(t, err)
			require.NoError(t, mem.PutBlob(ctx, remote.BackupName(identity), []byte(body)))

			res, err := e.Pull(ctx)
			require.NoError(t, err)
			assert.False(t, res.Found)
			assert.False(t, res.Applied)
			assert.Same(t, before, st.Snapshot())
			assert.Len(t, st.Snapshot().Tasks, 3)
		})
	}
}

func TestEngine_LoginHydration(t *testing.T) {
	ctx := context.Background()
	mem := remote.NewMemory()

	// Device A writes at 08:00 and syncs.
	a := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	ea := newTestEngine(t, a, mem, mem, time.Hour)
	_, err := ea.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)
	addTasks(t, a, 3)
	_, err = ea.SyncNow(ctx)
	require.NoError(t, err)
	ea.Logout()

	t.Run("fresh device is hydrated", func(t *testing.T) {
		b := newTestStore(t, time.Date(2026, 10, 14, 7, 0, 0, 0, time.UTC))
		eb := newTestEngine(t, b, mem, mem, time.Hour)
		res, err := eb.Login(ctx, Session{Identity: identity})
		require.NoError(t, err)
		assert.True(t, res.Found)
		assert.True(t, res.Applied)
		assert.Equal(t, 3, res.Entities)
		assert.Equal(t, a.Snapshot().Tasks, b.Snapshot().Tasks)
		assert.True(t, a.Snapshot().UpdatedAt.Equal(b.Snapshot().UpdatedAt))

		// Hydration is not a local change.
		assert.Equal(t, StateIdle, eb.Status().State)
		assert.Equal(t, 1, mem.Calls(remote.OpPutBlob))
	})

	t.Run("newer local state is kept on login", func(t *testing.T) {
		c := newTestStore(t, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
		addTasks(t, c, 1)
		ec := newTestEngine(t, c, mem, mem, time.Hour)

		res, err := ec.Login(ctx, Session{Identity: identity})
		require.NoError(t, err)
		assert.True(t, res.Found)
		assert.False(t, res.Applied)
		assert.Len(t, c.Snapshot().Tasks, 1)

		// An explicit pull always replaces.
		res, err = ec.Pull(ctx)
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, a.Snapshot().Tasks, c.Snapshot().Tasks)
	})
}

func TestEngine_PullDropsPendingCycle(t *testing.T) {
	ctx := context.Background()
	mem := remote.NewMemory()
	require.NoError(t, mem.PutBlob(ctx, remote.BackupName(identity), []byte(`{"tasks":[],"storeUpdatedAt":"2026-10-14T10:00:00Z"}`)))

	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	e := newTestEngine(t, st, mem, mem, time.Hour)
	_, err := e.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)

	addTasks(t, st, 1)
	assert.True(t, e.Status().Pending)

	res, err := e.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Empty(t, st.Snapshot().Tasks)
	assert.False(t, e.Status().Pending)
	assert.Equal(t, StateIdle, e.Status().State)

	require.NoError(t, e.Flush(ctx))
	assert.Equal(t, 1, mem.Calls(remote.OpPutBlob))
}

func TestEngine_Logout(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	e := newTestEngine(t, st, mem, mem, 200*time.Millisecond)
	_, err := e.Login(ctx, Session{Identity: identity, Token: "tok"})
	require.NoError(t, err)

	addTasks(t, st, 1)
	e.Logout()

	status := e.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Empty(t, status.Identity)
	assert.False(t, status.Pending)
	assert.Empty(t, mem.Token())

	addTasks(t, st, 1)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, StateIdle, e.Status().State)
	assert.Equal(t, 0, mem.Calls(remote.OpPutBlob))

	_, err = e.SyncNow(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestEngine_TimerAfterLogoutIsQuiet(t *testing.T) {
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()

	var logs strings.Builder
	e := New(st, mem, mem, Config{Debounce: time.Hour}, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, e.Resume(Session{Identity: identity}))
	addTasks(t, st, 1)
	e.Logout()

	e.fire()
	assert.NotContains(t, logs.String(), "sync cycle failed")
	assert.Equal(t, 0, mem.Calls(remote.OpPutBlob))
}

func TestEngine_ResumeSkipsHydration(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()

	remoteSnap := store.Snapshot{Dataset: schema.EmptyDataset(), UpdatedAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	remoteSnap.Tasks = []schema.Task{{ID: "remote", Title: "From the cloud", Status: schema.StatusTodo, Priority: schema.PriorityP3}}
	data, err := json.Marshal(remoteSnap)
	require.NoError(t, err)
	require.NoError(t, mem.PutBlob(ctx, remote.BackupName(identity), data))

	e := newTestEngine(t, st, mem, mem, time.Hour)
	before := st.Snapshot()
	require.NoError(t, e.Resume(Session{Identity: identity, Token: "tok"}))

	assert.Same(t, before, st.Snapshot())
	assert.Equal(t, 0, mem.Calls(remote.OpGetBlob))
	assert.Equal(t, "tok", mem.Token())
	assert.Equal(t, identity, e.Status().Identity)

	addTasks(t, st, 1)
	require.NoError(t, e.Flush(ctx))
	assert.Equal(t, StateSynced, e.Status().State)
	assert.Len(t, backupOf(t, mem).Tasks, 1)

	assert.Error(t, e.Resume(Session{}))
}

func TestEngine_LoginRequiresIdentity(t *testing.T) {
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	e := newTestEngine(t, st, mem, mem, time.Hour)

	_, err := e.Login(context.Background(), Session{Identity: "  "})
	assert.Error(t, err)
}

func TestEngine_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	mem := remote.NewMemory()
	backend := remote.NewRetry(mem, mem, remote.RetryPolicy{BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}, nil)
	e := newTestEngine(t, st, backend, backend, time.Hour)
	_, err := e.Login(ctx, Session{Identity: identity})
	require.NoError(t, err)

	addTasks(t, st, 2)
	mem.FailNext(remote.OpPutBlob, 2, &remote.StatusError{Code: 503})
	mem.FailNext(remote.CollectionOp(remote.OpCreate, "tasks"), 1, &remote.StatusError{Code: 502})

	rep, err := e.SyncNow(ctx)
	require.NoError(t, err)
	res, _ := rep.Collection("tasks")
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 3, mem.Calls(remote.OpPutBlob))
}

func TestToDocumentCapsFields(t *testing.T) {
	note := schema.Note{
		ID:      "n1",
		Title:   strings.Repeat("t", 300),
		Content: strings.Repeat("c", 30000),
		Tags:    []string{"a", "b"},
	}
	doc, err := toDocument(identity, record{id: note.ID, value: note})
	require.NoError(t, err)

	assert.Equal(t, "n1", doc.ID)
	assert.Equal(t, identity, doc.Owner)
	assert.Equal(t, identity, doc.Fields["owner"])
	assert.Len(t, doc.Fields["title"], schema.MaxTitleLen)
	assert.Len(t, doc.Fields["content"], schema.MaxTextLen)
	assert.Equal(t, `["a","b"]`, doc.Fields["tags"])
	assert.Equal(t, false, doc.Fields["pinned"])
	assert.Nil(t, doc.Fields["folderId"])

	again, err := toDocument(identity, record{id: note.ID, value: note})
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}
