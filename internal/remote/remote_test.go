package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileID(t *testing.T) {
	safe := regexp.MustCompile(`^[a-z0-9._-]+$`)

	t.Run("clean identity is unchanged", func(t *testing.T) {
		assert.Equal(t, "bob", FileID("bob"))
		assert.Equal(t, "user_42.x", FileID("user_42.x"))
	})

	t.Run("unsafe characters are replaced and suffixed", func(t *testing.T) {
		id := FileID("Alice@Example.com")
		assert.Regexp(t, safe, id)
		assert.True(t, strings.HasPrefix(id, "alice-example.com-"), id)
		assert.Equal(t, id, FileID("Alice@Example.com"))
	})

	t.Run("distinct inputs stay distinct", func(t *testing.T) {
		assert.NotEqual(t, FileID("a@b"), FileID("a#b"))
	})

	t.Run("long identities are bounded", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		id := FileID(long)
		assert.Len(t, id, maxFileIDLen)
		assert.Regexp(t, safe, id)
		assert.NotEqual(t, id, FileID(long+"b"))
	})

	t.Run("empty identity", func(t *testing.T) {
		id := FileID("  ")
		assert.Regexp(t, safe, id)
		assert.True(t, strings.HasPrefix(id, "user"))
	})

	assert.Equal(t, "backup_bob.json", BackupName("bob"))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"network", errors.New("dial tcp: connection refused"), true},
		{"duplicate", fmt.Errorf("create: %w", ErrDuplicate), false},
		{"unauthorized", &StatusError{Code: http.StatusUnauthorized}, false},
		{"forbidden", &StatusError{Code: http.StatusForbidden}, false},
		{"not found", &StatusError{Code: http.StatusNotFound}, false},
		{"conflict", &StatusError{Code: http.StatusConflict}, false},
		{"bad request", &StatusError{Code: http.StatusBadRequest}, false},
		{"rate limited", &StatusError{Code: http.StatusTooManyRequests}, true},
		{"server error", &StatusError{Code: http.StatusBadGateway}, true},
		{"permanent", permanentError{errors.New("bad url")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestStatusErrorUnwrap(t *testing.T) {
	assert.ErrorIs(t, &StatusError{Code: 404}, ErrNotFound)
	assert.ErrorIs(t, &StatusError{Code: 409}, ErrDuplicate)
	assert.ErrorIs(t, &StatusError{Code: 403}, ErrUnauthorized)
	assert.Contains(t, (&StatusError{Op: "get blob", Code: 500, Body: "boom"}).Error(), "get blob: unexpected status 500: boom")
}

func TestMemoryListPaginates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := range 250 {
		require.NoError(t, m.CreateDocument(ctx, "tasks", Document{ID: fmt.Sprintf("d%03d", i), Owner: "u"}))
	}
	require.NoError(t, m.CreateDocument(ctx, "tasks", Document{ID: "other", Owner: "v"}))

	page, err := m.ListDocuments(ctx, "tasks", "u", PageSize, 200)
	require.NoError(t, err)
	assert.Len(t, page, 50)
	assert.Equal(t, "d200", page[0].ID)

	all, err := ListAll(ctx, m, "tasks", "u")
	require.NoError(t, err)
	assert.Len(t, all, 250)
	assert.Equal(t, 3, m.Calls(CollectionOp(OpList, "tasks"))-1)
}

func TestMemoryFaults(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	m.FailNext(OpPutBlob, 1, boom)

	assert.ErrorIs(t, m.PutBlob(ctx, "f", []byte("x")), boom)
	require.NoError(t, m.PutBlob(ctx, "f", []byte("x")))
	assert.Equal(t, 2, m.Calls(OpPutBlob))

	_, err := m.GetBlob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newTestServer(t *testing.T, m *Memory) *Client {
	t.Helper()
	srv := httptest.NewServer(NewHandler(m, m, WithTokenCheck(func(tok string) bool { return tok == "secret" })))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	c.SetToken("secret")
	return c
}

func TestClientBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := newTestServer(t, m)

	_, err := c.GetBlob(ctx, "backup_bob.json")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.PutBlob(ctx, "backup_bob.json", []byte(`{"tasks":[]}`)))
	data, err := c.GetBlob(ctx, "backup_bob.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks":[]}`, string(data))

	stored, ok := m.Blob("backup_bob.json")
	require.True(t, ok)
	assert.Equal(t, data, stored)

	require.NoError(t, c.DeleteBlob(ctx, "backup_bob.json"))
	require.NoError(t, c.DeleteBlob(ctx, "backup_bob.json"))
	_, ok = m.Blob("backup_bob.json")
	assert.False(t, ok)
}

func TestClientUnauthorized(t *testing.T) {
	c := newTestServer(t, NewMemory())
	c.SetToken("expired")

	err := c.PutBlob(context.Background(), "f", []byte("x"))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, IsRetryable(err))
}

func TestClientDocuments(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := newTestServer(t, m)

	doc := Document{ID: "t1", Owner: "bob", Fields: map[string]any{"title": "Draft report", "order": float64(2)}}
	require.NoError(t, c.CreateDocument(ctx, "tasks", doc))

	err := c.CreateDocument(ctx, "tasks", doc)
	assert.ErrorIs(t, err, ErrDuplicate)

	for i := range 120 {
		require.NoError(t, c.CreateDocument(ctx, "tasks", Document{ID: fmt.Sprintf("x%03d", i), Owner: "bob"}))
	}
	require.NoError(t, c.CreateDocument(ctx, "tasks", Document{ID: "y", Owner: "eve"}))

	all, err := ListAll(ctx, c, "tasks", "bob")
	require.NoError(t, err)
	assert.Len(t, all, 121)
	assert.Equal(t, doc, all[0])

	require.NoError(t, c.DeleteDocument(ctx, "tasks", "t1"))
	require.NoError(t, c.DeleteDocument(ctx, "tasks", "t1"))
	assert.Len(t, m.Documents("tasks"), 121)
}

func TestClientServerError(t *testing.T) {
	m := NewMemory()
	c := newTestServer(t, m)
	m.FailNext(OpPutBlob, 1, errors.New("disk full"))

	err := c.PutBlob(context.Background(), "f", []byte("x"))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Contains(t, se.Body, "disk full")
	assert.True(t, IsRetryable(err))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil)
	assert.Error(t, err)
}

// instantTimer fires at once and records the waits it was asked for.
type instantTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func newTestRetry(m *Memory, policy RetryPolicy) (*Retry, *[]time.Duration) {
	r := NewRetry(m, m, policy, nil)
	timer := &instantTimer{}
	r.timer = timer
	return r, &timer.waits
}

func TestRetryTransient(t *testing.T) {
	m := NewMemory()
	r, waits := newTestRetry(m, RetryPolicy{})
	m.FailNext(OpPutBlob, 2, &StatusError{Code: http.StatusServiceUnavailable})

	require.NoError(t, r.PutBlob(context.Background(), "f", []byte("x")))
	assert.Equal(t, 3, m.Calls(OpPutBlob))
	assert.Len(t, *waits, 2)
}

func TestRetryGivesUp(t *testing.T) {
	m := NewMemory()
	r, waits := newTestRetry(m, RetryPolicy{Attempts: 3})
	m.FailNext(CollectionOp(OpList, "tasks"), 5, errors.New("connection reset"))

	_, err := r.ListDocuments(context.Background(), "tasks", "bob", PageSize, 0)
	assert.Error(t, err)
	assert.Equal(t, 3, m.Calls(CollectionOp(OpList, "tasks")))
	assert.Len(t, *waits, 2)
}

func TestRetrySkipsFinalErrors(t *testing.T) {
	m := NewMemory()
	r, waits := newTestRetry(m, RetryPolicy{})
	require.NoError(t, m.CreateDocument(context.Background(), "tasks", Document{ID: "a", Owner: "bob"}))

	err := r.CreateDocument(context.Background(), "tasks", Document{ID: "a", Owner: "bob"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 2, m.Calls(CollectionOp(OpCreate, "tasks")))
	assert.Empty(t, *waits)
}

func TestRetryStopsOnCancel(t *testing.T) {
	m := NewMemory()
	r, _ := newTestRetry(m, RetryPolicy{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.PutBlob(ctx, "f", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.Calls(OpPutBlob))
}

func TestRetryForwardsToken(t *testing.T) {
	m := NewMemory()
	r := NewRetry(m, m, RetryPolicy{}, nil)
	r.SetToken("abc")
	assert.Equal(t, "abc", m.Token())
}

func TestBackoff(t *testing.T) {
	p := DefaultRetryPolicy
	for range 20 {
		b := p.backOff(context.Background())
		first := b.NextBackOff()
		assert.GreaterOrEqual(t, first, 250*time.Millisecond)
		assert.LessOrEqual(t, first, 750*time.Millisecond)
		assert.NotEqual(t, backoff.Stop, b.NextBackOff())
		assert.Equal(t, backoff.Stop, b.NextBackOff(), "3 attempts allow 2 retries")
	}

	long := RetryPolicy{Attempts: 20}.withDefaults()
	b := long.backOff(context.Background())
	var last time.Duration
	for range 15 {
		last = b.NextBackOff()
	}
	assert.GreaterOrEqual(t, last, 4*time.Second)
	assert.LessOrEqual(t, last, 12*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, backoff.Stop, p.backOff(ctx).NextBackOff())
}

func TestRetryCancelDuringWaitKeepsCallError(t *testing.T) {
	m := NewMemory()
	r := NewRetry(m, m, RetryPolicy{BaseBackoff: time.Hour, MaxBackoff: time.Hour}, nil)
	m.FailNext(OpPutBlob, 1, &StatusError{Code: http.StatusBadGateway})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.PutBlob(ctx, "f", []byte("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, 1, m.Calls(OpPutBlob))
}
