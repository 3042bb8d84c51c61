package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/db"
	"github.com/mschirtzinger/lifedeck/internal/repo"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(&Config{Addr: "127.0.0.1:0"})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func dial(t *testing.T, server *Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, server *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for server.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, server.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Addr: "127.0.0.1:0"})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := server.Addr(); addr == "" || addr == "127.0.0.1:0" {
		t.Fatalf("Addr() = %q, want bound address", addr)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestHelloMessages(t *testing.T) {
	server := startServer(t)
	h := NewHandler(server, nil)

	snap := &store.Snapshot{Dataset: schema.EmptyDataset()}
	snap.Tasks = []schema.Task{{ID: "a", Status: schema.StatusTodo}, {ID: "b", Status: schema.StatusDone}}
	h.OnSnapshot(snap)

	conn := dial(t, server)

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeStats {
		t.Fatalf("first message type = %s, want %s", msg.Type, MessageTypeStats)
	}
	var stats store.Stats
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Total != 2 || stats.OpenTasks != 1 {
		t.Errorf("stats = %+v, want total 2, open 1", stats)
	}

	msg = readMessage(t, conn)
	if msg.Type != MessageTypeSyncState {
		t.Fatalf("second message type = %s, want %s", msg.Type, MessageTypeSyncState)
	}
	var st SyncStateData
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		t.Fatalf("Failed to unmarshal sync state: %v", err)
	}
	if st.State != cloudsync.StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
}

func TestBareServerSendsEmptyStats(t *testing.T) {
	server := startServer(t)
	conn := dial(t, server)

	if msg := readMessage(t, conn); msg.Type != MessageTypeStats {
		t.Errorf("welcome type = %s, want %s", msg.Type, MessageTypeStats)
	}
}

func TestStatsFollowStoreMutations(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()
	if err := database.InitSchema(); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	st := store.New(repo.New(database.X()))
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	server := startServer(t)
	h := NewHandler(server, nil)
	detach := h.Attach(st, nil)
	defer detach()

	conn := dial(t, server)
	readMessage(t, conn)
	readMessage(t, conn)
	waitForClients(t, server, 1)

	if _, err := st.AddHabit(context.Background(), schema.Habit{Name: "Read"}); err != nil {
		t.Fatalf("AddHabit() error = %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeStats {
		t.Fatalf("message type = %s, want %s", msg.Type, MessageTypeStats)
	}
	var stats store.Stats
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Counts["habits"] != 1 {
		t.Errorf("habits count = %d, want 1", stats.Counts["habits"])
	}
	if got := h.Stats().Total; got != 1 {
		t.Errorf("Handler.Stats().Total = %d, want 1", got)
	}
}

func TestSyncReportSentOnce(t *testing.T) {
	server := startServer(t)
	h := NewHandler(server, nil)
	conn := dial(t, server)
	readMessage(t, conn)
	readMessage(t, conn)
	waitForClients(t, server, 1)

	start := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	report := &cloudsync.Report{
		StartedAt:   start,
		FinishedAt:  start.Add(2 * time.Second),
		BackupBytes: 512,
		Collections: []cloudsync.CollectionResult{{Name: "tasks", Sent: 7, Skipped: 1}},
	}
	status := cloudsync.Status{State: cloudsync.StateSynced, Identity: "bob", LastReport: report, LastSync: report.FinishedAt}

	h.OnSyncState(status)
	if msg := readMessage(t, conn); msg.Type != MessageTypeSyncState {
		t.Fatalf("message type = %s, want %s", msg.Type, MessageTypeSyncState)
	}
	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncReport {
		t.Fatalf("message type = %s, want %s", msg.Type, MessageTypeSyncReport)
	}
	var data SyncReportData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal report: %v", err)
	}
	if data.Sent != 7 || data.Skipped != 1 || data.Duration != 2*time.Second {
		t.Errorf("report = %+v", data)
	}

	// Same report again: state only.
	status.State = cloudsync.StatePending
	h.OnSyncState(status)
	status.State = cloudsync.StateSynced
	h.OnSyncState(status)
	for range 2 {
		if msg := readMessage(t, conn); msg.Type != MessageTypeSyncState {
			t.Fatalf("message type = %s, want %s", msg.Type, MessageTypeSyncState)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("health = %+v", body)
	}
}
