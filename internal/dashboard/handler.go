package dashboard

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

// SyncStateData is the payload of a sync_state message.
type SyncStateData struct {
	State    cloudsync.State `json:"state"`
	Identity string          `json:"identity,omitempty"`
	Pending  bool            `json:"pending"`
	LastSync time.Time       `json:"lastSync,omitzero"`
}

// SyncReportData is the payload of a sync_report message.
type SyncReportData struct {
	Sent        int                          `json:"sent"`
	Skipped     int                          `json:"skipped"`
	Errors      int                          `json:"errors"`
	BackupBytes int                          `json:"backupBytes"`
	Duration    time.Duration                `json:"duration"`
	Error       string                       `json:"error,omitempty"`
	Collections []cloudsync.CollectionResult `json:"collections"`
}

// Handler turns store snapshots and sync state changes into dashboard
// messages.
type Handler struct {
	server *Server
	logger *slog.Logger

	mu         sync.Mutex
	stats      store.Stats
	sync       cloudsync.Status
	lastReport *cloudsync.Report
}

// NewHandler creates a handler broadcasting on server. It also installs
// the server's hello messages: current stats and sync state.
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		server: server,
		logger: logger,
		sync:   cloudsync.Status{State: cloudsync.StateIdle},
	}
	server.SetHello(h.hello)
	return h
}

// Attach subscribes the handler to st and engine. The returned func
// unsubscribes from the store.
func (h *Handler) Attach(st *store.Store, engine *cloudsync.Engine) (detach func()) {
	h.OnSnapshot(st.Snapshot())
	cancel := st.Subscribe(h.OnSnapshot)
	if engine != nil {
		h.OnSyncState(engine.Status())
		engine.OnStateChange(h.OnSyncState)
	}
	return cancel
}

// OnSnapshot handles a published store snapshot.
func (h *Handler) OnSnapshot(snap *store.Snapshot) {
	stats := snap.Stats()
	h.mu.Lock()
	h.stats = stats
	h.mu.Unlock()
	h.send(MessageTypeStats, stats)
}

// OnSyncState handles a sync engine state change. A new report is
// broadcast once, when the state settles on synced or error.
func (h *Handler) OnSyncState(st cloudsync.Status) {
	h.mu.Lock()
	h.sync = st
	fresh := st.LastReport != nil && st.LastReport != h.lastReport &&
		(st.State == cloudsync.StateSynced || st.State == cloudsync.StateError)
	if fresh {
		h.lastReport = st.LastReport
	}
	h.mu.Unlock()

	h.send(MessageTypeSyncState, syncStateData(st))
	if fresh {
		h.logger.Debug("sync report", "state", st.State, "sent", st.LastReport.Sent(), "errors", st.LastReport.Errors())
		h.send(MessageTypeSyncReport, reportData(st.LastReport))
	}
}

// Stats returns the last stats seen.
func (h *Handler) Stats() store.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) hello() []Message {
	h.mu.Lock()
	stats, st := h.stats, h.sync
	h.mu.Unlock()

	var out []Message
	for _, m := range []struct {
		typ  MessageType
		data any
	}{
		{MessageTypeStats, stats},
		{MessageTypeSyncState, syncStateData(st)},
	} {
		if msg, ok := h.message(m.typ, m.data); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (h *Handler) send(typ MessageType, data any) {
	if msg, ok := h.message(typ, data); ok {
		h.server.Broadcast(msg)
	}
}

func (h *Handler) message(typ MessageType, data any) (Message, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal dashboard data", "type", typ, "error", err)
		return Message{}, false
	}
	return Message{Type: typ, Timestamp: time.Now(), Data: raw}, true
}

func syncStateData(st cloudsync.Status) SyncStateData {
	return SyncStateData{
		State:    st.State,
		Identity: st.Identity,
		Pending:  st.Pending,
		LastSync: st.LastSync,
	}
}

func reportData(r *cloudsync.Report) SyncReportData {
	d := SyncReportData{
		Sent:        r.Sent(),
		Skipped:     r.Skipped(),
		Errors:      r.Errors(),
		BackupBytes: r.BackupBytes,
		Duration:    r.FinishedAt.Sub(r.StartedAt),
		Collections: r.Collections,
	}
	if r.Err != nil {
		d.Error = r.Err.Error()
	}
	return d
}
