package remote

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// maxBlobSize bounds uploaded backups.
const maxBlobSize = 32 << 20

// HandlerOption configures NewHandler.
type HandlerOption func(*handler)

// WithTokenCheck rejects requests whose bearer token fails check with 401.
func WithTokenCheck(check func(token string) bool) HandlerOption {
	return func(h *handler) { h.check = check }
}

// WithHandlerLogger sets the request error logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *handler) { h.log = logger }
}

type handler struct {
	blobs BlobStore
	docs  Collections
	check func(string) bool
	log   *slog.Logger
}

// NewHandler serves the backend HTTP API that Client speaks, on top of
// blobs and docs.
func NewHandler(blobs BlobStore, docs Collections, opts ...HandlerOption) http.Handler {
	h := &handler{blobs: blobs, docs: docs, log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /v1/blobs/{fileID}", h.auth(h.putBlob))
	mux.HandleFunc("GET /v1/blobs/{fileID}", h.auth(h.getBlob))
	mux.HandleFunc("DELETE /v1/blobs/{fileID}", h.auth(h.deleteBlob))
	mux.HandleFunc("GET /v1/collections/{name}/documents", h.auth(h.listDocuments))
	mux.HandleFunc("POST /v1/collections/{name}/documents", h.auth(h.createDocument))
	mux.HandleFunc("DELETE /v1/collections/{name}/documents/{id}", h.auth(h.deleteDocument))
	return mux
}

func (h *handler) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.check != nil {
			token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !h.check(token) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// fail maps backend errors onto status codes.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	var se *StatusError
	switch {
	case errors.As(err, &se):
		code = se.Code
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		code = http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		code = http.StatusUnauthorized
	}
	if code >= 500 {
		h.log.Warn("remote request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), code)
}

func (h *handler) putBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBlobSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err := h.blobs.PutBlob(r.Context(), r.PathValue("fileID"), data); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getBlob(w http.ResponseWriter, r *http.Request) {
	data, err := h.blobs.GetBlob(r.Context(), r.PathValue("fileID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (h *handler) deleteBlob(w http.ResponseWriter, r *http.Request) {
	if err := h.blobs.DeleteBlob(r.Context(), r.PathValue("fileID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner := q.Get("owner")
	if owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(q.Get("limit"), PageSize)
	if err != nil || limit <= 0 || limit > PageSize {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}

	docs, err := h.docs.ListDocuments(r.Context(), r.PathValue("name"), owner, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listResponse{Documents: docs})
}

func (h *handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var doc Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBlobSize)).Decode(&doc); err != nil {
		http.Error(w, "invalid document: "+err.Error(), http.StatusBadRequest)
		return
	}
	if doc.ID == "" {
		http.Error(w, "document id is required", http.StatusBadRequest)
		return
	}
	if err := h.docs.CreateDocument(r.Context(), r.PathValue("name"), doc); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.DeleteDocument(r.Context(), r.PathValue("name"), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
