// Package remote is the client side of the lifedeck backend: per-user
// blob storage for full backups and a per-user document collection API for
// structured sync.
//
// Two implementations are provided. Client speaks the HTTP API; Memory
// keeps everything in process and can inject faults. NewHandler serves
// the HTTP API on top of any implementation, which is how the dev server
// and the client tests run.
package remote

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
)

// PageSize is the page size used when listing documents.
const PageSize = 100

// BlobStore stores opaque per-user blobs.
type BlobStore interface {
	PutBlob(ctx context.Context, fileID string, data []byte) error
	// GetBlob returns ErrNotFound when no blob exists.
	GetBlob(ctx context.Context, fileID string) ([]byte, error)
	DeleteBlob(ctx context.Context, fileID string) error
}

// Document is one record in a remote collection.
type Document struct {
	ID     string         `json:"id"`
	Owner  string         `json:"owner"`
	Fields map[string]any `json:"fields"`
}

// Collections is the per-user document collection API.
type Collections interface {
	// ListDocuments returns up to limit documents owned by owner, starting
	// at offset.
	ListDocuments(ctx context.Context, collection, owner string, limit, offset int) ([]Document, error)
	// CreateDocument returns ErrDuplicate when doc.ID already exists.
	CreateDocument(ctx context.Context, collection string, doc Document) error
	DeleteDocument(ctx context.Context, collection, id string) error
}

// Authenticator is implemented by backends that carry a session token.
type Authenticator interface {
	SetToken(token string)
}

// ListAll pages through every document owned by owner.
func ListAll(ctx context.Context, c Collections, collection, owner string) ([]Document, error) {
	var all []Document
	for offset := 0; ; offset += PageSize {
		page, err := c.ListDocuments(ctx, collection, owner, PageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < PageSize {
			return all, nil
		}
	}
}

// Sentinel errors. Client and Memory wrap these so callers can use
// errors.Is.
var (
	ErrNotFound     = errors.New("remote: not found")
	ErrDuplicate    = errors.New("remote: duplicate")
	ErrUnauthorized = errors.New("remote: unauthorized")
)

// StatusError is an unexpected HTTP response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps well-known status codes onto the sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrDuplicate
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

// IsRetryable reports whether err is transient: a network failure, a
// timeout, a 5xx or a 429. Auth failures, missing objects, duplicates and
// context cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var pe permanentError
	if errors.As(err, &pe) {
		return false
	}
	return true
}

// permanentError marks local failures (bad request encoding, invalid URL)
// that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

const maxFileIDLen = 64

// FileID derives the deterministic blob identifier for a user identity.
// The result only contains [a-z0-9._-] and is at most 64 bytes; identities
// that had to be shortened get an fnv suffix so distinct inputs stay
// distinct.
func FileID(identity string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(identity)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastDash = r == '-'
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	id := strings.Trim(b.String(), "-.")
	if id == "" {
		id = "user"
	}

	if len(id) > maxFileIDLen || id != strings.ToLower(strings.TrimSpace(identity)) {
		h := fnv.New32a()
		h.Write([]byte(identity))
		suffix := fmt.Sprintf("-%08x", h.Sum32())
		if len(id) > maxFileIDLen-len(suffix) {
			id = id[:maxFileIDLen-len(suffix)]
		}
		id += suffix
	}
	return id
}

// BackupName is the blob name holding a user's full snapshot.
func BackupName(identity string) string {
	return "backup_" + FileID(identity) + ".json"
}
