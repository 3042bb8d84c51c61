package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process backend implementing BlobStore and Collections.
// It backs `lifedeck remote-dev` and the sync tests.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
	// docs is collection -> id -> document.
	docs map[string]map[string]Document
	// faults is op -> queued errors, consumed one per call.
	faults map[string][]error
	calls  map[string]int
	token  string
}

// NewMemory returns an empty backend.
func NewMemory() *Memory {
	return &Memory{
		blobs:  make(map[string][]byte),
		docs:   make(map[string]map[string]Document),
		faults: make(map[string][]error),
		calls:  make(map[string]int),
	}
}

// Fault ops accepted by FailNext. Collection ops are suffixed with the
// collection name, e.g. "create:tasks".
const (
	OpPutBlob    = "putblob"
	OpGetBlob    = "getblob"
	OpDeleteBlob = "deleteblob"
	OpList       = "list"
	OpCreate     = "create"
	OpDelete     = "delete"
)

// CollectionOp names a fault key for a collection operation.
func CollectionOp(op, collection string) string { return op + ":" + collection }

// FailNext makes the next n calls of op return err.
func (m *Memory) FailNext(op string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for range n {
		m.faults[op] = append(m.faults[op], err)
	}
}

// Calls reports how many times op was invoked (including failed calls).
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// SetToken records the token. Memory does not enforce it.
func (m *Memory) SetToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// Token returns the last token set.
func (m *Memory) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// enter counts the call and pops a queued fault. Caller holds mu.
func (m *Memory) enter(ctx context.Context, op string) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if q := m.faults[op]; len(q) > 0 {
		m.faults[op] = q[1:]
		return q[0]
	}
	return nil
}

// PutBlob implements BlobStore.
func (m *Memory) PutBlob(ctx context.Context, fileID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpPutBlob); err != nil {
		return err
	}
	m.blobs[fileID] = append([]byte(nil), data...)
	return nil
}

// GetBlob implements BlobStore.
func (m *Memory) GetBlob(ctx context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpGetBlob); err != nil {
		return nil, err
	}
	data, ok := m.blobs[fileID]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", fileID, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// DeleteBlob implements BlobStore.
func (m *Memory) DeleteBlob(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpDeleteBlob); err != nil {
		return err
	}
	delete(m.blobs, fileID)
	return nil
}

// ListDocuments pages through owner's documents ordered by id.
func (m *Memory) ListDocuments(ctx context.Context, collection, owner string, limit, offset int) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, CollectionOp(OpList, collection)); err != nil {
		return nil, err
	}
	var owned []Document
	for _, d := range m.docs[collection] {
		if d.Owner == owner {
			owned = append(owned, d)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(owned) {
		return []Document{}, nil
	}
	end := len(owned)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]Document, 0, end-offset)
	for _, d := range owned[offset:end] {
		out = append(out, copyDocument(d))
	}
	return out, nil
}

// CreateDocument implements Collections. An existing id is ErrDuplicate.
func (m *Memory) CreateDocument(ctx context.Context, collection string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, CollectionOp(OpCreate, collection)); err != nil {
		return err
	}
	if doc.ID == "" {
		return permanentError{fmt.Errorf("create %s: empty document id", collection)}
	}
	c := m.docs[collection]
	if c == nil {
		c = make(map[string]Document)
		m.docs[collection] = c
	}
	if _, ok := c[doc.ID]; ok {
		return fmt.Errorf("create %s/%s: %w", collection, doc.ID, ErrDuplicate)
	}
	c[doc.ID] = copyDocument(doc)
	return nil
}

// DeleteDocument implements Collections.
func (m *Memory) DeleteDocument(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, CollectionOp(OpDelete, collection)); err != nil {
		return err
	}
	delete(m.docs[collection], id)
	return nil
}

// Put stores doc directly, bypassing faults and duplicate checks. Tests use
// it to seed leftover remote state.
func (m *Memory) Put(collection string, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.docs[collection]
	if c == nil {
		c = make(map[string]Document)
		m.docs[collection] = c
	}
	c[doc.ID] = copyDocument(doc)
}

// Documents returns every document in collection regardless of owner,
// ordered by id.
func (m *Memory) Documents(collection string) []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Document, 0, len(m.docs[collection]))
	for _, d := range m.docs[collection] {
		out = append(out, copyDocument(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Blob returns the stored blob under fileID.
func (m *Memory) Blob(fileID string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[fileID]
	return append([]byte(nil), data...), ok
}

func copyDocument(d Document) Document {
	fields := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	d.Fields = fields
	return d
}
