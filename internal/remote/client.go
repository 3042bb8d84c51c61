package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxErrorBody bounds how much of a failed response body is kept in a
// StatusError.
const maxErrorBody = 512

// Client talks to the lifedeck backend over HTTP.
type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient returns a client for the backend at baseURL. A nil httpClient
// means http.DefaultClient; per-call timeouts come from the context (see
// Retry).
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

// SetToken sets the bearer token sent with every request. An empty token
// sends none.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	target := c.base.String() + "/v1/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// do sends one request. want lists the status codes treated as success;
// anything else becomes a *StatusError.
func (c *Client) do(ctx context.Context, op, method, target string, body []byte, contentType string, want ...int) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, permanentError{fmt.Errorf("%s: %w", op, err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	for _, code := range want {
		if resp.StatusCode == code {
			return data, nil
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: msg}
}

// PutBlob uploads data under fileID, replacing any previous blob.
func (c *Client) PutBlob(ctx context.Context, fileID string, data []byte) error {
	_, err := c.do(ctx, "put blob", http.MethodPut, c.endpoint(nil, "blobs", fileID), data, "application/octet-stream",
		http.StatusOK, http.StatusCreated, http.StatusNoContent)
	return err
}

// GetBlob downloads the blob stored under fileID.
func (c *Client) GetBlob(ctx context.Context, fileID string) ([]byte, error) {
	return c.do(ctx, "get blob", http.MethodGet, c.endpoint(nil, "blobs", fileID), nil, "", http.StatusOK)
}

// DeleteBlob removes the blob stored under fileID. Deleting a missing blob
// is not an error.
func (c *Client) DeleteBlob(ctx context.Context, fileID string) error {
	_, err := c.do(ctx, "delete blob", http.MethodDelete, c.endpoint(nil, "blobs", fileID), nil, "",
		http.StatusOK, http.StatusNoContent, http.StatusNotFound)
	return err
}

// listResponse is the body of a document listing.
type listResponse struct {
	Documents []Document `json:"documents"`
}

// ListDocuments returns one page of documents owned by owner.
func (c *Client) ListDocuments(ctx context.Context, collection, owner string, limit, offset int) ([]Document, error) {
	q := url.Values{}
	q.Set("owner", owner)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	data, err := c.do(ctx, "list "+collection, http.MethodGet, c.endpoint(q, "collections", collection, "documents"), nil, "", http.StatusOK)
	if err != nil {
		return nil, err
	}
	var out listResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, permanentError{fmt.Errorf("list %s: decode: %w", collection, err)}
	}
	return out.Documents, nil
}

// CreateDocument creates doc in collection. An existing id yields an error
// matching ErrDuplicate.
func (c *Client) CreateDocument(ctx context.Context, collection string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return permanentError{fmt.Errorf("create %s/%s: encode: %w", collection, doc.ID, err)}
	}
	_, err = c.do(ctx, "create "+collection, http.MethodPost, c.endpoint(nil, "collections", collection, "documents"), body, "application/json",
		http.StatusOK, http.StatusCreated)
	return err
}

// DeleteDocument removes the document with id from collection. Deleting a
// missing document is not an error.
func (c *Client) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := c.do(ctx, "delete "+collection, http.MethodDelete, c.endpoint(nil, "collections", collection, "documents", id), nil, "",
		http.StatusOK, http.StatusNoContent, http.StatusNotFound)
	return err
}

// Ping checks that the backend answers. It is used by `lifedeck status`.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := c.do(ctx, "ping", http.MethodGet, c.endpoint(nil, "health"), nil, "", http.StatusOK)
	return time.Since(start), err
}
