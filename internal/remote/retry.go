package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds every remote call: how many attempts, how long each
// may take, and how long to back off between them.
type RetryPolicy struct {
	Attempts    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
}

// DefaultRetryPolicy is used for zero fields of a RetryPolicy.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:    3,
	BaseBackoff: 500 * time.Millisecond,
	MaxBackoff:  8 * time.Second,
	Timeout:     15 * time.Second,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = DefaultRetryPolicy.BaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultRetryPolicy.MaxBackoff
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultRetryPolicy.Timeout
	}
	return p
}

// backOff builds the schedule for one call: exponential from BaseBackoff,
// doubling up to MaxBackoff with 50% jitter, at most Attempts-1 retries,
// stopped early when ctx ends.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)
}

// Retry wraps a remote backend with per-attempt timeouts and bounded
// retries of transient failures.
type Retry struct {
	blobs  BlobStore
	docs   Collections
	policy RetryPolicy
	log    *slog.Logger

	// timer is replaced in tests; nil uses a real timer.
	timer backoff.Timer
}

// NewRetry wraps blobs and docs. Either may be nil if the caller only uses
// the other half.
func NewRetry(blobs BlobStore, docs Collections, policy RetryPolicy, logger *slog.Logger) *Retry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retry{
		blobs:  blobs,
		docs:   docs,
		policy: policy.withDefaults(),
		log:    logger,
	}
}

// Policy returns the effective policy.
func (r *Retry) Policy() RetryPolicy { return r.policy }

// SetToken forwards the token to wrapped backends that accept one.
func (r *Retry) SetToken(token string) {
	if a, ok := r.blobs.(Authenticator); ok {
		a.SetToken(token)
	}
	if a, ok := r.docs.(Authenticator); ok {
		a.SetToken(token)
	}
}

func (r *Retry) run(ctx context.Context, op string, fn func(context.Context) error) error {
	var last error
	attempt := 0
	operation := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		err := fn(actx)
		cancel()
		if err == nil {
			return nil
		}
		last = err
		// The caller's own deadline or cancellation ends the loop.
		if ctx.Err() != nil {
			return backoff.Permanent(errors.Join(err, ctx.Err()))
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.log.Debug("remote call failed, retrying", "op", op, "attempt", attempt, "wait", wait, "error", err)
	}

	err := backoff.RetryNotifyWithTimer(operation, r.policy.backOff(ctx), notify, r.timer)
	if err != nil && last != nil && !errors.Is(err, last) {
		// Cancelled while waiting: keep the call's own error too.
		err = errors.Join(last, err)
	}
	return err
}

// PutBlob uploads a blob, retrying transient failures.
func (r *Retry) PutBlob(ctx context.Context, fileID string, data []byte) error {
	return r.run(ctx, "put blob", func(ctx context.Context) error { return r.blobs.PutBlob(ctx, fileID, data) })
}

// GetBlob downloads a blob. ErrNotFound is returned without retrying.
func (r *Retry) GetBlob(ctx context.Context, fileID string) ([]byte, error) {
	var out []byte
	err := r.run(ctx, "get blob", func(ctx context.Context) error {
		var err error
		out, err = r.blobs.GetBlob(ctx, fileID)
		return err
	})
	return out, err
}

// DeleteBlob removes a blob.
func (r *Retry) DeleteBlob(ctx context.Context, fileID string) error {
	return r.run(ctx, "delete blob", func(ctx context.Context) error { return r.blobs.DeleteBlob(ctx, fileID) })
}

// ListDocuments reads one page of a collection.
func (r *Retry) ListDocuments(ctx context.Context, collection, owner string, limit, offset int) ([]Document, error) {
	var out []Document
	err := r.run(ctx, "list "+collection, func(ctx context.Context) error {
		var err error
		out, err = r.docs.ListDocuments(ctx, collection, owner, limit, offset)
		return err
	})
	return out, err
}

// CreateDocument stores doc. A duplicate is final and not retried.
func (r *Retry) CreateDocument(ctx context.Context, collection string, doc Document) error {
	return r.run(ctx, "create "+collection, func(ctx context.Context) error { return r.docs.CreateDocument(ctx, collection, doc) })
}

// DeleteDocument removes one document.
func (r *Retry) DeleteDocument(ctx context.Context, collection, id string) error {
	return r.run(ctx, "delete "+collection, func(ctx context.Context) error { return r.docs.DeleteDocument(ctx, collection, id) })
}
