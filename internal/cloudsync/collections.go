package cloudsync

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/schema"
)

// Report is the outcome of one sync cycle.
type Report struct {
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt"`
	BackupBytes int                `json:"backupBytes"`
	Collections []CollectionResult `json:"collections"`
	// Err is the fatal error that ended the cycle, if any. Per-collection
	// failures are not fatal.
	Err error `json:"-"`
}

// CollectionResult tallies one collection's replace-all sync.
type CollectionResult struct {
	Name string `json:"name"`
	// Deleted counts remote records removed before re-creating.
	Deleted int `json:"deleted"`
	// Sent counts records created.
	Sent int `json:"sent"`
	// Skipped counts records that already existed remotely.
	Skipped int `json:"skipped"`
	// Errors counts failed deletes and creates. A failed listing counts
	// every local item as an error.
	Errors int `json:"errors"`
	// Err is the first error seen, for display.
	Err string `json:"err,omitempty"`
}

func (c *CollectionResult) fail(err error) {
	c.Errors++
	if c.Err == "" {
		c.Err = err.Error()
	}
}

// Sent sums Sent over all collections.
func (r Report) Sent() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Sent
	}
	return n
}

// Skipped sums Skipped over all collections.
func (r Report) Skipped() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Skipped
	}
	return n
}

// Errors sums Errors over all collections.
func (r Report) Errors() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Errors
	}
	return n
}

// Collection returns the result for name.
func (r Report) Collection(name string) (CollectionResult, bool) {
	for _, c := range r.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return CollectionResult{}, false
}

// syncCollections runs replaceCollection for every collection, at most
// cfg.Concurrency at a time. Results keep collection order.
func (e *Engine) syncCollections(ctx context.Context, owner string, data *schema.Dataset) []CollectionResult {
	results := make([]CollectionResult, len(collections))

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, c := range collections {
		records := c.records(data)
		g.Go(func() error {
			results[i] = e.replaceCollection(ctx, owner, c.name, records)
			return nil
		})
	}
	g.Wait()
	return results
}

// replaceCollection deletes every remote record owner has in name and
// re-creates one per local record.
func (e *Engine) replaceCollection(ctx context.Context, owner, name string, records []record) CollectionResult {
	res := CollectionResult{Name: name}

	existing, err := remote.ListAll(ctx, e.docs, name, owner)
	if err != nil {
		e.log.Warn("list remote collection failed", "collection", name, "error", err)
		res.Errors = len(records)
		res.Err = err.Error()
		return res
	}

	for _, doc := range existing {
		if err := e.docs.DeleteDocument(ctx, name, doc.ID); err != nil {
			e.log.Debug("delete remote document failed", "collection", name, "id", doc.ID, "error", err)
			res.fail(err)
			continue
		}
		res.Deleted++
	}

	for _, r := range records {
		doc, err := toDocument(owner, r)
		if err != nil {
			res.fail(err)
			continue
		}
		err = e.docs.CreateDocument(ctx, name, doc)
		switch {
		case err == nil:
			res.Sent++
		case errors.Is(err, remote.ErrDuplicate):
			res.Skipped++
		default:
			e.log.Debug("create remote document failed", "collection", name, "id", r.id, "error", err)
			res.fail(err)
		}
	}
	return res
}
