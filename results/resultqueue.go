// Package results implements the persistent, cross-site FIFO queue of
// completed CrawlResults: every Put call appends exactly one result
// entry and one matching site-priority entry, and Get/ReportDone
// consume them strictly one pair at a time, in put order, regardless of
// which site each result came from.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/arachnesearch/arachne/models"
	"github.com/arachnesearch/arachne/queue"
)

// ErrEmpty is returned by Get when no result is pending.
var ErrEmpty = errors.New("results: empty")

const (
	sitesKey   = "sites"
	resultsKey = "results"
)

// ResultQueue holds completed crawl results for the indexer to consume,
// preserving global put-order across all sites.
type ResultQueue struct {
	mu      sync.Mutex
	results *queue.Queue
	sites   *queue.Queue
	head    *pendingHead
}

// pendingHead caches the pair of entry ids returned by the most recent
// Get, so ReportDone/ReportError know exactly which rows to remove
// without re-scanning. Only one result is ever in flight at a time: a
// caller drives Get/ReportDone (or ReportError) in lockstep.
type pendingHead struct {
	resultID int64
	siteID   string
	siteRowID int64
}

// Open opens or creates the result queue rooted at dir.
func Open(dir string, sites []models.Site) (*ResultQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("results: mkdir %s: %w", dir, err)
	}
	resultsDB, err := queue.Open(filepath.Join(dir, "results.db"))
	if err != nil {
		return nil, err
	}
	sitesDB, err := queue.Open(filepath.Join(dir, "sites.db"))
	if err != nil {
		resultsDB.Close()
		return nil, err
	}
	return &ResultQueue{results: resultsDB, sites: sitesDB}, nil
}

// Reconcile is a no-op placeholder kept symmetric with scheduler's and
// indexer's Reconcile: the result queue has no per-site state, pending
// results for a removed site simply drain normally through the indexer.
func (rq *ResultQueue) Reconcile(sites []models.Site) error { return nil }

// Put appends result to the tail of the global FIFO.
func (rq *ResultQueue) Put(ctx context.Context, result models.CrawlResult) error {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("results: marshal: %w", err)
	}
	if _, err := rq.results.Put(ctx, resultsKey, data); err != nil {
		return err
	}
	if _, err := rq.sites.Put(ctx, sitesKey, []byte(result.Task.SiteID)); err != nil {
		return err
	}
	return nil
}

// Get returns the oldest pending result without removing it. Callers
// must follow with ReportDone or ReportError before calling Get again;
// calling Get twice without resolving the first result returns the
// same result again.
func (rq *ResultQueue) Get(ctx context.Context) (models.CrawlResult, error) {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if rq.head != nil {
		entry, err := rq.results.Head(ctx, resultsKey)
		if err != nil {
			return models.CrawlResult{}, err
		}
		var result models.CrawlResult
		if err := json.Unmarshal(entry.Value, &result); err != nil {
			return models.CrawlResult{}, err
		}
		return result, nil
	}

	resultEntry, err := rq.results.Head(ctx, resultsKey)
	if errors.Is(err, queue.ErrEmpty) {
		return models.CrawlResult{}, ErrEmpty
	}
	if err != nil {
		return models.CrawlResult{}, err
	}
	siteEntry, err := rq.sites.Head(ctx, sitesKey)
	if err != nil {
		return models.CrawlResult{}, fmt.Errorf("results: missing matching site entry: %w", err)
	}

	var result models.CrawlResult
	if err := json.Unmarshal(resultEntry.Value, &result); err != nil {
		return models.CrawlResult{}, fmt.Errorf("results: unmarshal: %w", err)
	}
	rq.head = &pendingHead{resultID: resultEntry.ID, siteID: string(siteEntry.Value), siteRowID: siteEntry.ID}
	return result, nil
}

// ReportDone removes the current head result, acknowledging it was
// fully processed (indexed).
func (rq *ResultQueue) ReportDone(ctx context.Context) error {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	if rq.head == nil {
		return errors.New("results: ReportDone without a pending Get")
	}
	if err := rq.results.Delete(ctx, rq.head.resultID); err != nil {
		return err
	}
	if err := rq.sites.Delete(ctx, rq.head.siteRowID); err != nil {
		return err
	}
	rq.head = nil
	return nil
}

// ReportError moves the current head result to the tail of the queue
// after a processing failure, logging the failure is the caller's
// responsibility. Requeueing rather than dropping the result lets a
// transient failure (a locked index file, a momentary disk error) heal
// itself on a later pass, while still letting every other pending
// result make progress in the meantime instead of blocking behind it.
func (rq *ResultQueue) ReportError(ctx context.Context) error {
	rq.mu.Lock()
	if rq.head == nil {
		rq.mu.Unlock()
		return errors.New("results: ReportError without a pending Get")
	}
	head := *rq.head
	entry, err := rq.results.Head(ctx, resultsKey)
	if err != nil {
		rq.mu.Unlock()
		return err
	}
	rq.mu.Unlock()

	if _, err := rq.results.Put(ctx, resultsKey, entry.Value); err != nil {
		return err
	}
	if _, err := rq.sites.Put(ctx, sitesKey, []byte(head.siteID)); err != nil {
		return err
	}

	rq.mu.Lock()
	defer rq.mu.Unlock()
	if err := rq.results.Delete(ctx, head.resultID); err != nil {
		return err
	}
	if err := rq.sites.Delete(ctx, head.siteRowID); err != nil {
		return err
	}
	rq.head = nil
	return nil
}

// Len returns the number of pending results.
func (rq *ResultQueue) Len(ctx context.Context) (int, error) {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.results.LenKey(ctx, resultsKey)
}

// Flush checkpoints both underlying queue files.
func (rq *ResultQueue) Flush(ctx context.Context) error {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	var firstErr error
	if err := rq.results.Flush(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := rq.sites.Flush(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Close closes both underlying queue files.
func (rq *ResultQueue) Close() error {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	var firstErr error
	if err := rq.results.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := rq.sites.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
