// Package scheduler implements the persistent, per-site crawl task
// queue: a priority queue of CrawlTasks, scanned in global ready-time
// order across sites. Two independent priority tables drive this: the
// shared site-priority index, which gates when a site may be probed
// again at all and is touched only by ReportDone/ReportErrorDir/
// ReportErrorSite, and each site's own per-site task queue, which
// carries each task's individual ready time and is touched only by
// PutNew/PutVisited (plus ReportErrorDir's and ReportErrorSite's
// re-push of the failed task).
// One queue.Queue file backs each site plus a shared site-priority
// queue.Queue.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arachnesearch/arachne/models"
	"github.com/arachnesearch/arachne/queue"
)

// ErrEmpty is returned by Get when no task is ready to run yet, either
// because the queue holds none or because every pending task's ready
// time is still in the future.
var ErrEmpty = errors.New("scheduler: no ready task")

const (
	sitesKey = "sites"
	tasksKey = "tasks"
)

// TaskQueue is the crawler's work queue: one on-disk queue.Queue per
// configured site (tasksDir/<site id>.db) plus a shared priority
// index (tasksDir/sites.db) that lets Get scan for the globally
// earliest-ready task without visiting every site's queue in turn.
type TaskQueue struct {
	mu      sync.Mutex
	dir     string
	sites   *queue.Queue
	perSite map[string]*queue.Queue
	info    map[string]models.Site
}

// Open opens or creates the task queue rooted at dir and reconciles it
// against the given configured sites (see reconcile).
func Open(dir string, sites []models.Site) (*TaskQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scheduler: mkdir %s: %w", dir, err)
	}
	sitesDB, err := queue.Open(filepath.Join(dir, "sites.db"))
	if err != nil {
		return nil, err
	}
	tq := &TaskQueue{
		dir:     dir,
		sites:   sitesDB,
		perSite: map[string]*queue.Queue{},
		info:    map[string]models.Site{},
	}
	if err := tq.reconcile(sites); err != nil {
		tq.Close()
		return nil, err
	}
	return tq, nil
}

// reconcile brings the on-disk site set in line with the configured
// one: per-site queue files for sites no longer configured are closed
// and removed, along with any stale sites.db entries referencing them;
// newly configured sites get a fresh queue file seeded with a root
// task and an immediate site-priority entry, the one-time exception to
// the rule that only the report methods touch the site-priority table.
func (tq *TaskQueue) reconcile(sites []models.Site) error {
	ctx := context.Background()
	newInfo := make(map[string]models.Site, len(sites))
	for _, s := range sites {
		newInfo[s.ID] = s
	}

	for id, pq := range tq.perSite {
		if _, ok := newInfo[id]; ok {
			continue
		}
		pq.Close()
		delete(tq.perSite, id)
		os.Remove(filepath.Join(tq.dir, id+".db"))
	}
	if files, err := filepath.Glob(filepath.Join(tq.dir, "*.db")); err == nil {
		for _, f := range files {
			id := strings.TrimSuffix(filepath.Base(f), ".db")
			if _, ok := newInfo[id]; !ok && filepath.Base(f) != "sites.db" {
				os.Remove(f)
			}
		}
	}
	if all, err := tq.sites.All(ctx); err == nil {
		for _, e := range all {
			if _, ok := newInfo[string(e.Value)]; !ok {
				tq.sites.Delete(ctx, e.ID)
			}
		}
	}

	for _, s := range sites {
		if _, ok := tq.perSite[s.ID]; ok {
			continue
		}
		pq, err := queue.Open(filepath.Join(tq.dir, s.ID+".db"))
		if err != nil {
			return fmt.Errorf("scheduler: open site queue %s: %w", s.ID, err)
		}
		tq.perSite[s.ID] = pq

		n, err := pq.LenKey(ctx, tasksKey)
		if err != nil {
			return err
		}
		if n == 0 {
			now := time.Now()
			root := models.NewTask(s.ID, s.Root, 0)
			if err := tq.pushTaskLocked(ctx, s, root, now); err != nil {
				return err
			}
			if err := tq.reopenSiteLocked(ctx, s.ID, now); err != nil {
				return err
			}
		}
	}

	tq.info = newInfo
	return nil
}

// Reconcile re-runs site reconciliation against a freshly decoded site
// set without closing the queue, for callers that support live config
// reload (see supervisor.WatchConfig).
func (tq *TaskQueue) Reconcile(sites []models.Site) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.reconcile(sites)
}

// revisitRecomputeThreshold is the number of visits a task must
// accumulate at its current revisit wait before that wait is
// re-estimated from observed change frequency.
const revisitRecomputeThreshold = 5

// pushTaskLocked stores task in its site's own queue, keyed by
// readyAt. It does not touch the shared site-priority index: only
// ReportDone, ReportErrorDir, and ReportErrorSite reopen a site for
// its next probe. The caller must hold tq.mu.
func (tq *TaskQueue) pushTaskLocked(ctx context.Context, site models.Site, task models.CrawlTask, readyAt time.Time) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("scheduler: marshal task: %w", err)
	}
	pq := tq.perSite[site.ID]
	if _, err := pq.PutPriority(ctx, tasksKey, data, readyAt.UnixNano()); err != nil {
		return err
	}
	return nil
}

// reopenSiteLocked registers a site-priority entry for siteID, making
// it eligible to have a task handed out again once readyAt arrives.
// The caller must hold tq.mu.
func (tq *TaskQueue) reopenSiteLocked(ctx context.Context, siteID string, readyAt time.Time) error {
	_, err := tq.sites.PutPriority(ctx, sitesKey, []byte(siteID), readyAt.UnixNano())
	return err
}

// PutNew enqueues a newly discovered, never-visited task, ready
// immediately subject to the site's own pacing. It only pushes into
// the site's task queue; the site itself becomes eligible for its next
// task independently, through ReportDone/ReportErrorDir/
// ReportErrorSite. A task deeper than the site's MaxDepth (when that
// is non-zero) is dropped.
func (tq *TaskQueue) PutNew(ctx context.Context, task models.CrawlTask) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	site, ok := tq.info[task.SiteID]
	if !ok {
		return fmt.Errorf("scheduler: unknown site %s", task.SiteID)
	}
	if site.MaxDepth > 0 && task.Depth > site.MaxDepth {
		return nil
	}
	return tq.pushTaskLocked(ctx, site, task, time.Now())
}

// PutVisited records a completed visit on task and reschedules its
// next revisit. The first completed visit adopts the site's configured
// default revisit wait outright; later visits keep reusing that wait
// unchanged until revisitRecomputeThreshold visits have accumulated
// against it, at which point the wait is re-estimated from the
// observed change frequency (bounded by the site's configured min/max)
// and the visit/change counters reset so the next batch of visits is
// measured against the new wait. This only pushes into the site's task
// queue; it never touches the site-priority table.
func (tq *TaskQueue) PutVisited(ctx context.Context, task models.CrawlTask, changed bool) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	site, ok := tq.info[task.SiteID]
	if !ok {
		return fmt.Errorf("scheduler: unknown site %s", task.SiteID)
	}

	task = task.ReportVisit(changed)
	switch {
	case task.VisitCount() == 0:
		task = task.WithRevisitWait(site.DefaultRevisitWait)
	case task.VisitCount() >= revisitRecomputeThreshold:
		wait := estimateRevisitWait(task.RevisitWait(), task.VisitCount(), task.ChangeCount())
		wait = clampWait(wait, site.MinRevisitWait, site.MaxRevisitWait)
		task = task.WithRevisitWait(wait).ResetCounters()
	}

	return tq.pushTaskLocked(ctx, site, task, time.Now().Add(task.RevisitWait()))
}

// Get returns the globally earliest-ready task across every site, or
// ErrEmpty if nothing is ready yet. The site-priority index is scanned
// in ascending order, so the first not-yet-ready entry means nothing
// further in the scan can be ready either.
func (tq *TaskQueue) Get(ctx context.Context) (models.CrawlTask, error) {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	now := time.Now().UnixNano()
	heads, err := tq.sites.All(ctx)
	if err != nil {
		return models.CrawlTask{}, err
	}
	for _, head := range heads {
		if head.Priority > now {
			return models.CrawlTask{}, ErrEmpty
		}

		siteID := string(head.Value)
		pq, ok := tq.perSite[siteID]
		if !ok {
			// Orphaned site entry (its per-site queue is gone, e.g. after
			// reconciliation dropped it): delete it lazily here rather
			// than skipping it forever on every future Get.
			if err := tq.sites.Delete(ctx, head.ID); err != nil {
				return models.CrawlTask{}, err
			}
			continue
		}

		taskEntry, err := pq.Head(ctx, tasksKey)
		if errors.Is(err, queue.ErrEmpty) {
			if err := tq.sites.Delete(ctx, head.ID); err != nil {
				return models.CrawlTask{}, err
			}
			continue
		}
		if err != nil {
			return models.CrawlTask{}, err
		}
		if taskEntry.Priority > now {
			// The site may be probed, but its earliest task is not due
			// yet: move on to the next ready site.
			continue
		}

		var task models.CrawlTask
		if err := json.Unmarshal(taskEntry.Value, &task); err != nil {
			return models.CrawlTask{}, fmt.Errorf("scheduler: unmarshal task: %w", err)
		}
		if err := pq.Delete(ctx, taskEntry.ID); err != nil {
			return models.CrawlTask{}, err
		}
		if err := tq.sites.Delete(ctx, head.ID); err != nil {
			return models.CrawlTask{}, err
		}
		return task, nil
	}
	return models.CrawlTask{}, ErrEmpty
}

// ReportDone reopens task's site for its next probe after request_wait
// has passed, acknowledging a successful crawl at the handler level.
// It is the crawler's job to call this immediately after a task
// executes successfully; it does not reschedule the task itself — that
// is PutVisited's job, invoked separately once the result has been
// processed.
func (tq *TaskQueue) ReportDone(ctx context.Context, task models.CrawlTask) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	site, ok := tq.info[task.SiteID]
	if !ok {
		return fmt.Errorf("scheduler: unknown site %s", task.SiteID)
	}
	return tq.reopenSiteLocked(ctx, site.ID, time.Now().Add(site.RequestWait))
}

// ReportErrorDir reschedules task after a directory-level error (e.g.
// permission denied reading one entry), using the site's configured
// error-dir backoff, and reopens the site at the ordinary request_wait
// since the site itself is presumed reachable — only this one
// directory misbehaved. The task's revisit bookkeeping is left
// untouched: a directory error is not itself evidence the listing
// changed.
func (tq *TaskQueue) ReportErrorDir(ctx context.Context, task models.CrawlTask) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	site, ok := tq.info[task.SiteID]
	if !ok {
		return fmt.Errorf("scheduler: unknown site %s", task.SiteID)
	}
	now := time.Now()
	if err := tq.pushTaskLocked(ctx, site, task, now.Add(site.ErrorDirWait)); err != nil {
		return err
	}
	return tq.reopenSiteLocked(ctx, site.ID, now.Add(site.RequestWait))
}

// ReportErrorSite reschedules task and reopens its site after a
// site-level error (connection refused, DNS failure, and the like),
// both after the site's configured error-site backoff — typically much
// longer than an error-dir backoff, since the whole site is presumed
// unreachable rather than one entry.
func (tq *TaskQueue) ReportErrorSite(ctx context.Context, task models.CrawlTask) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	site, ok := tq.info[task.SiteID]
	if !ok {
		return fmt.Errorf("scheduler: unknown site %s", task.SiteID)
	}
	readyAt := time.Now().Add(site.ErrorSiteWait)
	if err := tq.pushTaskLocked(ctx, site, task, readyAt); err != nil {
		return err
	}
	return tq.reopenSiteLocked(ctx, site.ID, readyAt)
}

// Len returns the total number of pending tasks across every site.
func (tq *TaskQueue) Len(ctx context.Context) (int, error) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	total := 0
	for _, pq := range tq.perSite {
		n, err := pq.LenKey(ctx, tasksKey)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Flush checkpoints every underlying queue file's write-ahead log.
func (tq *TaskQueue) Flush(ctx context.Context) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	var firstErr error
	for _, pq := range tq.perSite {
		if err := pq.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := tq.sites.Flush(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Close closes every underlying queue file.
func (tq *TaskQueue) Close() error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	var firstErr error
	for _, pq := range tq.perSite {
		if err := pq.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := tq.sites.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
