// Package crawler implements the worker pool: a fixed number of
// goroutines pulling tasks from the scheduler, executing them through
// the matching protocol handler, and routing the outcome onward —
// successful crawls to the result queue for the indexer to consume,
// failures straight back to the scheduler.
package crawler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/arachnesearch/arachne/handlers"
	"github.com/arachnesearch/arachne/models"
	"github.com/arachnesearch/arachne/results"
	"github.com/arachnesearch/arachne/scheduler"
)

// Pool owns a fixed-size set of crawler goroutines. It does not own the
// scheduler, the result queue, or the index: callers keep ownership and
// handle startup/shutdown of those separately.
type Pool struct {
	tasks    *scheduler.TaskQueue
	results  *results.ResultQueue
	registry *handlers.Registry

	mu    sync.RWMutex
	sites map[string]models.Site

	numWorkers int
}

// New builds a Pool with numWorkers goroutines (clamped to at least 1).
func New(tasks *scheduler.TaskQueue, rq *results.ResultQueue, registry *handlers.Registry, sites map[string]models.Site, numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{tasks: tasks, results: rq, registry: registry, sites: sites, numWorkers: numWorkers}
}

// UpdateSites swaps the site-info map consulted for handler selection,
// used by the supervisor after a live config reload.
func (p *Pool) UpdateSites(sites map[string]models.Site) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sites = sites
}

func (p *Pool) siteFor(id string) (models.Site, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sites[id]
	return s, ok
}

// Run launches the worker goroutines and blocks until ctx is canceled
// and every worker has finished its in-flight task — a worker never
// abandons a task mid-execution, it only stops picking up a new one.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
}

// idleBackoff is how long a worker sleeps after finding no ready task,
// matching the ProcessorManager's "sleep 1s on empty queue" idiom.
const idleBackoff = time.Second

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.tasks.Get(ctx)
		if errors.Is(err, scheduler.ErrEmpty) {
			if !sleepOrDone(ctx, idleBackoff) {
				return
			}
			continue
		}
		if err != nil {
			log.Printf("crawler: get task: %v", err)
			if !sleepOrDone(ctx, idleBackoff) {
				return
			}
			continue
		}

		p.execute(ctx, task)
	}
}

func (p *Pool) execute(ctx context.Context, task models.CrawlTask) {
	site, ok := p.siteFor(task.SiteID)
	if !ok {
		log.Printf("crawler: task for unconfigured site %s, dropping", task.SiteID)
		return
	}

	scheme := site.Handler
	if scheme == "" {
		scheme = task.URL.Scheme()
	}
	handler, err := p.registry.Lookup(scheme)
	if err != nil {
		log.Printf("crawler: %v", err)
		p.reportError(ctx, handlers.OutcomeErrorSite, task, err)
		return
	}

	res := handler.Execute(ctx, task)
	switch res.Outcome {
	case handlers.OutcomeDone:
		// The site reopens for its next probe right away, at the
		// ordinary request_wait politeness delay: the visit itself
		// succeeded at the handler level. Revisit scheduling for this
		// particular task depends on whether the listing changed since
		// the previous visit, which only the indexer can determine (it
		// holds the previously stored children); see
		// indexer.IndexProcessor.
		if err := p.tasks.ReportDone(ctx, task); err != nil {
			log.Printf("crawler: report done for %s: %v", task.URL, err)
		}
		if err := p.results.Put(ctx, res.Crawl); err != nil {
			log.Printf("crawler: enqueue result for %s: %v", task.URL, err)
		}
	case handlers.OutcomeErrorDir, handlers.OutcomeErrorSite:
		log.Printf("crawler: error visiting %s (%v)", task.URL, res.Err)
		p.reportError(ctx, res.Outcome, task, res.Err)
	}
}

func (p *Pool) reportError(ctx context.Context, outcome handlers.Outcome, task models.CrawlTask, cause error) {
	var err error
	if outcome == handlers.OutcomeErrorDir {
		err = p.tasks.ReportErrorDir(ctx, task)
	} else {
		err = p.tasks.ReportErrorSite(ctx, task)
	}
	if err != nil {
		log.Printf("crawler: report error for %s (cause: %v): %v", task.URL, cause, err)
	}
}

// sleepOrDone waits for d, returning false if ctx is canceled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
