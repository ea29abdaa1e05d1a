// Package supervisor owns the lifetime of a crawl run: opening the
// task queue, result queue, and index, wiring the crawler pool and the
// index processor to them, and coordinating an orderly shutdown (open
// queues, start goroutines, wait for a cancellation signal, join and
// close).
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arachnesearch/arachne/contentextract"
	"github.com/arachnesearch/arachne/crawler"
	"github.com/arachnesearch/arachne/handlers"
	"github.com/arachnesearch/arachne/indexer"
	"github.com/arachnesearch/arachne/models"
	"github.com/arachnesearch/arachne/results"
	"github.com/arachnesearch/arachne/scheduler"
)

// Config is the fully resolved set of inputs a Supervisor needs to
// start a run.
type Config struct {
	TasksDir    string
	ResultsDir  string
	IndexPath   string
	NumCrawlers int
	FTPTimeout  int // seconds
	HTTPTimeout int // seconds
	Sites       []models.Site

	// Extractor, when non-nil, is wired into the index processor to
	// opt in to content extraction for local files. Left nil, the
	// default, no file content is ever read or indexed.
	Extractor contentextract.Extractor
}

// Supervisor owns one TaskQueue, one ResultQueue, one index Store, one
// crawler Pool, and one index-processor ProcessorManager, and runs them
// together until Stop is called.
type Supervisor struct {
	tasks     *scheduler.TaskQueue
	resultsQ  *results.ResultQueue
	store     *indexer.Store
	pool      *crawler.Pool
	processor *indexer.ProcessorManager

	sitesMu sync.RWMutex
	sites   map[string]models.Site

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the task queue, result queue, and index (running each
// queue's startup reconciliation as it opens), and wires a crawler
// pool and index processor ready to run.
func New(cfg Config) (*Supervisor, error) {
	tasks, err := scheduler.Open(cfg.TasksDir, cfg.Sites)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open task queue: %w", err)
	}
	resultsQ, err := results.Open(cfg.ResultsDir, cfg.Sites)
	if err != nil {
		tasks.Close()
		return nil, fmt.Errorf("supervisor: open result queue: %w", err)
	}
	store, err := indexer.Open(cfg.IndexPath)
	if err != nil {
		tasks.Close()
		resultsQ.Close()
		return nil, fmt.Errorf("supervisor: open index: %w", err)
	}
	sitesByID := make(map[string]models.Site, len(cfg.Sites))
	for _, s := range cfg.Sites {
		sitesByID[s.ID] = s
	}
	if err := indexer.Reconcile(store, sitesByID); err != nil {
		tasks.Close()
		resultsQ.Close()
		store.Close()
		return nil, fmt.Errorf("supervisor: reconcile index: %w", err)
	}

	registry := buildRegistry(cfg)
	numWorkers := cfg.NumCrawlers
	if numWorkers < 1 {
		numWorkers = 1
	}
	pool := crawler.New(tasks, resultsQ, registry, sitesByID, numWorkers)
	indexProc := indexer.NewIndexProcessor(store, tasks)
	indexProc.Extractor = cfg.Extractor
	proc := indexer.NewProcessorManager(resultsQ, indexProc)

	return &Supervisor{
		tasks:     tasks,
		resultsQ:  resultsQ,
		store:     store,
		pool:      pool,
		processor: proc,
		sites:     sitesByID,
	}, nil
}

func buildRegistry(cfg Config) *handlers.Registry {
	ftpTimeout := time.Duration(secondsOrDefault(cfg.FTPTimeout, 300)) * time.Second
	httpTimeout := time.Duration(secondsOrDefault(cfg.HTTPTimeout, 300)) * time.Second
	pace := handlers.NewPaceLimiter()
	return handlers.NewRegistry(map[string]handlers.Handler{
		"ftp":   handlers.NewFTPHandler(pace, ftpTimeout),
		"http":  handlers.NewHTTPHandler(pace, httpTimeout),
		"https": handlers.NewHTTPHandler(pace, httpTimeout),
		"file":  handlers.NewLocalHandler(),
	})
}

// Start launches the crawler pool workers and the index processor as
// background goroutines. It returns immediately; callers wait for a
// stop condition (typically a signal) and then call Stop.
func (s *Supervisor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.pool.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.processor.Run(runCtx)
	}()
}

// Stop signals every running goroutine to finish its in-flight task
// and exit, waits for them to do so, flushes the index, and closes
// both queues. It is safe to call Stop only once per Start.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	note(s.store.Flush(ctx))
	note(s.tasks.Flush(ctx))
	note(s.resultsQ.Flush(ctx))
	note(s.tasks.Close())
	note(s.resultsQ.Close())
	note(s.store.Close())
	return firstErr
}

// Reconcile re-runs startup reconciliation against an updated site set
// — used after a live configuration reload — and swaps the crawler
// pool's and index's view of the configured sites without restarting
// any goroutine.
func (s *Supervisor) Reconcile(sites []models.Site) error {
	sitesByID := make(map[string]models.Site, len(sites))
	for _, site := range sites {
		sitesByID[site.ID] = site
	}

	if err := s.tasks.Reconcile(sites); err != nil {
		return fmt.Errorf("supervisor: reconcile tasks: %w", err)
	}
	if err := s.resultsQ.Reconcile(sites); err != nil {
		return fmt.Errorf("supervisor: reconcile results: %w", err)
	}
	if err := indexer.Reconcile(s.store, sitesByID); err != nil {
		return fmt.Errorf("supervisor: reconcile index: %w", err)
	}

	s.sitesMu.Lock()
	s.sites = sitesByID
	s.sitesMu.Unlock()
	s.pool.UpdateSites(sitesByID)
	return nil
}

func secondsOrDefault(seconds, fallback int) int {
	if seconds > 0 {
		return seconds
	}
	return fallback
}
