package indexer

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/arachnesearch/arachne/contentextract"
	"github.com/arachnesearch/arachne/models"
	"github.com/arachnesearch/arachne/results"
	"github.com/arachnesearch/arachne/scheduler"
)

// ResultProcessor consumes one completed CrawlResult, updating whatever
// state it owns (the search index, the task queue, or both) before the
// result queue discards it.
type ResultProcessor interface {
	Process(ctx context.Context, result models.CrawlResult) error
}

// NaiveProcessor only enqueues newly discovered child directories for
// crawling; it never touches the search index. Useful for exercising
// the crawler/scheduler pipeline without a full index running.
type NaiveProcessor struct {
	Tasks *scheduler.TaskQueue
}

func (p *NaiveProcessor) Process(ctx context.Context, result models.CrawlResult) error {
	if !result.Exists {
		return nil
	}
	for _, e := range result.Entries {
		if !e.IsDirKnown || !e.IsDir {
			continue
		}
		childURL, err := result.Task.URL.Join(e.Name)
		if err != nil {
			continue
		}
		child := models.NewTask(result.Task.SiteID, childURL, result.Task.Depth+1)
		if err := p.Tasks.PutNew(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// IndexProcessor reconciles the search index against a newly observed
// directory listing — removing entries and subtrees that vanished,
// upserting the ones still present — enqueues newly discovered
// subdirectories for crawling, and reschedules the task's next revisit
// based on whether the listing changed.
type IndexProcessor struct {
	Store *Store
	Tasks *scheduler.TaskQueue

	// Extractor, when set, is consulted for every newly indexed
	// file entry reachable on the local filesystem (file:// sites
	// only — every other handler only ever observes a listing, not a
	// file's bytes). A nil Extractor keeps content extraction off.
	Extractor contentextract.Extractor
}

func NewIndexProcessor(store *Store, tasks *scheduler.TaskQueue) *IndexProcessor {
	return &IndexProcessor{Store: store, Tasks: tasks}
}

func (p *IndexProcessor) Process(ctx context.Context, result models.CrawlResult) error {
	task := result.Task
	site := task.SiteID
	dirPath := task.URL.Path()

	if !result.Exists {
		if err := p.Store.RemoveSubtree(ctx, site, dirPath); err != nil {
			return err
		}
		return p.Tasks.PutVisited(ctx, task, true)
	}

	if task.URL.IsRoot() || task.Depth == 0 {
		root := models.NewDocument(site, task.URL, true)
		root.IsRoot = true
		root.Path = task.URL.String()
		if _, err := p.Store.Upsert(ctx, root); err != nil {
			return err
		}
	}

	previous, err := p.Store.Children(ctx, site, dirPath)
	if err != nil {
		return err
	}
	changed := result.Changed(previous)

	current := make(map[string]bool, len(result.Entries))
	for _, e := range result.Entries {
		current[e.Name] = true
	}
	for _, name := range previous {
		if current[name] {
			continue
		}
		childURL, err := task.URL.Join(name)
		if err != nil {
			continue
		}
		if err := p.Store.RemoveSubtree(ctx, site, childURL.Path()); err != nil {
			return err
		}
	}

	for _, e := range result.Entries {
		childURL, err := task.URL.Join(e.Name)
		if err != nil {
			continue
		}
		doc := models.NewDocument(site, childURL, e.IsDir)
		if !e.IsDir && p.Extractor != nil && childURL.Scheme() == "file" {
			doc.Content = p.extractContent(ctx, childURL)
		}
		if _, err := p.Store.Upsert(ctx, doc); err != nil {
			return err
		}
		if e.IsDirKnown && e.IsDir && !containsName(previous, e.Name) {
			child := models.NewTask(site, childURL, task.Depth+1)
			if err := p.Tasks.PutNew(ctx, child); err != nil {
				return err
			}
		}
	}

	return p.Tasks.PutVisited(ctx, task, changed)
}

func (p *IndexProcessor) extractContent(ctx context.Context, fileURL models.URL) string {
	data, err := os.ReadFile(fileURL.Path())
	if err != nil {
		return ""
	}
	if len(data) > contentextract.MaxExtractSize {
		data = data[:contentextract.MaxExtractSize]
	}
	text, err := p.Extractor.Extract(ctx, fileURL.Basename(), data)
	if err != nil {
		log.Printf("indexer: extract content for %s: %v", fileURL, err)
		return ""
	}
	return text
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// ProcessorManager drains the result queue and feeds each result to a
// ResultProcessor, acknowledging success with ReportDone and reporting
// poison results with ReportError so one bad result can't wedge the
// pipeline forever. It runs as a context-driven goroutine, sleeping 1s
// whenever the queue comes up empty.
type ProcessorManager struct {
	Queue     *results.ResultQueue
	Processor ResultProcessor
}

// NewProcessorManager returns a manager that drains rq through p.
func NewProcessorManager(rq *results.ResultQueue, p ResultProcessor) *ProcessorManager {
	return &ProcessorManager{Queue: rq, Processor: p}
}

// Run processes results until ctx is canceled; it finishes the result
// currently in flight before returning.
func (m *ProcessorManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := m.Queue.Get(ctx)
		if errors.Is(err, results.ErrEmpty) {
			if !sleepOrDone(ctx, time.Second) {
				return
			}
			continue
		}
		if err != nil {
			log.Printf("indexer: get result: %v", err)
			if !sleepOrDone(ctx, time.Second) {
				return
			}
			continue
		}

		if err := m.Processor.Process(ctx, result); err != nil {
			log.Printf("indexer: process result for %s: %v", result.Task.URL, err)
			if err := m.Queue.ReportError(ctx); err != nil {
				log.Printf("indexer: report error: %v", err)
			}
			continue
		}
		if err := m.Queue.ReportDone(ctx); err != nil {
			log.Printf("indexer: report done: %v", err)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
