package handlers

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/arachnesearch/arachne/models"
)

// LocalHandler crawls file:// sites on the local filesystem: it lists
// a directory's visible entries (skipping dotfiles), sorted with
// directories first then alphabetically, and reports them as a
// CrawlResult.
type LocalHandler struct{}

// NewLocalHandler returns a ready-to-use LocalHandler; it holds no
// state of its own.
func NewLocalHandler() *LocalHandler { return &LocalHandler{} }

func (h *LocalHandler) Execute(ctx context.Context, task models.CrawlTask) Result {
	path := task.URL.Path()

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{Outcome: OutcomeDone, Crawl: models.NewCrawlResult(task, false)}
	}
	if err != nil {
		return classifyLocalError(err)
	}
	if !info.IsDir() {
		return Result{Outcome: OutcomeDone, Crawl: models.NewCrawlResult(task, false)}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return classifyLocalError(err)
	}

	result := models.NewCrawlResult(task, true)
	names := make([]string, 0, len(entries))
	isDir := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name() == "" || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
		isDir[e.Name()] = e.IsDir()
	}
	sort.Slice(names, func(i, j int) bool {
		if isDir[names[i]] != isDir[names[j]] {
			return isDir[names[i]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		result.Append(name, isDir[name], true)
	}

	return Result{Outcome: OutcomeDone, Crawl: result}
}

// classifyLocalError applies an errno-based split: a permission error
// on the target itself is scoped to this one directory, anything else
// is treated as a whole-site problem.
func classifyLocalError(err error) Result {
	if errors.Is(err, fs.ErrPermission) {
		return Result{Outcome: OutcomeErrorDir, Err: err}
	}
	return Result{Outcome: OutcomeErrorSite, Err: err}
}
