// Package handlers implements the protocol handlers: one Handler per
// supported scheme (local filesystem, FTP, HTTP/HTTPS autoindex), each
// executing a single CrawlTask and classifying the outcome into the
// crawler's done/error-dir/error-site taxonomy.
package handlers

import (
	"context"
	"fmt"

	"github.com/arachnesearch/arachne/models"
)

// Outcome is the three-way disposition a Handler reports for a task.
type Outcome int

const (
	// OutcomeDone means the task executed successfully; Result.Crawl
	// holds the result to enqueue, even when the target turned out not
	// to exist (Crawl.Exists == false).
	OutcomeDone Outcome = iota
	// OutcomeErrorDir means this task's specific target is unusable
	// (permission denied, one bad entry) but the site overall is fine
	// and should keep crawling at its normal pace.
	OutcomeErrorDir
	// OutcomeErrorSite means the whole site appears unreachable right
	// now (connection refused, DNS failure, socket timeout) and should
	// back off before the next attempt.
	OutcomeErrorSite
)

// Result is what a Handler returns from Execute.
type Result struct {
	Outcome Outcome
	Crawl   models.CrawlResult
	Err     error
}

// Handler executes one CrawlTask against its protocol. Implementations
// must respect ctx cancellation for any blocking I/O.
type Handler interface {
	Execute(ctx context.Context, task models.CrawlTask) Result
}

// Registry dispatches a task to the Handler registered for its URL
// scheme.
type Registry struct {
	byScheme map[string]Handler
}

// NewRegistry builds a Registry from a scheme-to-handler mapping.
func NewRegistry(byScheme map[string]Handler) *Registry {
	return &Registry{byScheme: byScheme}
}

// Lookup returns the Handler registered for scheme, or an error if
// none is registered — an unsupported-protocol configuration error.
func (r *Registry) Lookup(scheme string) (Handler, error) {
	h, ok := r.byScheme[scheme]
	if !ok {
		return nil, fmt.Errorf("handlers: no handler registered for scheme %q", scheme)
	}
	return h, nil
}
