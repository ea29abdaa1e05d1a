package handlers

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// PaceLimiter enforces a defensive floor under each site's configured
// RequestWait: at most one outbound connection attempt per site per
// window, regardless of how many crawler goroutines happen to dispatch
// a task for that site concurrently. The scheduler's own per-task
// ready-time bookkeeping is the primary politeness mechanism (see
// scheduler.TaskQueue); this exists purely as a safety net against
// bursts when several tasks for the same site become ready at once.
//
// Each site gets its own fixed-rate token bucket, created lazily on
// first use; unlike a shared total budget rebalanced across clients
// joining and leaving, a per-site rate never needs rebalancing.
type PaceLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPaceLimiter returns an empty limiter set; each site gets its
// limiter created lazily on first use.
func NewPaceLimiter() *PaceLimiter {
	return &PaceLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until siteID is allowed to start its next outbound
// request, creating and configuring that site's limiter on first use.
func (p *PaceLimiter) Wait(ctx context.Context, siteID string, requestsPerSecond float64) error {
	p.mu.Lock()
	lim, ok := p.limiters[siteID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		p.limiters[siteID] = lim
	}
	p.mu.Unlock()
	return lim.Wait(ctx)
}
