package scheduler

import (
	"math"
	"time"
)

// estimateRevisitWait implements the Cho-Garcia-Molina estimator for how
// long to wait before the next revisit of a directory, given its
// current wait, how many times it has been visited, and how many of
// those visits observed a change.
//
// With no observed changes the wait grows linearly with the visit
// count (the page looks stable, so back off). Otherwise the estimator
// solves for the Poisson change rate implied by the observed change
// frequency and derives the wait that keeps the expected staleness
// constant. The result is rounded to the nearest whole second.
func estimateRevisitWait(wait time.Duration, visits, changes int) time.Duration {
	if visits <= 0 {
		return wait
	}
	var factor float64
	if changes == 0 {
		factor = float64(visits)
	} else {
		ratio := (float64(visits-changes) + 0.5) / (float64(visits) + 0.5)
		factor = 1 / -math.Log(ratio)
	}
	return time.Duration(math.Round(float64(wait)*factor/float64(time.Second))) * time.Second
}

// clampWait constrains a computed revisit wait to a site's configured
// [min, max] bounds.
func clampWait(wait, min, max time.Duration) time.Duration {
	if min > 0 && wait < min {
		return min
	}
	if max > 0 && wait > max {
		return max
	}
	return wait
}
