package engine

import (
	"math"
	"math/rand"
	"time"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// nextDelay computes the backoff before retry attempt number `attempt`
// (1-indexed: attempt 1 is the delay before the *second* StepRun),
// per the PlanStep's RetryPolicy (spec §4.6 "Ordering & tie-breaks" —
// "Retries are scheduled with monotonic-clock deadlines"). This is a
// distinct, macro-scale retry from the MCP Client Pool's own
// cenkalti/backoff/v5-driven connection retries: those retry a single
// dispatch attempt transparently, this schedules a brand new StepRun
// after an observable delay.
func nextDelay(policy workflow.RetryPolicy, attempt int) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	factor := policy.Factor
	if factor <= 0 {
		factor = 2.0
	}

	scaled := float64(base) * math.Pow(factor, float64(attempt-1))
	if policy.Jitter > 0 {
		spread := scaled * policy.Jitter
		scaled += (rand.Float64()*2 - 1) * spread
	}
	if scaled < 0 {
		scaled = 0
	}
	return time.Duration(scaled)
}
