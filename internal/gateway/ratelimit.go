package gateway

import (
	"sync"

	"golang.org/x/time/rate"
)

// tenantLimiters hands out a golang.org/x/time/rate.Limiter per tenant,
// created lazily on first use (spec §4.8 "[ADDED] per-tenant rate
// limiting"). Grounded on the same per-key-lazy-construction shape as
// matcher.TokenBucketLimiter, generalized from (tenant, mcpID) pairs to
// tenant alone.
type tenantLimiters struct {
	rps   float64
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newTenantLimiters(rps float64, burst int) *tenantLimiters {
	return &tenantLimiters{rps: rps, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (t *tenantLimiters) Allow(tenant string) bool {
	if t.rps <= 0 {
		return true
	}
	t.mu.Lock()
	lim, ok := t.limiters[tenant]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(t.rps), t.burst)
		t.limiters[tenant] = lim
	}
	t.mu.Unlock()
	return lim.Allow()
}
