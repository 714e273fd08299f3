package matcher

import (
	"sync"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter enforces a per-(tenant, mcpID) rate limit backed by
// golang.org/x/time/rate, the token-bucket package the pack already
// uses for client-side throttling. Buckets are created lazily on first
// use and never pruned, matching MCPDescriptor's own "per-tenant
// rate-limit counters" being a long-lived part of its state.
type TokenBucketLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewTokenBucketLimiter returns a limiter allowing up to rps sustained
// requests per second with burst headroom, per tenant/MCP pair.
func NewTokenBucketLimiter(rps float64, burst int) *TokenBucketLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether tenant may call mcpID now, consuming a token if so.
func (l *TokenBucketLimiter) Allow(tenant, mcpID string) bool {
	l.mu.Lock()
	key := tenant + "\x00" + mcpID
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.Allow()
}
