package engine

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// TenantQuotas bounds concurrent in-flight dispatches per tenant (spec
// §4.6 "Fairness & quotas"). Steps that cannot acquire a slot right now
// stay Ready but unscheduled; they are reconsidered on the driver's next
// turn, which is what gives the scheme its weighted-fair character —
// a busy tenant never blocks another tenant's dispatch loop.
//
// Grounded on the same golang.org/x/sync/semaphore the MCP Client Pool
// uses for per-MCP concurrency caps, generalized to a per-tenant key.
type TenantQuotas struct {
	mu           sync.Mutex
	sems         map[string]*semaphore.Weighted
	defaultLimit int64
	overrides    map[string]int64
}

// NewTenantQuotas returns a TenantQuotas using defaultLimit concurrent
// dispatches for any tenant not named in overrides.
func NewTenantQuotas(defaultLimit int, overrides map[string]int) *TenantQuotas {
	if defaultLimit <= 0 {
		defaultLimit = 8
	}
	ov := make(map[string]int64, len(overrides))
	for k, v := range overrides {
		if v > 0 {
			ov[k] = int64(v)
		}
	}
	return &TenantQuotas{
		sems:         make(map[string]*semaphore.Weighted),
		defaultLimit: int64(defaultLimit),
		overrides:    ov,
	}
}

func (q *TenantQuotas) semFor(tenant string) *semaphore.Weighted {
	q.mu.Lock()
	defer q.mu.Unlock()

	sem, ok := q.sems[tenant]
	if ok {
		return sem
	}
	limit := q.defaultLimit
	if v, ok := q.overrides[tenant]; ok {
		limit = v
	}
	sem = semaphore.NewWeighted(limit)
	q.sems[tenant] = sem
	return sem
}

// TryAcquire reports whether tenant has a free dispatch slot right now,
// claiming it if so. Never blocks.
func (q *TenantQuotas) TryAcquire(tenant string) bool {
	return q.semFor(tenant).TryAcquire(1)
}

// Release returns a previously-acquired slot for tenant.
func (q *TenantQuotas) Release(tenant string) {
	q.semFor(tenant).Release(1)
}
