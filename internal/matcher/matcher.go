package matcher

import (
	"context"
	"sort"
	"sync"

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/workflow"
	"github.com/giantswarm/fedctl/pkg/logging"
)

// CapabilitySource is the subset of the Registry the Matcher depends
// on, letting tests substitute a fake catalog without a real Registry.
type CapabilitySource interface {
	ListByCapability(tag string) []workflow.MCPDescriptor
}

// RateLimiter reports whether tenant may make another call against mcpID
// right now. The default implementation is backed by a token bucket per
// (tenant, mcpID) pair; see NewTokenBucketLimiter.
type RateLimiter interface {
	Allow(tenant, mcpID string) bool
}

// Matcher implements the selection algorithm described in the package
// doc. It is safe for concurrent use.
type Matcher struct {
	source CapabilitySource
	limits RateLimiter

	mu         sync.Mutex
	roundRobin map[string]int // capability tag -> next offset into the tied group
}

// New returns a Matcher reading from source and filtering through
// limits. A nil limits allows every call.
func New(source CapabilitySource, limits RateLimiter) *Matcher {
	if limits == nil {
		limits = allowAllLimiter{}
	}
	return &Matcher{source: source, limits: limits, roundRobin: make(map[string]int)}
}

// Select picks one MCP declaring capability for tenant, or a NoProvider
// errkind.Error if none qualify.
func (m *Matcher) Select(_ context.Context, tenant, capability string) (workflow.MCPDescriptor, error) {
	candidates := m.source.ListByCapability(capability)

	healthy := filterHealth(candidates, workflow.Healthy)
	pool := healthy
	if len(pool) == 0 {
		pool = filterHealth(candidates, workflow.Degraded)
	}

	pool = m.filterRateLimited(tenant, pool)
	if len(pool) == 0 {
		logging.Warn("Matcher", "no provider available for capability=%s tenant=%s", capability, tenant)
		return workflow.MCPDescriptor{}, errkind.New(errkind.NoProvider, "no healthy MCP declares capability "+capability)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].CostTier != pool[j].CostTier {
			return pool[i].CostTier < pool[j].CostTier
		}
		return pool[i].AvgLatency < pool[j].AvgLatency
	})

	tied := topTier(pool)
	chosen := m.pickRoundRobin(capability, tied)

	logging.Debug("Matcher", "capability=%s tenant=%s -> mcp=%s (candidates=%d tied=%d)",
		capability, tenant, chosen.ID, len(pool), len(tied))
	return chosen, nil
}

func filterHealth(in []workflow.MCPDescriptor, state workflow.HealthState) []workflow.MCPDescriptor {
	var out []workflow.MCPDescriptor
	for _, d := range in {
		if d.Health == state {
			out = append(out, d)
		}
	}
	return out
}

func (m *Matcher) filterRateLimited(tenant string, in []workflow.MCPDescriptor) []workflow.MCPDescriptor {
	var out []workflow.MCPDescriptor
	for _, d := range in {
		if m.limits.Allow(tenant, d.ID) {
			out = append(out, d)
		}
	}
	return out
}

// topTier returns the prefix of in (already sorted by cost ascending,
// then latency ascending by Select) sharing the best-ranked
// (cost tier, latency) pair — the set round-robin breaks ties across.
func topTier(in []workflow.MCPDescriptor) []workflow.MCPDescriptor {
	if len(in) == 0 {
		return nil
	}
	best := in[0]
	tied := []workflow.MCPDescriptor{best}
	for _, d := range in[1:] {
		if d.CostTier == best.CostTier && d.AvgLatency == best.AvgLatency {
			tied = append(tied, d)
			continue
		}
		break
	}
	return tied
}

func (m *Matcher) pickRoundRobin(capability string, tied []workflow.MCPDescriptor) workflow.MCPDescriptor {
	if len(tied) == 1 {
		return tied[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset := m.roundRobin[capability] % len(tied)
	m.roundRobin[capability] = offset + 1
	return tied[offset]
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string, string) bool { return true }
