package registry

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/workflow"
	"github.com/giantswarm/fedctl/pkg/logging"
)

const (
	// window is the number of recent outcomes kept per MCP for the
	// error-rate calculation.
	window = 20

	// defaultFailureThreshold is the number of consecutive failures after
	// which an MCP is marked Unreachable.
	defaultFailureThreshold = 5
	// defaultRecoveryThreshold is the number of consecutive recorded
	// successes required to go back to Healthy.
	defaultRecoveryThreshold = 3
	// defaultErrorRateThreshold degrades a Healthy MCP once its recent
	// error rate exceeds this fraction.
	defaultErrorRateThreshold = 0.2
	// defaultLatencyFactor degrades a Healthy MCP once its moving-average
	// latency exceeds this multiple of its declared expected latency.
	defaultLatencyFactor = 3.0
)

type entry struct {
	desc workflow.MCPDescriptor

	mu       sync.Mutex
	outcomes []bool // ring of recent success/fail, most-recent last
}

func (e *entry) recordOutcome(latency time.Duration, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.outcomes = append(e.outcomes, success)
	if len(e.outcomes) > window {
		e.outcomes = e.outcomes[len(e.outcomes)-window:]
	}

	if e.desc.AvgLatency == 0 {
		e.desc.AvgLatency = latency
	} else {
		// Simple EMA, alpha = 0.2.
		e.desc.AvgLatency = time.Duration(0.8*float64(e.desc.AvgLatency) + 0.2*float64(latency))
	}

	if success {
		e.desc.ConsecutiveFailures = 0
		e.desc.ConsecutiveSuccess++
	} else {
		e.desc.ConsecutiveSuccess = 0
		e.desc.ConsecutiveFailures++
	}

	e.desc.Health = nextHealth(e.desc, e.errorRateLocked())
}

// descriptor returns a snapshot of e.desc, guarded by e.mu so it never
// races with recordOutcome's mutation of the same fields.
func (e *entry) descriptor() workflow.MCPDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desc
}

func (e *entry) errorRateLocked() float64 {
	if len(e.outcomes) == 0 {
		return 0
	}
	failures := 0
	for _, ok := range e.outcomes {
		if !ok {
			failures++
		}
	}
	return float64(failures) / float64(len(e.outcomes))
}

// nextHealth applies the hysteresis rules described in the package doc.
func nextHealth(d workflow.MCPDescriptor, errorRate float64) workflow.HealthState {
	if d.ConsecutiveFailures >= defaultFailureThreshold {
		return workflow.Unreachable
	}

	switch d.Health {
	case workflow.Unreachable:
		if d.ConsecutiveSuccess >= defaultRecoveryThreshold {
			return workflow.Healthy
		}
		return workflow.Unreachable
	case workflow.Degraded:
		if d.ConsecutiveSuccess >= defaultRecoveryThreshold && errorRate < defaultErrorRateThreshold {
			return workflow.Healthy
		}
		return workflow.Degraded
	default: // Healthy
		degraded := errorRate > defaultErrorRateThreshold
		if d.ExpectedLatency > 0 && float64(d.AvgLatency) > defaultLatencyFactor*float64(d.ExpectedLatency) {
			degraded = true
		}
		if degraded {
			return workflow.Degraded
		}
		return workflow.Healthy
	}
}

// Registry is the authoritative in-memory catalog of MCPDescriptors.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	metrics *Metrics
}

// New returns an empty Registry.
func New(metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Registry{entries: make(map[string]*entry), metrics: metrics}
}

// Register adds or replaces an MCPDescriptor. Fails if capabilities are
// empty or the endpoint isn't a valid absolute URL.
func (r *Registry) Register(desc workflow.MCPDescriptor) error {
	if len(desc.Capabilities) == 0 {
		return errkind.New(errkind.Invalid, fmt.Sprintf("mcp %q declares no capabilities", desc.ID))
	}
	if desc.ID == "" {
		return errkind.New(errkind.Invalid, "mcp descriptor has empty id")
	}
	u, err := url.ParseRequestURI(desc.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errkind.Wrap(errkind.Invalid, fmt.Sprintf("mcp %q has invalid endpoint %q", desc.ID, desc.Endpoint), err)
	}
	if desc.ConcurrencyLimit <= 0 {
		desc.ConcurrencyLimit = 4
	}
	if desc.Health == "" {
		desc.Health = workflow.Healthy
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[desc.ID] = &entry{desc: desc}
	r.metrics.setHealth(desc.ID, desc.Health)
	logging.Info("Registry", "registered mcp %s (capabilities=%v)", desc.ID, desc.Capabilities)
	return nil
}

// Deregister removes an MCP from the catalog.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	logging.Info("Registry", "deregistered mcp %s", id)
}

// Get returns a copy of the descriptor, or false if unknown.
func (r *Registry) Get(id string) (workflow.MCPDescriptor, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return workflow.MCPDescriptor{}, false
	}
	return e.descriptor(), true
}

// snapshotEntries copies the current entry pointers out from under r.mu,
// so callers can read each entry's descriptor (via e.mu) without holding
// the registry lock for the whole scan.
func (r *Registry) snapshotEntries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// ListByCapability returns every Healthy-or-Degraded MCP declaring tag,
// sorted by (cost tier ascending, moving-average latency ascending) as
// the Matcher's base ranking — Unreachable MCPs are never returned.
func (r *Registry) ListByCapability(tag string) []workflow.MCPDescriptor {
	var out []workflow.MCPDescriptor
	for _, e := range r.snapshotEntries() {
		desc := e.descriptor()
		if desc.Health == workflow.Unreachable {
			continue
		}
		if desc.HasCapability(tag) {
			out = append(out, desc)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CostTier != out[j].CostTier {
			return out[i].CostTier < out[j].CostTier
		}
		return out[i].AvgLatency < out[j].AvgLatency
	})
	return out
}

// RecordOutcome updates an MCP's moving-average latency and
// consecutive-failure/success counters, recomputing its health.
func (r *Registry) RecordOutcome(id string, latency time.Duration, success bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	before := e.descriptor().Health
	e.recordOutcome(latency, success)
	after := e.descriptor().Health

	if before != after {
		logging.Info("Registry", "mcp %s health %s -> %s", id, before, after)
		r.metrics.recordTransition(id, after)
	}
}

// HasCapability reports whether any registered MCP — healthy, degraded,
// or unreachable — declares tag. Used by the Intent Parser Adapter at
// parse time to reject plans referencing a capability nothing in the
// fleet can ever serve, rather than scheduling them into a deadlock.
func (r *Registry) HasCapability(tag string) bool {
	for _, e := range r.snapshotEntries() {
		if e.descriptor().HasCapability(tag) {
			return true
		}
	}
	return false
}

// All returns a snapshot of every registered descriptor, for
// introspection (e.g. GET /metrics, admin tooling).
func (r *Registry) All() []workflow.MCPDescriptor {
	entries := r.snapshotEntries()
	out := make([]workflow.MCPDescriptor, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
