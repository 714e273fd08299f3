package registry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// Metrics exports the Registry's health state via Prometheus, the
// metrics library carried by both the teacher and the rest of the
// example pack.
type Metrics struct {
	healthState *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// NewMetrics constructs unregistered collectors. Call MustRegister (or
// Register, ignoring AlreadyRegisteredError) against whatever registry
// the process uses.
func NewMetrics() *Metrics {
	return &Metrics{
		healthState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mcp_health_state",
			Help: "Current health of a registered MCP: 0=Healthy, 1=Degraded, 2=Unreachable.",
		}, []string{"mcp_id"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_health_transitions_total",
			Help: "Count of MCP health state transitions.",
		}, []string{"mcp_id", "to"}),
	}
}

// MustRegister registers the collectors with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.healthState, m.transitions)
}

func healthValue(h workflow.HealthState) float64 {
	switch h {
	case workflow.Healthy:
		return 0
	case workflow.Degraded:
		return 1
	default:
		return 2
	}
}

func (m *Metrics) setHealth(id string, h workflow.HealthState) {
	m.healthState.WithLabelValues(id).Set(healthValue(h))
}

func (m *Metrics) recordTransition(id string, to workflow.HealthState) {
	m.healthState.WithLabelValues(id).Set(healthValue(to))
	m.transitions.WithLabelValues(id, string(to)).Inc()
}
