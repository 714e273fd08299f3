package config

import (
	"fmt"

	"github.com/giantswarm/fedctl/internal/errkind"
)

// Validate checks every field the orchestrator depends on at startup,
// returning an *errkind.Error of kind Invalid describing the first
// violation (grounded on the teacher's fail-fast config validation in
// internal/config/validation.go, collapsed here to the shape this
// package's single-struct Config actually needs).
func (c Config) Validate() error {
	switch {
	case c.BindAddr == "":
		return invalid("bind_addr", "must not be empty")
	case c.MaxConcurrentWorkflows <= 0:
		return invalid("max_concurrent_workflows", "must be positive")
	case c.PerWorkflowParallelism <= 0:
		return invalid("per_workflow_parallelism", "must be positive")
	case c.DefaultStepTimeoutMS <= 0:
		return invalid("default_step_timeout_ms", "must be positive")
	case c.EventBacklogSize <= 0:
		return invalid("event_backlog_size", "must be positive")
	case c.MCPHealthProbeIntervalMS <= 0:
		return invalid("mcp_health_probe_interval_ms", "must be positive")
	case c.DefaultRetryPolicy.MaxAttempts <= 0:
		return invalid("default_retry_policy.max_attempts", "must be positive")
	case c.DefaultRetryPolicy.BaseDelayMS <= 0:
		return invalid("default_retry_policy.base_delay_ms", "must be positive")
	case c.DefaultRetryPolicy.Factor <= 1.0:
		return invalid("default_retry_policy.factor", "must be greater than 1.0")
	case c.DefaultTenantLimit <= 0:
		return invalid("default_tenant_limit", "must be positive")
	case c.StoreURI == "":
		return invalid("store_uri", "must not be empty")
	}
	for _, q := range c.TenantQuotas {
		if q.Tenant == "" {
			return invalid("tenant_quotas", "entry is missing a tenant name")
		}
		if q.Limit <= 0 {
			return invalid("tenant_quotas", fmt.Sprintf("tenant %q limit must be positive", q.Tenant))
		}
	}
	for _, m := range c.MCPs {
		if m.ID == "" {
			return invalid("mcps", "entry is missing an id")
		}
		if m.Endpoint == "" {
			return invalid("mcps", fmt.Sprintf("mcp %q is missing an endpoint", m.ID))
		}
		if len(m.Capabilities) == 0 {
			return invalid("mcps", fmt.Sprintf("mcp %q declares no capabilities", m.ID))
		}
	}
	return nil
}

func invalid(field, message string) error {
	return errkind.New(errkind.Invalid, fmt.Sprintf("config: %s: %s", field, message))
}
