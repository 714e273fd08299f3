package config

import "time"

// RetryPolicy mirrors workflow.RetryPolicy in YAML-friendly form (millisecond
// durations instead of time.Duration, which yaml.v3 cannot unmarshal from a
// bare integer without a custom type).
type RetryPolicy struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelayMS int     `yaml:"base_delay_ms"`
	Factor      float64 `yaml:"factor"`
	Jitter      float64 `yaml:"jitter"`
}

// BaseDelay returns the configured base delay as a time.Duration.
func (p RetryPolicy) BaseDelay() time.Duration {
	return time.Duration(p.BaseDelayMS) * time.Millisecond
}

// TenantQuota overrides the default per-tenant concurrent-step limit for
// one tenant (spec §4.6 "Fairness & quotas").
type TenantQuota struct {
	Tenant string `yaml:"tenant"`
	Limit  int    `yaml:"limit"`
}

// Config is the Federation Orchestrator's complete static configuration
// (spec §6 "Configuration"). Load decodes the YAML over Default(), so
// fields absent from the file keep their default values.
type Config struct {
	BindAddr string `yaml:"bind_addr"`

	MaxConcurrentWorkflows   int `yaml:"max_concurrent_workflows"`
	PerWorkflowParallelism   int `yaml:"per_workflow_parallelism"`
	DefaultStepTimeoutMS     int `yaml:"default_step_timeout_ms"`
	EventBacklogSize         int `yaml:"event_backlog_size"`
	SubscriberBuffer         int `yaml:"subscriber_buffer"`
	MCPHealthProbeIntervalMS int `yaml:"mcp_health_probe_interval_ms"`

	DefaultRetryPolicy RetryPolicy `yaml:"default_retry_policy"`

	DefaultTenantLimit int           `yaml:"default_tenant_limit"`
	TenantQuotas       []TenantQuota `yaml:"tenant_quotas"`

	StoreURI string `yaml:"store_uri"`

	// AuthSharedSecret, when non-empty, is the bearer token the Gateway's
	// static TokenValidator requires on every request (spec §1 "auth
	// issuance is an external collaborator" — this is the simplest
	// validator that collaborator could hand us, not an auth system of
	// our own).
	AuthSharedSecret string `yaml:"auth_shared_secret"`

	// TenantRateLimitRPS / TenantRateLimitBurst configure the Gateway's
	// per-tenant token bucket (golang.org/x/time/rate).
	TenantRateLimitRPS   float64 `yaml:"tenant_rate_limit_rps"`
	TenantRateLimitBurst int     `yaml:"tenant_rate_limit_burst"`

	// MCPs seeds the Registry at startup. Dynamic registration isn't part
	// of the wire API (spec.md §6 names only the workflow endpoints), so
	// this is the only way an operator gets an MCP into the catalog.
	MCPs []MCPRegistration `yaml:"mcps"`
}

// MCPRegistration is the config-file shape of a workflow.MCPDescriptor
// seed entry. Health/outcome fields aren't configurable; they're owned
// by the Registry's health-probe loop once registered.
type MCPRegistration struct {
	ID                string   `yaml:"id"`
	Endpoint          string   `yaml:"endpoint"`
	Capabilities      []string `yaml:"capabilities"`
	CostTier          int      `yaml:"cost_tier"`
	ExpectedLatencyMS int      `yaml:"expected_latency_ms"`
	ConcurrencyLimit  int      `yaml:"concurrency_limit"`
}

// ExpectedLatency returns the configured expected latency as a
// time.Duration.
func (m MCPRegistration) ExpectedLatency() time.Duration {
	return time.Duration(m.ExpectedLatencyMS) * time.Millisecond
}

// DefaultStepTimeout returns the configured default step timeout.
func (c Config) DefaultStepTimeout() time.Duration {
	return time.Duration(c.DefaultStepTimeoutMS) * time.Millisecond
}

// MCPHealthProbeInterval returns the configured probe interval.
func (c Config) MCPHealthProbeInterval() time.Duration {
	return time.Duration(c.MCPHealthProbeIntervalMS) * time.Millisecond
}

// TenantLimitOverrides flattens TenantQuotas into the map shape
// engine.Options expects.
func (c Config) TenantLimitOverrides() map[string]int {
	if len(c.TenantQuotas) == 0 {
		return nil
	}
	out := make(map[string]int, len(c.TenantQuotas))
	for _, q := range c.TenantQuotas {
		out[q.Tenant] = q.Limit
	}
	return out
}

// Default returns a Config populated with the orchestrator's documented
// defaults (spec §6).
func Default() Config {
	return Config{
		BindAddr:                 ":8080",
		MaxConcurrentWorkflows:   1000,
		PerWorkflowParallelism:   4,
		DefaultStepTimeoutMS:     30_000,
		EventBacklogSize:         64,
		SubscriberBuffer:         32,
		MCPHealthProbeIntervalMS: 10_000,
		DefaultRetryPolicy: RetryPolicy{
			MaxAttempts: 3,
			BaseDelayMS: 500,
			Factor:      2.0,
			Jitter:      0.25,
		},
		DefaultTenantLimit:   16,
		StoreURI:             "memory://",
		TenantRateLimitRPS:   10,
		TenantRateLimitBurst: 20,
	}
}
