package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/fedctl/internal/errkind"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().BindAddr, cfg.BindAddr)
	assert.Equal(t, Default().StoreURI, cfg.StoreURI)
}

func TestLoad_OverridesDefaultsFromFile(t *testing.T) {
	path := writeFile(t, `
bind_addr: ":9090"
max_concurrent_workflows: 50
per_workflow_parallelism: 2
default_step_timeout_ms: 5000
event_backlog_size: 16
mcp_health_probe_interval_ms: 2000
default_retry_policy:
  max_attempts: 5
  base_delay_ms: 100
  factor: 1.5
  jitter: 0.1
default_tenant_limit: 4
store_uri: "postgres://example"
tenant_quotas:
  - tenant: acme
    limit: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.BindAddr)
	assert.Equal(t, 50, cfg.MaxConcurrentWorkflows)
	assert.Equal(t, 5, cfg.DefaultRetryPolicy.MaxAttempts)
	assert.Equal(t, "postgres://example", cfg.StoreURI)
	assert.Equal(t, map[string]int{"acme": 8}, cfg.TenantLimitOverrides())
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	path := writeFile(t, "bnid_addr: \":9090\"\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "max_concurrent_workflows: 0\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errkind.Invalid, errkind.KindOf(err))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "bind_addr: \":9090\"\n")
	t.Setenv("FEDCTL_BIND_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.BindAddr)
}

func TestLoad_ParsesMCPRegistrations(t *testing.T) {
	path := writeFile(t, `
mcps:
  - id: deploy-mcp
    endpoint: "https://deploy.example.internal"
    capabilities: ["deploy", "rollback"]
    cost_tier: 1
    expected_latency_ms: 250
    concurrency_limit: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.MCPs, 1)
	assert.Equal(t, "deploy-mcp", cfg.MCPs[0].ID)
	assert.Equal(t, []string{"deploy", "rollback"}, cfg.MCPs[0].Capabilities)
	assert.Equal(t, 250*time.Millisecond, cfg.MCPs[0].ExpectedLatency())
}

func TestConfig_Validate_MCPMissingCapabilities(t *testing.T) {
	cfg := Default()
	cfg.MCPs = []MCPRegistration{{ID: "x", Endpoint: "https://x.example"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errkind.Invalid, errkind.KindOf(err))
}

func TestConfig_Validate_TenantQuotaMissingName(t *testing.T) {
	cfg := Default()
	cfg.TenantQuotas = []TenantQuota{{Tenant: "", Limit: 1}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errkind.Invalid, errkind.KindOf(err))
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}
