package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/fedctl/pkg/logging"
)

// envPrefix namespaces every override variable, e.g. FEDCTL_BIND_ADDR.
const envPrefix = "FEDCTL_"

// Load reads configFile, merges it over Default(), applies FEDCTL_*
// environment overrides, and validates the result. A missing file is
// not an error — the default config is used as-is, logged the way the
// teacher's LoadConfig logs a missing config.yaml.
func Load(configFile string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := decodeStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", configFile, err)
		}
		logging.Info("Config", "loaded configuration from %s", configFile)
	case errors.Is(err, os.ErrNotExist):
		logging.Info("Config", "no config file at %s, using defaults", configFile)
	default:
		return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeStrict unmarshals data over cfg, rejecting any YAML key that
// does not correspond to a known field (teacher's loader trusts a fixed
// schema; a typo'd key here would otherwise silently no-op).
func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv(envPrefix + "BIND_ADDR"); ok {
		cfg.BindAddr = v
	}
	if v, ok := envInt(envPrefix + "MAX_CONCURRENT_WORKFLOWS"); ok {
		cfg.MaxConcurrentWorkflows = v
	}
	if v, ok := envInt(envPrefix + "PER_WORKFLOW_PARALLELISM"); ok {
		cfg.PerWorkflowParallelism = v
	}
	if v, ok := envInt(envPrefix + "DEFAULT_STEP_TIMEOUT_MS"); ok {
		cfg.DefaultStepTimeoutMS = v
	}
	if v, ok := envInt(envPrefix + "EVENT_BACKLOG_SIZE"); ok {
		cfg.EventBacklogSize = v
	}
	if v, ok := envInt(envPrefix + "MCP_HEALTH_PROBE_INTERVAL_MS"); ok {
		cfg.MCPHealthProbeIntervalMS = v
	}
	if v, ok := envInt(envPrefix + "DEFAULT_TENANT_LIMIT"); ok {
		cfg.DefaultTenantLimit = v
	}
	if v, ok := os.LookupEnv(envPrefix + "STORE_URI"); ok {
		cfg.StoreURI = v
	}
	if v, ok := os.LookupEnv(envPrefix + "AUTH_SHARED_SECRET"); ok {
		cfg.AuthSharedSecret = v
	}
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.Warn("Config", "ignoring non-integer value for %s: %q", key, v)
		return 0, false
	}
	return n, true
}
