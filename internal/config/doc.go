// Package config loads and validates the orchestrator's static
// configuration: bind address, engine concurrency limits, default retry
// policy, and the backends (workflow store, MCP health probe) wired up
// at startup.
//
// Loading follows the teacher's internal/config/loader.go pattern: read
// YAML, unmarshal over a struct seeded with defaults, reject unknown
// keys, then let environment variables override individual fields for
// container deployments where mounting a full file is inconvenient.
package config
