// Package registry is the MCP Registry (spec §4.1): the authoritative,
// in-memory catalog of MCPDescriptors, their declared capabilities and
// their health. It is read-mostly and guarded by a single RWMutex,
// grounded on the teacher's aggregator/service registry pattern
// (register/deregister/list, callbacks on state transitions) generalized
// from managed subprocesses to remote HTTP MCP endpoints.
//
// Health follows a three-state machine, Healthy ⇄ Degraded ⇄
// Unreachable, driven by both passive observation (RecordOutcome, called
// by the Client Pool after every dispatch) and an active background probe
// loop that polls each MCP's /health endpoint. Hysteresis — different
// thresholds to degrade versus to recover — prevents flapping.
package registry
