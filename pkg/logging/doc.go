// Package logging provides a structured logging facade over log/slog for the
// federation orchestrator and its subsystems.
//
// All log calls take a subsystem tag as the first argument (e.g.
// "Engine", "Registry", "Gateway") so that log lines can be filtered or
// routed per component without each package needing its own logger
// instance. Output is either human-readable text (default, suited to a
// terminal) or JSON (suited to log shippers), selected at Init time.
//
// Security-relevant actions (cancellation requests, auth rejections,
// tenant-quota denials) should go through Audit, which logs at INFO
// level with an "[AUDIT]" prefix so they can be grepped or routed; like
// any INFO line, audit lines are dropped when the configured minimum
// level is above INFO.
package logging
