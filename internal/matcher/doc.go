// Package matcher is the Capability Matcher (spec §4.3): given a
// required capability tag and a tenant, it picks one healthy MCP to run
// the step against.
//
// Selection is cost tier ascending, then moving-average latency
// ascending, then round-robin across exact ties — the same
// sort-then-decide shape the teacher uses for picking a ServiceClass
// instance, generalized from a static instance list to the Registry's
// live health view. Degraded MCPs are only considered when no Healthy
// one declares the capability; Unreachable MCPs never surface here at
// all (the Registry already excludes them).
package matcher
