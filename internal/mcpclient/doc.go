// Package mcpclient is the MCP Client Pool (spec §4.2): the component
// that actually talks to remote MCP services over HTTP, turning a
// capability invocation into a wire call with bounded concurrency,
// retries and error classification.
//
// It is grounded on the teacher's session-connection plumbing
// (internal/aggregator/session_connection_helper.go builds and manages
// a round trip to a child MCP process) generalized from a long-lived,
// stateful session connection to a stateless per-call dispatch against a
// remote MCP endpoint: every Invoke is independent, carries its own
// idempotency key, and is retried according to the step's RetryPolicy
// rather than a persistent client lifecycle.
package mcpclient
