// Package errkind implements the error-kind taxonomy from spec §7: every
// fallible operation in the orchestrator returns (or wraps) one of these
// kinds instead of relying on ad-hoc error strings or exceptions-as-control-flow.
package errkind

import (
	"errors"
	"fmt"
)

// Kind tags the category of a failure so callers can decide whether it is
// retryable without string-matching error messages.
type Kind string

const (
	// Transient: network timeout, 5xx, 429, connection reset. Retryable.
	Transient Kind = "Transient"
	// Invalid: 4xx (other than 408/429), schema validation failure. Not retryable.
	Invalid Kind = "Invalid"
	// Overloaded: local concurrency or quota exhausted. Retryable with backoff.
	Overloaded Kind = "Overloaded"
	// Cancelled: workflow cancellation. Terminal for the step.
	Cancelled Kind = "Cancelled"
	// Timeout: per-step deadline exceeded. Retryable.
	Timeout Kind = "Timeout"
	// NoProvider: the Capability Matcher found no eligible MCP. Retryable
	// with escalating delay up to a wait ceiling.
	NoProvider Kind = "NoProvider"
	// Internal: a bug or precondition violation. Not retryable.
	Internal Kind = "Internal"
)

// Retryable reports whether the Engine/Client Pool should retry a step
// that failed with this kind, per spec §7's propagation policy.
func (k Kind) Retryable() bool {
	switch k {
	case Transient, Overloaded, Timeout, NoProvider:
		return true
	default:
		return false
	}
}

// Error pairs a Kind with a human-readable message and, optionally, the
// underlying cause. It implements error and supports errors.Unwrap so
// callers can still recover the original cause with errors.As/Is.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts an *Error from err, returning (err, true) on success.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, otherwise Internal — any error that didn't go through this
// package's taxonomy is treated as an unclassified bug.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}
