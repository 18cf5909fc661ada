// Package authzerr provides the error taxonomy shared across the
// authorization runtime: a small tagged-kind error wrapping a cause.
package authzerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an authorization operation failed.
type Kind string

const (
	// Unauthorized means Cedar evaluated to deny, or a composed check had
	// no satisfying branch.
	Unauthorized Kind = "unauthorized"
	// Unauthenticated means the principal could not be resolved at all.
	Unauthenticated Kind = "unauthenticated"
	// AuthorizationFailed means an internal error occurred while
	// evaluating a check: a fetcher failed, the engine errored, or
	// principal resolution raised.
	AuthorizationFailed Kind = "authorization_failed"
	// ConfigurationError means the runtime itself is misconfigured: no
	// policy set loaded, no fetcher registered for a required type, etc.
	ConfigurationError Kind = "configuration_error"
)

// Error is a kinded error with an optional cause and structured fields
// useful to interceptors and callers deciding how to react.
type Error struct {
	Kind       Kind
	Message    string
	DenyReason string // populated for Unauthorized: the policy ids or reason Cedar gave
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Unauthorizedf builds an Unauthorized error with the given deny reason.
func Unauthorizedf(denyReason string, format string, args ...any) *Error {
	return &Error{Kind: Unauthorized, Message: fmt.Sprintf(format, args...), DenyReason: denyReason}
}

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
