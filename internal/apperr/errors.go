// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("invalid request")
	ErrTransition   = errors.New("illegal state transition")
	ErrUpstreamAuth = errors.New("upstream authorization required")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a caller-facing error. Message is returned verbatim to clients;
// Kind decides the response status.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(format string, args ...any) error { return newf(ErrNotFound, format, args...) }

// Validation reports a malformed or illegal request parameter.
func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }

// Transition reports a violated precondition of the event lifecycle.
func Transition(format string, args ...any) error { return newf(ErrTransition, format, args...) }

// UpstreamAuth reports missing third-party credentials or configuration.
func UpstreamAuth(format string, args ...any) error { return newf(ErrUpstreamAuth, format, args...) }

// Unauthorized reports a missing or invalid API credential.
func Unauthorized(format string, args ...any) error { return newf(ErrUnauthorized, format, args...) }

// Message returns the caller-facing message of err, or fallback when err
// does not carry one.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return fallback
}
