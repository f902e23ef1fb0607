// Package toolerr is the tool boundary's error taxonomy: it translates
// internal package errors into one of a small set of machine-readable
// codes exactly once, at the edge the JSON-RPC/MCP surface sits behind.
// Everything inside internal/tool and below keeps returning plain Go
// errors; only the envelope construction in internal/tool consults this
// package.
package toolerr

import (
	"errors"
	"fmt"
)

// Code is the machine-parseable error category returned to callers.
type Code string

// The taxonomy named at the tool boundary.
const (
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeBusy         Code = "busy"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"
	CodeTimeout      Code = "timeout"
	CodeConflict     Code = "conflict"
)

// Error is a tool-boundary error carrying a Code alongside the message,
// so callers can branch on Code without parsing text.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a tool error with the given code and message, optionally
// wrapping cause (may be nil).
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Invalid is a convenience constructor for CodeInvalidInput.
func Invalid(message string) *Error {
	return New(CodeInvalidInput, message, nil)
}

// Table maps a sentinel error to the Code it should translate to. Table
// lookups use errors.Is, so a wrapped sentinel still matches.
type Table map[error]Code

// Translate maps err to a tool-boundary *Error using table, falling back
// to CodeInternal with err's own message when nothing in table matches.
// Returns nil if err is nil.
func Translate(err error, table Table) *Error {
	if err == nil {
		return nil
	}
	var asToolErr *Error
	if errors.As(err, &asToolErr) {
		return asToolErr
	}
	for sentinel, code := range table {
		if errors.Is(err, sentinel) {
			return New(code, sentinel.Error(), err)
		}
	}
	return New(CodeInternal, "internal error", err)
}
