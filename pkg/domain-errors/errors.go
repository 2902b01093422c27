// Package domainerrors provides coded errors raised by domain services.
//
// Stores report infrastructure facts through pkg/platform/sentinel; services
// translate those facts (and their own rule violations) into coded errors so
// the transport layer can map them to responses without inspecting internals.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for boundary mapping.
type Code string

const (
	// CodeBadRequest marks malformed input caught at the boundary (bad IDs,
	// unparseable payload fields).
	CodeBadRequest Code = "bad_request"
	// CodeValidation marks a field-level constraint violation (blank, length,
	// range) that slipped past the transport layer.
	CodeValidation Code = "validation_error"
	// CodeNotFound marks a referenced record that does not resolve.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a uniqueness collision (username, email).
	CodeConflict Code = "conflict"
	// CodeInternal marks store or infrastructure failure; details are logged,
	// never returned to the caller.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. The message is safe to show to callers for
// every code except CodeInternal.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a coded error with a caller-visible message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified failures.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-visible message, empty for unclassified or
// internal errors.
func MessageOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) && coded.Code != CodeInternal {
		return coded.Message
	}
	return ""
}
