// Package domainerrors provides coded errors for domain and service layers.
//
// Services return these so transports can map failures to wire responses
// without string matching. Stores return sentinel errors from
// pkg/platform/sentinel instead; services translate at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeUnauthorized: the caller is not authenticated or not registered.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: the caller is registered but lacks the role, ownership,
	// or administrative capability the operation requires.
	CodeForbidden Code = "forbidden"
	// CodeNotFound: the referenced entity does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidState: the operation is not valid for the entity's current
	// lifecycle state (e.g. paying for a product that is not listed).
	CodeInvalidState Code = "invalid_state"
	// CodeValidation: bad input such as expiry in the past,
	// inverted temperature range, wrong payment amount.
	CodeValidation Code = "validation"
	// CodeConflict: a uniqueness constraint was violated.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation: a model-level invariant would be broken.
	// Services translate this to CodeValidation or CodeConflict for callers.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTransferFailed: an outbound monetary transfer did not succeed.
	// The only code that implies staged local state had to be rolled back.
	CodeTransferFailed Code = "transfer_failed"
	// CodeBadRequest: the request could not be parsed or is structurally invalid.
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput: a single argument failed validation.
	CodeInvalidInput Code = "invalid_input"
	// CodeInternal: unexpected infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. The code drives transport mapping, the
// message is safe to return to callers.
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

// New creates a coded error with a caller-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted caller-facing message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is / errors.As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a coded error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
