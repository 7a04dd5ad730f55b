// Package errors provides standardized domain errors with codes for PixVault.
//
// Usage:
//
//	// In services - return typed errors
//	if axis.IsDefault {
//	    return errors.Validation("the default rating axis cannot be deleted")
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrNotFound) {
//	    response.NotFound(w, err.Error(), logger)
//	    return
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application. They map the sync
// pipeline's failure taxonomy: auth failures end a cycle, transport
// failures are retried at the client layer, rate limiting triggers a
// cooldown, not-found is a non-error for backfill, validation rejects
// registry mutations synchronously, and storage failures surface as
// cycle errors.
const (
	CodeAuth        Code = "AUTH"
	CodeTransport   Code = "TRANSPORT"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeNotFound    Code = "NOT_FOUND"
	CodeValidation  Code = "VALIDATION"
	CodeStorage     Code = "STORAGE"
	CodeConflict    Code = "CONFLICT"
	CodeInternal    Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuth:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeConflict:
		return http.StatusConflict
	case CodeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrAuth        = &Error{Code: CodeAuth, Message: "authentication failed"}
	ErrTransport   = &Error{Code: CodeTransport, Message: "transport error"}
	ErrRateLimited = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrStorage     = &Error{Code: CodeStorage, Message: "storage error"}
	ErrConflict    = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal    = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// Auth creates an authentication error.
func Auth(msg string) *Error {
	return &Error{Code: CodeAuth, Message: msg}
}

// Authf creates an authentication error with formatted message.
func Authf(format string, args ...any) *Error {
	return &Error{Code: CodeAuth, Message: fmt.Sprintf(format, args...)}
}

// Transport creates a transport error.
func Transport(msg string) *Error {
	return &Error{Code: CodeTransport, Message: msg}
}

// Transportf creates a transport error with formatted message.
func Transportf(format string, args ...any) *Error {
	return &Error{Code: CodeTransport, Message: fmt.Sprintf(format, args...)}
}

// RateLimited creates a rate-limited error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Storage creates a storage error.
func Storage(msg string) *Error {
	return &Error{Code: CodeStorage, Message: msg}
}

// Storagef creates a storage error with formatted message.
func Storagef(format string, args ...any) *Error {
	return &Error{Code: CodeStorage, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
