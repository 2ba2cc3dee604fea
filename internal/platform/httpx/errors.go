// Package httpx defines the API error taxonomy and the response envelope
// shared by every REST handler. All responses have the shape
// {success, message?, count?, data?, error?}; the error field carries
// underlying detail and is populated only outside production.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed API error carrying the HTTP status it maps to and a
// caller-safe message. Cause, when set, is internal detail that must not
// reach production responses.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Validation reports malformed or semantically invalid input. Never retried.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports that a referenced resource does not exist.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a stale-version write rejected by the optimistic
// concurrency check.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized reports a missing, invalid, or expired credential.
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

// Forbidden reports an authenticated caller whose role does not permit the
// operation.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message}
}

// Persistence wraps a store failure outside input validation. Surfaced as a
// generic 500; the cause is logged, never returned to production callers.
func Persistence(message string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message, Cause: cause}
}

// AsError extracts an *Error from err, or wraps err as a persistence error
// with the given fallback message.
func AsError(err error, fallback string) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Persistence(fallback, err)
}

// IsStatus reports whether err is an Error mapping to the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsNotFound reports whether err is a 404-class Error.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409-class Error.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}
