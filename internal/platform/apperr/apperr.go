// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

/*
Package apperr defines the centralized error taxonomy for the TownSpark SDK.

It provides a rich error type that bridges the gap between low-level transport
failures and the normalized outcome callers observe.

Architecture:

  - AppError: A struct containing a machine-readable ErrorCode and user-friendly messages.
  - Classification: Client-side codes (NETWORK_ERROR, TIMEOUT, PARSE_ERROR) that no
    server response can carry.
  - Mapping: Explicit mapping from HTTP status codes to error codes.

Every failure that leaves the transport layer is wrapped as an [AppError] so
callers never depend on server-specific error shapes.
*/
package apperr

import (
	"errors"
	"net/http"
)

// # Error Codes

// Code is a machine-readable error classification, independent of whatever
// message text the server happened to return.
type Code string

const (
	// Connectivity, DNS, or TLS failure before any response arrived.
	CodeNetworkError Code = "NETWORK_ERROR"

	// The request exceeded its deadline and was aborted.
	CodeTimeout Code = "TIMEOUT"

	// 401 on a non-refreshable call, or the refresh endpoint itself rejected us.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// A token refresh attempt failed; credentials have been cleared.
	CodeTokenExpired Code = "TOKEN_EXPIRED"

	// 403: authenticated but not allowed.
	CodeForbidden Code = "FORBIDDEN"

	// 400 with field-level validation failures.
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeGone               Code = "GONE"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeServerError        Code = "SERVER_ERROR"
	CodeBadGateway         Code = "BAD_GATEWAY"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"

	// The response body did not match its declared content type.
	CodeParseError Code = "PARSE_ERROR"

	// Anything that defeated classification. The original message is preserved.
	CodeUnknown Code = "UNKNOWN_ERROR"
)

// AppError is the canonical error type for the TownSpark SDK.
//
// It carries an HTTP status code (zero when the failure never reached the
// server), a machine-readable code, a client-safe message, and an optional
// slice of field-level validation errors.
//
// # Diagnostics
//
// The Cause field is for logging only and is never part of the normalized
// outcome shown to end users.
type AppError struct {
	// Code is the machine-readable error classification.
	Code Code `json:"code"`
	// Message is a human-readable description safe to show to the user.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code, or 0 for network-level failures.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for diagnostics only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Transport-Level Errors

// Network creates a NETWORK_ERROR [AppError] for failures that occurred
// before any HTTP response arrived.
func Network(cause error) *AppError {
	return &AppError{
		Code:    CodeNetworkError,
		Message: "Unable to reach the server. Check your connection and try again.",
		Cause:   cause,
	}
}

// Timeout creates a TIMEOUT [AppError] for a request that hit its deadline.
func Timeout(cause error) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: "The request timed out. Please try again.",
		Cause:   cause,
	}
}

// ParseError creates a PARSE_ERROR [AppError] for an undecodable response body.
func ParseError(status int, cause error) *AppError {
	return &AppError{
		Code:       CodeParseError,
		Message:    "The server returned an unreadable response.",
		HTTPStatus: status,
		Cause:      cause,
	}
}

// Unknown creates an UNKNOWN_ERROR [AppError], preserving the original
// message for diagnostics.
func Unknown(msg string, cause error) *AppError {
	if msg == "" {
		msg = "An unexpected error occurred"
	}
	return &AppError{
		Code:    CodeUnknown,
		Message: msg,
		Cause:   cause,
	}
}

// # Session Errors

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenExpired creates a TOKEN_EXPIRED [AppError]. Issued after a failed
// refresh attempt, once credentials have already been cleared.
func TokenExpired() *AppError {
	return &AppError{
		Code:       CodeTokenExpired,
		Message:    "Your session has expired. Please log in again.",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// # Validation

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidationError,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// # Status Mapping

// statusFallback provides generic text when the server sent no usable message.
func statusFallback(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "The request was invalid."
	case status == http.StatusUnauthorized:
		return "Authentication required."
	case status == http.StatusForbidden:
		return "You do not have permission to perform this action."
	case status == http.StatusNotFound:
		return "The requested resource was not found."
	case status == http.StatusConflict:
		return "The request conflicts with the current state."
	case status == http.StatusGone:
		return "The requested resource is no longer available."
	case status == http.StatusTooManyRequests:
		return "Too many requests. Please slow down."
	case status >= 500:
		return "The server encountered an error. Please try again later."
	default:
		return "The request failed."
	}
}

// FromStatus maps an HTTP status code to an [AppError].
//
// # Parameters
//   - status: The non-2xx HTTP response status.
//   - msg: The most specific message extracted from the response body.
//     When empty, a generic status-based fallback is used.
//   - details: Optional field-level validation errors (400 responses).
//
// # Returns
//   - An [*AppError] carrying the matching [Code].
func FromStatus(status int, msg string, details ...FieldError) *AppError {
	if msg == "" {
		msg = statusFallback(status)
	}

	ae := &AppError{
		Message:    msg,
		HTTPStatus: status,
		Details:    details,
	}

	switch {
	case status == http.StatusBadRequest:
		ae.Code = CodeValidationError
	case status == http.StatusUnauthorized:
		ae.Code = CodeUnauthorized
	case status == http.StatusForbidden:
		ae.Code = CodeForbidden
	case status == http.StatusNotFound:
		ae.Code = CodeNotFound
	case status == http.StatusConflict:
		ae.Code = CodeConflict
	case status == http.StatusGone:
		ae.Code = CodeGone
	case status == http.StatusTooManyRequests:
		ae.Code = CodeRateLimited
	case status == http.StatusBadGateway:
		ae.Code = CodeBadGateway
	case status == http.StatusServiceUnavailable:
		ae.Code = CodeServiceUnavailable
	case status >= 500:
		ae.Code = CodeServerError
	default:
		ae.Code = CodeUnknown
	}

	return ae
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
