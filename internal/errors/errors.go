package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a shadowsky error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"    // 401
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrTransport      ErrorCode = "TRANSPORT"       // 502
	ErrStore          ErrorCode = "STORE"           // 500
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// SkyError represents a structured error with code, status, and details.
type SkyError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *SkyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SkyError {
	return &SkyError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for rejected credentials. The upstream
// status (401 or 403) is preserved in Details so callers can tell an expired
// session from a permission problem.
func NewUnauthorized(upstreamStatus int) *SkyError {
	return &SkyError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: "service rejected credentials",
		Details: map[string]any{"upstream_status": upstreamStatus},
	}
}

// NewNotFound creates a 404 error for a missing actor or post.
func NewNotFound(identifier string) *SkyError {
	return &SkyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewTransport creates a 502 error for network failures and upstream
// malfunctions. The cause is kept in Details for logging.
func NewTransport(err error) *SkyError {
	details := map[string]any{}
	if err != nil {
		details["cause"] = err.Error()
	}
	return &SkyError{
		Code:    ErrTransport,
		Status:  502,
		Message: "upstream request failed",
		Details: details,
	}
}

// NewStore creates a 500 error for local storage failures.
func NewStore(err error) *SkyError {
	details := map[string]any{}
	if err != nil {
		details["cause"] = err.Error()
	}
	return &SkyError{
		Code:    ErrStore,
		Status:  500,
		Message: "local store failure",
		Details: details,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details.
func NewInternal(err error) *SkyError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &SkyError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is (or wraps) a SkyError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SkyError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
