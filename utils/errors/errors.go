package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type shared by the ledger API and the registry
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`

	cause error
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an APIError with the same code, so
// errors.Is(err, ErrNotFound) matches any not-found error regardless of details.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

func (e *APIError) Unwrap() error {
	return e.cause
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound     = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal     = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrConflict     = NewAPIError("CONFLICT", "Conflicting operation in progress", http.StatusConflict)
	ErrTransient    = NewAPIError("TRANSIENT_NETWORK_ERROR", "Remote request failed", http.StatusServiceUnavailable)
)

// Wrap converts err into an APIError, keeping err as the cause.
// An err that already is an APIError is returned unchanged.
func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	wrapped := NewAPIError(code, message, status, err.Error())
	wrapped.cause = err
	return wrapped
}

// With returns a copy of the sentinel kind carrying details.
func With(kind *APIError, format string, args ...any) *APIError {
	return &APIError{
		Code:    kind.Code,
		Message: kind.Message,
		Status:  kind.Status,
		Details: fmt.Sprintf(format, args...),
	}
}

// Validation, NotFound and Conflict are shorthands for the registry's synchronous rejections.
func Validation(format string, args ...any) *APIError { return With(ErrInvalidInput, format, args...) }

func NotFound(format string, args ...any) *APIError { return With(ErrNotFound, format, args...) }

func Conflict(format string, args ...any) *APIError { return With(ErrConflict, format, args...) }

// Transient marks err as a TransientNetworkError.
func Transient(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == ErrTransient.Code {
		return apiErr
	}
	wrapped := With(ErrTransient, "%v", err)
	wrapped.cause = err
	return wrapped
}

// FromStatus maps an HTTP status to the error kind it represents.
func FromStatus(status int) *APIError {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrInvalidInput
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return ErrTransient
	default:
		return ErrInternal
	}
}
