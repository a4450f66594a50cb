package httpx

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an upstream HTTP failure.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeServiceUnavailable
	ErrTypeInvalidRequest
	ErrTypeNotFound
	ErrTypeTimeout
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeServiceUnavailable:
		return "service unavailable"
	case ErrTypeInvalidRequest:
		return "invalid request"
	case ErrTypeNotFound:
		return "not found"
	case ErrTypeTimeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

// Error is an upstream HTTP failure with enough context for the caller to
// decide whether retrying makes sense.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Upstream   string // which remote service produced the error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status: %d)", e.Upstream, e.Type.String(), e.Message, e.StatusCode)
}

// Is implements error matching on the error type for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable reports whether another attempt could succeed.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(upstream, message string) *Error {
	return &Error{
		Type:      ErrTypeTimeout,
		Message:   message,
		Retryable: true,
		Upstream:  upstream,
	}
}

// ClassifyStatus maps a non-2xx status code to a typed error. 5xx and 429 are
// retryable; everything else fails fast.
func ClassifyStatus(upstream string, statusCode int, message string) *Error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &Error{
			Type:       ErrTypeAuthentication,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Upstream:   upstream,
		}
	case statusCode == http.StatusTooManyRequests:
		return &Error{
			Type:       ErrTypeRateLimit,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Upstream:   upstream,
		}
	case statusCode == http.StatusNotFound:
		return &Error{
			Type:       ErrTypeNotFound,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Upstream:   upstream,
		}
	case statusCode >= 500:
		return &Error{
			Type:       ErrTypeServiceUnavailable,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  true,
			Upstream:   upstream,
		}
	case statusCode >= 400:
		return &Error{
			Type:       ErrTypeInvalidRequest,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Upstream:   upstream,
		}
	default:
		return &Error{
			Type:       ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Upstream:   upstream,
		}
	}
}
