package core

import (
	"fmt"
	"net/http"
)

// Error is a failure reported by a remote engine.
type Error struct {
	Type       ErrorType `json:"type"`
	Engine     string    `json:"engine"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: %s (status: %d)", e.Engine, e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %s", e.Engine, e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
)

// NewHTTPError classifies a non-2xx response from an engine.
func NewHTTPError(engine string, status int, body string) *Error {
	t := ErrAPI
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = ErrAuthentication
	case status == http.StatusTooManyRequests:
		t = ErrRateLimit
	case status == http.StatusServiceUnavailable:
		t = ErrOverloaded
	case status >= 400 && status < 500:
		t = ErrInvalidRequest
	}
	return &Error{Type: t, Engine: engine, Message: body, StatusCode: status}
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}
