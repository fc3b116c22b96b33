package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents an error returned by an LLM backend.
type APIError struct {
	// Provider is the name of the provider that encountered the error.
	Provider string

	// StatusCode is the HTTP status, or 0 for non-HTTP failures.
	StatusCode int

	// Message is a human-readable error message.
	Message string

	// Err is the underlying error (if any).
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	status := ""
	if e.StatusCode != 0 {
		status = fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s provider error%s: %s: %v", e.Provider, status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s provider error%s: %s", e.Provider, status, e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether the backend answered 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ErrMaxRetries is the sentinel matched by errors.Is on an ExhaustedError.
var ErrMaxRetries = errors.New("API request failed after maximum number of retries")

// ExhaustedError is returned when every attempt allowed by the retry
// policy failed with a retriable error.
type ExhaustedError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", e.Provider, ErrMaxRetries, e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the last attempt's error.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrMaxRetries, e.Err}
}
