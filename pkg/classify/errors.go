package classify

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrModelLoad is returned when the model or its labels cannot be
	// loaded. Terminal for the session: the monitor refuses to start.
	ErrModelLoad = errors.New("classify: model load failed")

	// ErrEmptyFrame is returned when the frame cannot be decoded.
	ErrEmptyFrame = errors.New("classify: empty or undecodable frame")

	// ErrClosed is returned when classifying after Close.
	ErrClosed = errors.New("classify: classifier closed")
)

// APIError represents an error response from a remote classification API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("classify: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
