package classifier

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoPhoto is returned when Classify is called without image data.
	ErrNoPhoto = errors.New("classifier: no photo")

	// ErrNetwork wraps transport failures: DNS, refused connections,
	// timeouts, truncated bodies.
	ErrNetwork = errors.New("classifier: network failure")

	// ErrMalformedResponse is returned when the response body is not JSON
	// or emotion_detected is missing or not a boolean.
	ErrMalformedResponse = errors.New("classifier: malformed response")

	// ErrNoAPIKey is returned when a hosted backend has no API key.
	ErrNoAPIKey = errors.New("classifier: API key required")

	// ErrNoBaseURL is returned when the HTTP backend has no base URL.
	ErrNoBaseURL = errors.New("classifier: base URL required")
)

// APIError is a non-2xx response from the classifier endpoint.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the "error" field of the body, or the raw body.
	Message string

	// Backend identifies which classifier returned the error.
	Backend string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("classifier [%s]: HTTP %d", e.Backend, e.StatusCode)
	}
	return fmt.Sprintf("classifier [%s]: HTTP %d: %s", e.Backend, e.StatusCode, e.Message)
}

// IsClientError returns true for 4xx responses, which usually mean the
// upload itself was rejected.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError returns true for 5xx responses. The reference server
// answers 500 when it finds no face in the frame.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
