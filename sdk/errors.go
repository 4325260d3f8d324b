package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the SDK. These can be used with errors.Is()
// to check for specific error conditions.
//
// Example:
//
//	value, err := bucket.Get(ctx, "greeting")
//	if errors.Is(err, sdk.ErrNotFound) {
//	    // Handle missing key
//	}
var (
	// ErrInvalidConfig is returned when the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound matches any HTTPError carrying a 404 status
	ErrNotFound = errors.New("key not found")

	// ErrInvalidResponse is returned when the server response cannot be parsed
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrClosed is returned when a bucket is used after Close
	ErrClosed = errors.New("bucket is closed")
)

// HTTPError is returned by every checked operation when kvdb answers with a
// non-2xx status. Delete is unchecked and never returns an HTTPError.
//
// Example:
//
//	var httpErr *sdk.HTTPError
//	if errors.As(err, &httpErr) {
//	    log.Printf("kvdb said %d: %s", httpErr.StatusCode, httpErr.Body)
//	}
type HTTPError struct {
	// StatusCode is the HTTP status code from the response
	StatusCode int
	// StatusText is the reason phrase for StatusCode
	StatusText string
	// Body is the raw response body, usually a short plain-text explanation
	Body string
	// Method is the HTTP method of the failed request
	Method string
	// URL is the request URL with the query string
	URL string
}

// Error renders the error as "<status> - <status text>".
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d - %s", e.StatusCode, e.StatusText)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.IsNotFound()
}

// IsNotFound returns true if the error is a not found error
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsServerError returns true if the error is a server error
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsClientError returns true if the error is a client error
func (e *HTTPError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsRetryable reports whether repeating the same request may succeed.
func (e *HTTPError) IsRetryable() bool {
	if e.IsServerError() {
		return true
	}
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return false
}

// newHTTPError builds an HTTPError from a response status and body.
// An empty statusText falls back to the standard reason phrase.
func newHTTPError(statusCode int, statusText string, body []byte, method, url string) *HTTPError {
	text := statusText
	if text == "" {
		text = http.StatusText(statusCode)
	}
	if text == "" {
		text = "Unknown Status"
	}
	return &HTTPError{
		StatusCode: statusCode,
		StatusText: text,
		Body:       string(body),
		Method:     method,
		URL:        url,
	}
}

// NetworkError represents a failure below HTTP: connection refused, DNS,
// TLS, a canceled context or a body that could not be read.
// It unwraps to the transport's own error.
//
// Example:
//
//	var netErr *sdk.NetworkError
//	if errors.As(err, &netErr) {
//	    log.Printf("Network error during %s: %v", netErr.Op, netErr.Err)
//	}
type NetworkError struct {
	// Op is the operation that failed (e.g., "GET /bucket/key", "reading response")
	Op string
	// Err is the underlying transport error
	Err error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if the error represents a 404 from kvdb.
//
// Example:
//
//	value, err := bucket.Get(ctx, "key")
//	if sdk.IsNotFound(err) {
//	    value = "default"
//	} else if err != nil {
//	    return err
//	}
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotFound)
}

// IsRetryable checks if an error is worth retrying. The SDK itself never
// retries; this exists so callers can make that decision.
//
// Retryable errors include:
//   - Network errors, except a canceled or expired context
//   - Server errors (5xx status codes)
//   - 408 and 429 responses
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.IsRetryable()
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return !isContextError(netErr.Err)
	}

	return false
}
