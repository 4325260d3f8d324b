package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		err         *HTTPError
		wantMessage string
		notFound    bool
		retryable   bool
	}{
		{
			name:        "not found",
			err:         newHTTPError(http.StatusNotFound, "Not Found", nil, "GET", "/b1/k"),
			wantMessage: "404 - Not Found",
			notFound:    true,
		},
		{
			name:        "custom status text",
			err:         newHTTPError(http.StatusForbidden, "Token Revoked", []byte("nope"), "PUT", "/b1/k"),
			wantMessage: "403 - Token Revoked",
		},
		{
			name:        "empty status text falls back",
			err:         newHTTPError(http.StatusBadGateway, "", nil, "GET", "/b1/k"),
			wantMessage: "502 - Bad Gateway",
			retryable:   true,
		},
		{
			name:        "unknown status",
			err:         newHTTPError(599, "", nil, "GET", "/b1/k"),
			wantMessage: "599 - Unknown Status",
			retryable:   true,
		},
		{
			name:        "too many requests",
			err:         newHTTPError(http.StatusTooManyRequests, "", nil, "GET", "/b1/k"),
			wantMessage: "429 - Too Many Requests",
			retryable:   true,
		},
		{
			name:        "request timeout",
			err:         newHTTPError(http.StatusRequestTimeout, "", nil, "GET", "/b1/k"),
			wantMessage: "408 - Request Timeout",
			retryable:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.err.Error())
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.notFound, errors.Is(tt.err, ErrNotFound))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestHTTPError_Classes(t *testing.T) {
	assert.True(t, newHTTPError(404, "", nil, "", "").IsClientError())
	assert.False(t, newHTTPError(404, "", nil, "", "").IsServerError())
	assert.True(t, newHTTPError(503, "", nil, "", "").IsServerError())
	assert.Equal(t, "nope", newHTTPError(403, "", []byte("nope"), "", "").Body)
}

func TestNetworkError(t *testing.T) {
	err := &NetworkError{Op: "GET http://x/b1/k", Err: io.ErrUnexpectedEOF}

	assert.Equal(t, "network error during GET http://x/b1/k: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, IsRetryable(err))

	wrapped := fmt.Errorf("loading profile: %w", err)
	assert.True(t, IsRetryable(wrapped))
}

func TestIsRetryable_Context(t *testing.T) {
	assert.False(t, IsRetryable(&NetworkError{Op: "GET", Err: context.Canceled}))
	assert.False(t, IsRetryable(&NetworkError{Op: "GET", Err: fmt.Errorf("dial: %w", context.DeadlineExceeded)}))
}

func TestIsRetryable_Other(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrInvalidResponse))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("404")))
}
