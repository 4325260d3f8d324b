package sdk

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the hosted kvdb API.
const DefaultBaseURL = "https://kvdb.io"

// Config holds the configuration shared by every Bucket built from it.
// All fields are optional and have sensible defaults.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("http://localhost:8080").
//	    WithTimeout(10 * time.Second).
//	    WithHeader("X-Request-Source", "billing")
//
//	bucket, err := sdk.NewBucket("MY_BUCKET_ID", "", config)
type Config struct {
	// BaseURL is the base URL of the kvdb API.
	// Default: "https://kvdb.io"
	BaseURL string

	// Timeout is the HTTP request timeout.
	// This includes connection time, any redirects, and reading the response body.
	// Default: 30s
	Timeout time.Duration

	// TransportConfig holds HTTP transport settings.
	// Ignored when HTTPClient is set.
	TransportConfig TransportConfig

	// Headers are custom headers to include in all requests.
	// Authorization is managed by the bucket token and is never taken from here.
	Headers map[string]string

	// UserAgent is sent with every request.
	// Default: "kvdb-go-sdk/1.0.0"
	UserAgent string

	// Observer receives a start and end notification for every request.
	// If nil, NoopObserver is used.
	Observer Observer

	// TracerProvider creates the span wrapped around each request.
	// If nil, the global otel provider is used.
	TracerProvider trace.TracerProvider

	// HTTPClient replaces the client built from Timeout and TransportConfig.
	HTTPClient *http.Client
}

// TransportConfig holds HTTP transport configuration for connection pooling.
//
// Example:
//
//	config.TransportConfig = sdk.TransportConfig{
//	    MaxIdleConns:    200,
//	    MaxConnsPerHost: 50,
//	    IdleConnTimeout: 120 * time.Second,
//	}
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Zero means no limit.
	// Default: 100
	MaxIdleConns int

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 10
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum time an idle connection will remain idle
	// before closing itself. Zero means no limit.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// DefaultConfig returns a Config pointing at the hosted service:
//   - Base URL: https://kvdb.io
//   - Timeout: 30 seconds
//   - Connection pooling: 100 idle connections, 10 per host
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
		Headers:   make(map[string]string),
		UserAgent: "kvdb-go-sdk/1.0.0",
		Observer:  &NoopObserver{},
	}
}

// WithBaseURL sets the base URL for the kvdb API.
// The URL should include the protocol (http/https); a trailing slash is ignored.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("http://127.0.0.1:8080")
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the request timeout for all operations.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithHeader adds a custom header to be sent with all requests.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithHeader("X-Tenant-ID", "tenant-123")
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithObserver sets a custom observer for monitoring SDK operations.
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	config := sdk.DefaultConfig().WithObserver(metrics)
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithTracerProvider sets the provider used to trace requests.
func (c *Config) WithTracerProvider(tp trace.TracerProvider) *Config {
	c.TracerProvider = tp
	return c
}

// WithHTTPClient makes every request go through client.
func (c *Config) WithHTTPClient(client *http.Client) *Config {
	c.HTTPClient = client
	return c
}

// Validate validates the configuration and sets defaults for missing values.
// This is called automatically by NewBucket.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL cannot be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid base URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL must have a scheme and host", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "kvdb-go-sdk/1.0.0"
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	return nil
}
