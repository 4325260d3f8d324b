package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/birbparty/kvdb/sdk"

// httpTransport handles HTTP communication with the kvdb API.
// It builds requests, reports them to the observer and tracer, and hands
// them to roundTrip, which is implemented per platform:
//   - native.go: Standard Go HTTP client for regular builds
//   - wasm.go: Fetch API wrapper for WebAssembly builds
//
// The transport never retries. One call to do is exactly one round trip.
type httpTransport struct {
	// client is the underlying HTTP client (native Go only)
	client *http.Client
	// config holds the SDK configuration
	config *Config
	// baseURL is the base URL without a trailing slash
	baseURL string
	// token is the bearer credential, empty for public buckets
	token string
	// observer for monitoring operations
	observer Observer
	// tracer opens one span per request
	tracer trace.Tracer
}

// request is a fully described logical operation, ready to be sent.
type request struct {
	// op names the bucket operation ("get", "set", "incr", ...)
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

// response is the raw outcome of one round trip.
type response struct {
	statusCode int
	statusText string
	body       []byte
	method     string
	url        string
}

func newTransportBase(config *Config, token string) *httpTransport {
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &httpTransport{
		config:   config,
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		token:    token,
		observer: config.Observer,
		tracer:   tp.Tracer(tracerName),
	}
}

// buildPath builds a URL path with proper escaping for path parameters.
// It replaces placeholders like {0}, {1}, etc. with the provided arguments,
// ensuring all special characters are properly URL-encoded.
//
// Example:
//
//	path := buildPath("/{0}/{1}", "bucket", "my key/with=special&chars")
//	// Result: "/bucket/my%20key%2Fwith%3Dspecial%26chars"
//
// The function uses QueryEscape for encoding, then replaces '+' with '%20'
// because '+' only means space inside query strings.
func buildPath(pattern string, args ...string) string {
	path := pattern
	for i, arg := range args {
		placeholder := fmt.Sprintf("{%d}", i)
		escaped := url.QueryEscape(arg)
		escaped = strings.Replace(escaped, "+", "%20", -1)
		path = strings.Replace(path, placeholder, escaped, 1)
	}
	return path
}

// buildURL joins the base URL, the escaped path and the query string.
func (t *httpTransport) buildURL(req *request) string {
	u := t.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	return u
}

// buildHeaders assembles the headers for req. Authorization only ever
// carries the bucket token.
func (t *httpTransport) buildHeaders(ctx context.Context, req *request) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("User-Agent", t.config.UserAgent)

	for key, value := range t.config.Headers {
		if http.CanonicalHeaderKey(key) == "Authorization" {
			continue
		}
		h.Set(key, value)
	}

	if req.contentType != "" {
		h.Set("Content-Type", req.contentType)
	}
	if t.token != "" {
		h.Set("Authorization", "Bearer "+t.token)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	return h
}

// do sends req once and returns the raw response. Non-2xx statuses are not
// errors at this layer; see response.check.
func (t *httpTransport) do(ctx context.Context, req *request) (*response, error) {
	fullURL := t.buildURL(req)

	ctx, span := t.tracer.Start(ctx, "kvdb."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(req.method),
			semconv.HTTPURLKey.String(fullURL),
		),
	)
	defer span.End()

	if t.observer != nil {
		t.observer.OnRequestStart(req.op, req.method, req.path)
	}
	start := time.Now()

	resp, err := t.roundTrip(ctx, req.method, fullURL, t.buildHeaders(ctx, req), req.body)

	status := 0
	if resp != nil {
		status = resp.statusCode
		resp.method = req.method
		resp.url = fullURL
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if status >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
	}

	if t.observer != nil {
		t.observer.OnRequestEnd(req.op, req.method, req.path, status, time.Since(start), err)
	}

	return resp, err
}

// check turns a non-2xx response into an *HTTPError.
func (r *response) check() error {
	if r.statusCode >= 200 && r.statusCode < 300 {
		return nil
	}
	return newHTTPError(r.statusCode, r.statusText, r.body, r.method, r.url)
}

// text returns the body as a string.
func (r *response) text() string {
	return string(r.body)
}

// decodeJSON unmarshals the body into v.
func (r *response) decodeJSON(v interface{}) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
