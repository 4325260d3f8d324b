//go:build !wasm

package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// newHTTPTransport creates a native HTTP transport
func newHTTPTransport(config *Config, token string) (*httpTransport, error) {
	t := newTransportBase(config, token)

	if config.HTTPClient != nil {
		t.client = config.HTTPClient
		return t, nil
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.TransportConfig.MaxIdleConns,
		MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	t.client = &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
	return t, nil
}

// roundTrip performs a single HTTP request and reads the whole body.
func (t *httpTransport) roundTrip(ctx context.Context, method, fullURL string, header http.Header, body []byte) (*response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = header

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + fullURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "reading response", Err: err}
	}

	return &response{
		statusCode: resp.StatusCode,
		statusText: strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "),
		body:       respBody,
	}, nil
}

// close closes the transport
func (t *httpTransport) close() error {
	t.client.CloseIdleConnections()
	return nil
}
