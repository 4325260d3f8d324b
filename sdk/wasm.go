//go:build wasm

package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall/js"
	"time"
)

// newHTTPTransport creates a new WASM-compatible HTTP transport backed by
// the host's fetch function (browser window or Node.js global).
func newHTTPTransport(config *Config, token string) (*httpTransport, error) {
	return newTransportBase(config, token), nil
}

// roundTrip performs a single request through fetch and reads the body as text.
func (t *httpTransport) roundTrip(ctx context.Context, method, fullURL string, header http.Header, body []byte) (*response, error) {
	fetchFunc := js.Global().Get("fetch")
	if !fetchFunc.Truthy() {
		return nil, &NetworkError{Op: method + " " + fullURL, Err: errors.New("fetch API not available")}
	}

	headers := map[string]interface{}{}
	for key := range header {
		headers[key] = header.Get(key)
	}

	opts := js.ValueOf(map[string]interface{}{
		"method":  method,
		"headers": headers,
		"mode":    "cors",
	})
	if body != nil {
		opts.Set("body", string(body))
	}

	var controller js.Value
	if ac := js.Global().Get("AbortController"); ac.Truthy() {
		controller = ac.New()
		opts.Set("signal", controller.Get("signal"))
	}

	resultChan := make(chan *response, 1)
	errChan := make(chan error, 1)

	// Callbacks stay alive until the promise chain settles; exactly one of
	// onText or onError ends it.
	var onText, onResponse, onError js.Func
	release := func() {
		onText.Release()
		onResponse.Release()
		onError.Release()
	}

	var status int
	var statusText string
	onText = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resultChan <- &response{
			statusCode: status,
			statusText: statusText,
			body:       []byte(args[0].String()),
		}
		return nil
	})
	onResponse = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resp := args[0]
		status = resp.Get("status").Int()
		statusText = resp.Get("statusText").String()
		resp.Call("text").Call("then", onText).Call("catch", onError)
		return nil
	})
	onError = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		errMsg := "network error"
		if len(args) > 0 && args[0].Get("message").Truthy() {
			errMsg = args[0].Get("message").String()
		}
		errChan <- errors.New(errMsg)
		return nil
	})

	fetchFunc.Invoke(fullURL, opts).Call("then", onResponse).Call("catch", onError)

	var err error
	select {
	case resp := <-resultChan:
		release()
		return resp, nil
	case ferr := <-errChan:
		release()
		return nil, &NetworkError{Op: method + " " + fullURL, Err: ferr}
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(t.config.Timeout):
		err = fmt.Errorf("fetch timed out after %s", t.config.Timeout)
	}

	// abort rejects the pending promise, which settles through onError
	if controller.Truthy() {
		controller.Call("abort")
	}
	go func() {
		select {
		case <-resultChan:
		case <-errChan:
		}
		release()
	}()
	return nil, &NetworkError{Op: method + " " + fullURL, Err: err}
}

// close closes the transport (no-op for WASM)
func (t *httpTransport) close() error {
	return nil
}
