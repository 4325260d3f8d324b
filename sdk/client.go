package sdk

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
)

// Bucket is a handle on one remote kvdb bucket and the credential used to
// reach it. It holds no data: every method is a single live round trip.
//
// A Bucket is immutable after construction and safe for concurrent use.
// Concurrent calls are independent HTTP requests with no client-side
// ordering between them. Nothing is retried; every failure is returned to
// the caller.
//
// Example:
//
//	bucket, err := sdk.NewBucket("MY_BUCKET_ID", os.Getenv("KVDB_TOKEN"), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bucket.Close()
//
//	ctx := context.Background()
//
//	if _, err := bucket.Set(ctx, "hits", "0", nil); err != nil {
//	    log.Fatal(err)
//	}
//	hits, err := bucket.Incr(ctx, "hits", 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(hits) // "1"
type Bucket struct {
	id        string
	transport *httpTransport
	mu        sync.RWMutex
	closed    bool
}

// NewBucket returns a handle for bucket id. token may be empty for buckets
// that do not require authorization. If config is nil, DefaultConfig is used.
func NewBucket(id, token string, config *Config) (*Bucket, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: bucket id cannot be empty", ErrInvalidConfig)
	}

	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	transport, err := newHTTPTransport(config, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return &Bucket{
		id:        id,
		transport: transport,
	}, nil
}

// ID returns the bucket identifier.
func (b *Bucket) ID() string {
	return b.id
}

// Get returns the value stored at key as text.
// A missing key yields an *HTTPError for which IsNotFound is true.
func (b *Bucket) Get(ctx context.Context, key string) (string, error) {
	resp, err := b.send(ctx, &request{
		op:     "get",
		method: http.MethodGet,
		path:   buildPath("/{0}/{1}", b.id, key),
	})
	if err != nil {
		return "", err
	}
	if err := resp.check(); err != nil {
		return "", err
	}
	return resp.text(), nil
}

// Set stores value at key and returns the response body.
func (b *Bucket) Set(ctx context.Context, key, value string, opts *SetOptions) (string, error) {
	req := &request{
		op:     "set",
		method: http.MethodPut,
		path:   buildPath("/{0}/{1}", b.id, key),
		body:   []byte(value),
	}
	if opts != nil {
		req.contentType = opts.ContentType
	}

	resp, err := b.send(ctx, req)
	if err != nil {
		return "", err
	}
	if err := resp.check(); err != nil {
		return "", err
	}
	return resp.text(), nil
}

// Incr adds delta to the number stored at key on the server and returns the
// new value. Positive deltas are sent with a leading "+" so kvdb treats the
// request as an increment; a zero or negative delta is sent as-is.
func (b *Bucket) Incr(ctx context.Context, key string, delta int64) (string, error) {
	resp, err := b.send(ctx, &request{
		op:     "incr",
		method: http.MethodPatch,
		path:   buildPath("/{0}/{1}", b.id, key),
		body:   []byte(encodeDelta(delta)),
	})
	if err != nil {
		return "", err
	}
	if err := resp.check(); err != nil {
		return "", err
	}
	return resp.text(), nil
}

// encodeDelta renders an increment body.
func encodeDelta(delta int64) string {
	if delta > 0 {
		return "+" + strconv.FormatInt(delta, 10)
	}
	return strconv.FormatInt(delta, 10)
}

// Delete removes key and returns the response body.
//
// The response status is not checked: a 404 or even a 500 comes back as
// body text with a nil error. Only transport failures are reported.
func (b *Bucket) Delete(ctx context.Context, key string) (string, error) {
	resp, err := b.send(ctx, &request{
		op:     "delete",
		method: http.MethodDelete,
		path:   buildPath("/{0}/{1}", b.id, key),
	})
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

// List returns the keys of the bucket in the order kvdb lists them.
// opts may be nil.
func (b *Bucket) List(ctx context.Context, opts *ListOptions) ([]string, error) {
	var keys []string
	if err := b.list(ctx, opts, false, &keys); err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// ListValues is List with values=true: it returns key/value pairs.
func (b *Bucket) ListValues(ctx context.Context, opts *ListOptions) ([]Entry, error) {
	var entries []Entry
	if err := b.list(ctx, opts, true, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (b *Bucket) list(ctx context.Context, opts *ListOptions, values bool, out interface{}) error {
	resp, err := b.send(ctx, &request{
		op:     "list",
		method: http.MethodGet,
		path:   buildPath("/{0}/", b.id),
		query:  opts.query(values),
	})
	if err != nil {
		return err
	}
	if err := resp.check(); err != nil {
		return err
	}
	return resp.decodeJSON(out)
}

// AccessToken asks kvdb for a new scoped token and returns it.
// Tokens are never cached or renewed by the SDK.
func (b *Bucket) AccessToken(ctx context.Context, opts *TokenOptions) (string, error) {
	resp, err := b.send(ctx, &request{
		op:          "token",
		method:      http.MethodPost,
		path:        buildPath("/{0}/tokens/", b.id),
		body:        []byte(opts.form().Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return "", err
	}
	if err := resp.check(); err != nil {
		return "", err
	}

	var tok tokenResponse
	if err := resp.decodeJSON(&tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: access_token missing", ErrInvalidResponse)
	}
	return tok.AccessToken, nil
}

// Close releases idle connections. Further calls fail with ErrClosed.
// Close is safe to call multiple times.
func (b *Bucket) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.transport.close()
}

func (b *Bucket) send(ctx context.Context, req *request) (*response, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return b.transport.do(ctx, req)
}

// checkClosed checks if the bucket is closed
func (b *Bucket) checkClosed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	return nil
}
