// Package driver implements kvdb as a named offline-storage driver. Hosts
// obtain a Descriptor with NewDescriptor, check Supports, and bind a
// bucket with InitStorage. Nothing is registered globally.
//
//	desc := driver.NewDescriptor()
//	d, err := desc.InitStorage(driver.Options{Bucket: bucket})
//	if err != nil {
//	    return err
//	}
//	if _, err := d.SetItem(ctx, "prefs", map[string]any{"theme": "dark"}); err != nil {
//	    return err
//	}
//	prefs, err := d.GetItem(ctx, "prefs")
//
// Values pass through a Serializer (JSON by default) on the way in and out.
// The methods on Driver block and return errors; Driver.Async offers the
// same calls as futures with optional completion callbacks.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/birbparty/kvdb/internal/batch"
	"github.com/birbparty/kvdb/sdk"
)

// Name is the driver name hosts select it by.
const Name = "kvdbDriver"

// ErrNoBucket is returned by InitStorage without a bucket.
var ErrNoBucket = errors.New("driver: options carry no bucket")

// KV is the part of *sdk.Bucket the driver needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, opts *sdk.SetOptions) (string, error)
	Delete(ctx context.Context, key string) (string, error)
	List(ctx context.Context, opts *sdk.ListOptions) ([]string, error)
	ListValues(ctx context.Context, opts *sdk.ListOptions) ([]sdk.Entry, error)
}

// Options binds a driver instance.
type Options struct {
	// Bucket is the target bucket. Required.
	Bucket KV
	// Serializer converts values; JSONSerializer when nil.
	Serializer Serializer
	// Name labels the store for the host; informational only.
	Name string
}

// Descriptor describes the driver to a host abstraction.
type Descriptor struct {
	Name string
}

// NewDescriptor returns the kvdb driver descriptor.
func NewDescriptor() Descriptor {
	return Descriptor{Name: Name}
}

// Supports reports whether the driver can run here. It needs only
// outbound HTTP, which every Go target has.
func (Descriptor) Supports() bool {
	return true
}

// InitStorage binds opts into a Driver. It makes no network call, and the
// same options always produce an equivalent driver.
func (Descriptor) InitStorage(opts Options) (*Driver, error) {
	if opts.Bucket == nil {
		return nil, ErrNoBucket
	}
	serializer := opts.Serializer
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	return &Driver{
		bucket:     opts.Bucket,
		serializer: serializer,
		name:       opts.Name,
	}, nil
}

// Driver is a bound kvdb driver instance.
type Driver struct {
	bucket     KV
	serializer Serializer
	name       string
}

// StoreName returns Options.Name.
func (d *Driver) StoreName() string {
	return d.name
}

// GetItem fetches and deserializes the value at key. A missing key is an
// error for which sdk.IsNotFound is true.
func (d *Driver) GetItem(ctx context.Context, key string) (any, error) {
	raw, err := d.bucket.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return d.serializer.Deserialize(raw)
}

// SetItem serializes and stores value, and returns value.
func (d *Driver) SetItem(ctx context.Context, key string, value any) (any, error) {
	raw, err := d.serializer.Serialize(value)
	if err != nil {
		return nil, err
	}
	if _, err := d.bucket.Set(ctx, key, raw, nil); err != nil {
		return nil, err
	}
	return value, nil
}

// RemoveItem deletes key.
func (d *Driver) RemoveItem(ctx context.Context, key string) error {
	_, err := d.bucket.Delete(ctx, key)
	return err
}

// Clear deletes every key concurrently; one failure fails the call.
func (d *Driver) Clear(ctx context.Context) error {
	keys, err := d.bucket.List(ctx, nil)
	if err != nil {
		return err
	}
	return batch.DeleteAll(ctx, d.bucket, keys, 0)
}

// Keys returns every key in list order.
func (d *Driver) Keys(ctx context.Context) ([]string, error) {
	return d.bucket.List(ctx, nil)
}

// Length returns the number of keys.
func (d *Driver) Length(ctx context.Context) (int, error) {
	keys, err := d.bucket.List(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Key returns the name of the key at position n. An out-of-range n yields
// "" and no error.
func (d *Driver) Key(ctx context.Context, n int) (string, error) {
	if n < 0 {
		return "", nil
	}
	keys, err := d.bucket.List(ctx, &sdk.ListOptions{Skip: n, Limit: 1})
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[0], nil
}

// IteratorFunc receives each value, its key and its 1-based position.
// Returning non-nil stops the iteration.
type IteratorFunc func(value any, key string, ordinal int) any

// Iterate fetches all pairs and calls fn on each in list order. It
// returns the first non-nil result of fn, or nil once every pair was seen.
func (d *Driver) Iterate(ctx context.Context, fn IteratorFunc) (any, error) {
	entries, err := d.bucket.ListValues(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		value, err := d.serializer.Deserialize(e.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.Key, err)
		}
		if result := fn(value, e.Key, i+1); result != nil {
			return result, nil
		}
	}
	return nil, nil
}
