// Package webstorage exposes a kvdb bucket through the Web Storage
// contract: Key, GetItem, SetItem, RemoveItem, Length and Clear.
//
// The contract is synchronous in spirit and has no room for errors on
// reads, so read-like calls degrade to sentinels (false, -1) when the
// bucket cannot be reached. Writes still return their errors.
//
//	bucket, _ := sdk.NewBucket("MY_BUCKET_ID", token, nil)
//	store := webstorage.New(bucket)
//
//	if err := store.SetItem(ctx, "theme", "dark"); err != nil {
//	    return err
//	}
//	theme, ok := store.GetItem(ctx, "theme")
package webstorage

import (
	"context"

	"github.com/birbparty/kvdb/internal/batch"
	"github.com/birbparty/kvdb/sdk"
	"github.com/sirupsen/logrus"
)

// KV is the part of *sdk.Bucket the adapter needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, opts *sdk.SetOptions) (string, error)
	Delete(ctx context.Context, key string) (string, error)
	List(ctx context.Context, opts *sdk.ListOptions) ([]string, error)
}

// Storage is a Web Storage view of one bucket. It holds no state of its
// own; every call goes to the bucket.
type Storage struct {
	bucket     KV
	log        logrus.FieldLogger
	clearLimit int
}

// Option configures a Storage
type Option func(*Storage)

// WithLogger sets where suppressed failures are logged (debug level).
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Storage) {
		s.log = log
	}
}

// WithClearConcurrency caps the deletions Clear runs at once. 0, the
// default, issues them all together.
func WithClearConcurrency(n int) Option {
	return func(s *Storage) {
		s.clearLimit = n
	}
}

// New wraps bucket.
func New(bucket KV, opts ...Option) *Storage {
	s := &Storage{
		bucket: bucket,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the name of the key at position index in list order.
// It returns false when index is out of range or the bucket failed.
func (s *Storage) Key(ctx context.Context, index int) (string, bool) {
	if index < 0 {
		return "", false
	}
	keys, err := s.bucket.List(ctx, &sdk.ListOptions{Skip: index, Limit: 1})
	if err != nil {
		s.settle(OpKey, err)
		return "", false
	}
	if len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}

// GetItem returns the value stored under name. It returns false for a
// missing key and for any failure.
func (s *Storage) GetItem(ctx context.Context, name string) (string, bool) {
	v, err := s.bucket.Get(ctx, name)
	if err != nil {
		s.settle(OpGetItem, err)
		return "", false
	}
	return v, true
}

// SetItem stores value under name.
func (s *Storage) SetItem(ctx context.Context, name, value string) error {
	_, err := s.bucket.Set(ctx, name, value, nil)
	return s.settle(OpSetItem, err)
}

// RemoveItem deletes name. Like Bucket.Delete, only transport failures
// are reported.
func (s *Storage) RemoveItem(ctx context.Context, name string) error {
	_, err := s.bucket.Delete(ctx, name)
	return s.settle(OpRemoveItem, err)
}

// Length returns the number of keys in the bucket, or -1 on failure.
func (s *Storage) Length(ctx context.Context) int {
	keys, err := s.bucket.List(ctx, nil)
	if err != nil {
		s.settle(OpLength, err)
		return -1
	}
	return len(keys)
}

// Clear deletes every key. Deletions run concurrently and Clear waits for
// all of them; one failure fails the whole call.
func (s *Storage) Clear(ctx context.Context) error {
	keys, err := s.bucket.List(ctx, nil)
	if err != nil {
		return s.settle(OpClear, err)
	}
	return s.settle(OpClear, batch.DeleteAll(ctx, s.bucket, keys, s.clearLimit))
}

// settle applies op's policy to err. A suppressed error is logged and
// becomes nil; the caller then answers with its sentinel.
func (s *Storage) settle(op Op, err error) error {
	if err == nil {
		return nil
	}
	if PolicyFor(op) == SuppressToSentinel {
		s.log.WithFields(logrus.Fields{
			"operation": string(op),
			"error":     err,
		}).Debug("webstorage: failure suppressed")
		return nil
	}
	return err
}
