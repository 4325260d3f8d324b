// Package emulator serves a local, kvdb-compatible HTTP API for development
// and contract tests. Values live in a pluggable Store (memory or Redis).
package emulator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Store defines the storage operations behind the emulated API.
// Keys are scoped by bucket; buckets spring into existence on first write.
type Store interface {
	// Get retrieves the value at key
	Get(ctx context.Context, bucket, key string) (string, error)

	// Set stores value at key, replacing any previous value
	Set(ctx context.Context, bucket, key, value string) error

	// Incr adds delta to the integer at key (missing keys count as 0)
	// and returns the new value
	Incr(ctx context.Context, bucket, key string, delta int64) (string, error)

	// Delete removes key
	Delete(ctx context.Context, bucket, key string) error

	// List returns the bucket's entries selected by q, in q's order
	List(ctx context.Context, bucket string, q ListQuery) ([]Entry, error)

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error

	// Close closes the store
	Close() error
}

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrNotNumeric  = errors.New("value is not an integer")
)

// Entry is a stored key and value.
type Entry struct {
	Key   string
	Value string
}

// ListQuery selects and orders keys for List. Keys are sorted ascending,
// filtered by Prefix, optionally reversed, then Skip and Limit are applied.
type ListQuery struct {
	Prefix  string
	Skip    int
	Limit   int
	Reverse bool
}

// apply selects keys according to the query.
func (q ListQuery) apply(keys []string) []string {
	selected := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, q.Prefix) {
			selected = append(selected, k)
		}
	}

	sort.Strings(selected)
	if q.Reverse {
		for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
			selected[i], selected[j] = selected[j], selected[i]
		}
	}

	if q.Skip > 0 {
		if q.Skip >= len(selected) {
			return []string{}
		}
		selected = selected[q.Skip:]
	}
	if q.Limit > 0 && q.Limit < len(selected) {
		selected = selected[:q.Limit]
	}
	return selected
}

// ParseDelta interprets a PATCH body. A leading sign means increment by the
// signed amount; an unsigned number means overwrite with that number.
//
//	"+3" -> (3, true)   "-2" -> (-2, true)   "5" -> (5, false)
func ParseDelta(body string) (delta int64, increment bool, err error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return 0, false, fmt.Errorf("empty increment")
	}
	increment = body[0] == '+' || body[0] == '-'
	delta, err = strconv.ParseInt(strings.TrimPrefix(body, "+"), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid increment %q: %w", body, err)
	}
	return delta, increment, nil
}

// OpenStore creates the store selected by cfg.Store.
func OpenStore(cfg *Config) (Store, error) {
	switch cfg.Store {
	case StoreMemory, "":
		return NewMemoryStore(), nil
	case StoreRedis:
		return NewRedisStore(&cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
