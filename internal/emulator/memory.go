package emulator

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string]string)}
}

// Get retrieves a value from the store
func (m *MemoryStore) Get(ctx context.Context, bucket, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.buckets[bucket][key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

// Set stores a value
func (m *MemoryStore) Set(ctx context.Context, bucket, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bucket(bucket)[key] = value
	return nil
}

// Incr adds delta to the integer stored at key
func (m *MemoryStore) Incr(ctx context.Context, bucket, key string, delta int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(bucket)
	var current int64
	if v, ok := b[key]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", ErrNotNumeric
		}
		current = n
	}

	next := strconv.FormatInt(current+delta, 10)
	b[key] = next
	return next, nil
}

// Delete removes a value from the store
func (m *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.buckets[bucket]
	if _, ok := b[key]; !ok {
		return ErrKeyNotFound
	}
	delete(b, key)
	return nil
}

// List returns the selected entries of a bucket
func (m *MemoryStore) List(ctx context.Context, bucket string, q ListQuery) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := m.buckets[bucket]
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}

	selected := q.apply(keys)
	entries := make([]Entry, len(selected))
	for i, k := range selected {
		entries[i] = Entry{Key: k, Value: b[k]}
	}
	return entries, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close does nothing
func (m *MemoryStore) Close() error {
	return nil
}

// bucket returns the map for name, creating it. Callers hold the write lock.
func (m *MemoryStore) bucket(name string) map[string]string {
	b, ok := m.buckets[name]
	if !ok {
		b = make(map[string]string)
		m.buckets[name] = b
	}
	return b
}
