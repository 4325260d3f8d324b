// Package snapshot exports a bucket to JSON Lines in object storage and
// imports it back.
package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/birbparty/kvdb/sdk"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoSnapshot is returned when a bucket has no stored snapshot.
var ErrNoSnapshot = errors.New("no snapshot found")

const (
	defaultPageSize    = 500
	defaultConcurrency = 8
	maxLineSize        = 16 << 20
)

// Source is a bucket that can be read in pages.
type Source interface {
	ID() string
	ListValues(ctx context.Context, opts *sdk.ListOptions) ([]sdk.Entry, error)
}

// Sink is a bucket that accepts writes.
type Sink interface {
	ID() string
	Set(ctx context.Context, key, value string, opts *sdk.SetOptions) (string, error)
}

// Result summarizes an export or import.
type Result struct {
	Key   string
	Count int
}

// Manager moves bucket contents to and from an ObjectStore.
type Manager struct {
	store       ObjectStore
	prefix      string
	pageSize    int
	concurrency int
	log         logrus.FieldLogger
	now         func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithPrefix sets the object key prefix, e.g. "kvdb/".
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		m.prefix = prefix
	}
}

// WithPageSize sets how many entries each list request fetches.
func WithPageSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithConcurrency bounds the number of parallel writes during import.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a snapshot manager over store.
func NewManager(store ObjectStore, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		pageSize:    defaultPageSize,
		concurrency: defaultConcurrency,
		log:         logrus.StandardLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) bucketPrefix(bucketID string) string {
	return m.prefix + bucketID + "/"
}

// objectKey sorts lexically in time order.
func (m *Manager) objectKey(bucketID string) string {
	return m.bucketPrefix(bucketID) + m.now().UTC().Format("20060102T150405.000Z") + ".jsonl"
}

// Export pages through src and uploads every entry as one JSON line.
func (m *Manager) Export(ctx context.Context, src Source) (*Result, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	count := 0
	for skip := 0; ; skip += m.pageSize {
		page, err := src.ListValues(ctx, &sdk.ListOptions{Skip: skip, Limit: m.pageSize})
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		for _, e := range page {
			if err := enc.Encode(e); err != nil {
				return nil, fmt.Errorf("encode %q: %w", e.Key, err)
			}
		}
		count += len(page)
		if len(page) < m.pageSize {
			break
		}
	}

	key := m.objectKey(src.ID())
	err := m.store.Put(ctx, key, buf.Bytes(), map[string]string{
		"bucket":      src.ID(),
		"entry-count": strconv.Itoa(count),
		"export-time": m.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"bucket":  src.ID(),
		"object":  key,
		"entries": count,
	}).Info("Bucket exported")

	return &Result{Key: key, Count: count}, nil
}

// Import writes every entry of the snapshot at key into dst. An empty key
// selects the newest snapshot of dst. Writes run in parallel and the first
// failure cancels the rest.
func (m *Manager) Import(ctx context.Context, dst Sink, key string) (*Result, error) {
	if key == "" {
		latest, err := m.Latest(ctx, dst.ID())
		if err != nil {
			return nil, err
		}
		key = latest
	}

	entries, err := m.read(ctx, key)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, e := range entries {
		g.Go(func() error {
			if _, err := dst.Set(gctx, e.Key, e.Value, nil); err != nil {
				return fmt.Errorf("set %q: %w", e.Key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"bucket":  dst.ID(),
		"object":  key,
		"entries": len(entries),
	}).Info("Bucket imported")

	return &Result{Key: key, Count: len(entries)}, nil
}

func (m *Manager) read(ctx context.Context, key string) ([]sdk.Entry, error) {
	body, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var entries []sdk.Entry
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var e sdk.Entry
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", key, line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return entries, nil
}

// Snapshots lists the snapshots of a bucket, oldest first.
func (m *Manager) Snapshots(ctx context.Context, bucketID string) ([]Object, error) {
	objects, err := m.store.List(ctx, m.bucketPrefix(bucketID))
	if err != nil {
		return nil, err
	}

	out := objects[:0]
	for _, o := range objects {
		if strings.HasSuffix(o.Key, ".jsonl") {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Latest returns the key of the newest snapshot of a bucket.
func (m *Manager) Latest(ctx context.Context, bucketID string) (string, error) {
	objects, err := m.Snapshots(ctx, bucketID)
	if err != nil {
		return "", err
	}
	if len(objects) == 0 {
		return "", fmt.Errorf("%w for bucket %q", ErrNoSnapshot, bucketID)
	}
	return objects[len(objects)-1].Key, nil
}

// Prune deletes all but the newest keep snapshots and reports how many
// were removed.
func (m *Manager) Prune(ctx context.Context, bucketID string, keep int) (int, error) {
	objects, err := m.Snapshots(ctx, bucketID)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}

	removed := 0
	for i := 0; i < len(objects)-keep; i++ {
		if err := m.store.Delete(ctx, objects[i].Key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
