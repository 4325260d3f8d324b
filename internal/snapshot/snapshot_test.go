package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/birbparty/kvdb/sdk"
	"github.com/birbparty/kvdb/sdk/kvdbtest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

func (s *memObjectStore) Put(_ context.Context, key string, body []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), body...)
	s.meta[key] = metadata
	return nil
}

func (s *memObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (s *memObjectStore) List(_ context.Context, prefix string) ([]Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Object
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

func (s *memObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func newBucket(t *testing.T, srv *kvdbtest.Server, id string) *sdk.Bucket {
	t.Helper()
	bucket, err := sdk.NewBucket(id, "", sdk.DefaultConfig().WithBaseURL(srv.URL))
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	srv := kvdbtest.NewServer()
	defer srv.Close()

	for i := 0; i < 7; i++ {
		srv.Seed("src", fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))
	}
	srv.Seed("src", "json", `{"a":1}`)

	store := newMemObjectStore()
	log, hook := test.NewNullLogger()
	m := NewManager(store, WithPrefix("kvdb/"), WithPageSize(3), WithLogger(log))
	m.now = fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	ctx := context.Background()
	exported, err := m.Export(ctx, newBucket(t, srv, "src"))
	require.NoError(t, err)
	assert.Equal(t, 8, exported.Count)
	assert.True(t, strings.HasPrefix(exported.Key, "kvdb/src/20260102T"))
	assert.True(t, strings.HasSuffix(exported.Key, ".jsonl"))
	assert.Equal(t, "8", store.meta[exported.Key]["entry-count"])
	assert.Equal(t, 8, bytes.Count(store.objects[exported.Key], []byte("\n")))

	imported, err := m.Import(ctx, newBucket(t, srv, "dst"), exported.Key)
	require.NoError(t, err)
	assert.Equal(t, 8, imported.Count)

	for i := 0; i < 7; i++ {
		v, ok := srv.Value("dst", fmt.Sprintf("k%d", i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("v%d", i), v)
	}
	v, ok := srv.Value("dst", "json")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, v)

	require.Len(t, hook.Entries, 2)
	assert.Equal(t, "Bucket exported", hook.Entries[0].Message)
	assert.Equal(t, logrus.Fields{"bucket": "dst", "object": exported.Key, "entries": 8}, hook.Entries[1].Data)
}

func TestExport_EmptyBucket(t *testing.T) {
	srv := kvdbtest.NewServer()
	defer srv.Close()

	store := newMemObjectStore()
	m := NewManager(store, WithLogger(logrus.New()))

	res, err := m.Export(context.Background(), newBucket(t, srv, "empty"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, store.objects[res.Key])
}

func TestExport_ListFailure(t *testing.T) {
	srv := kvdbtest.NewServer()
	defer srv.Close()
	srv.Fail("GET /b1/", http.StatusServiceUnavailable)

	store := newMemObjectStore()
	_, err := NewManager(store).Export(context.Background(), newBucket(t, srv, "b1"))
	require.Error(t, err)

	var httpErr *sdk.HTTPError
	assert.True(t, errors.As(err, &httpErr))
	assert.Empty(t, store.objects)
}

func TestExport_PutFailure(t *testing.T) {
	srv := kvdbtest.NewServer()
	defer srv.Close()
	srv.Seed("b1", "k", "v")

	store := newMemObjectStore()
	store.putErr = errors.New("bucket full")

	_, err := NewManager(store).Export(context.Background(), newBucket(t, srv, "b1"))
	assert.EqualError(t, err, "bucket full")
}

func TestImport_LatestSnapshot(t *testing.T) {
	srv := kvdbtest.NewServer()
	defer srv.Close()

	store := newMemObjectStore()
	store.objects["kvdb/b1/20260101T000000.000Z.jsonl"] = []byte(`{"key":"k","value":"old"}` + "\n")
	store.objects["kvdb/b1/20260102T000000.000Z.jsonl"] = []byte(`{"key":"k","value":"new"}` + "\n\n")
	store.objects["kvdb/b1/notes.txt"] = []byte("ignored")

	m := NewManager(store, WithPrefix("kvdb/"), WithLogger(logrus.New()))
	res, err := m.Import(context.Background(), newBucket(t, srv, "b1"), "")
	require.NoError(t, err)
	assert.Equal(t, "kvdb/b1/20260102T000000.000Z.jsonl", res.Key)
	assert.Equal(t, 1, res.Count)

	v, _ := srv.Value("b1", "k")
	assert.Equal(t, "new", v)
}

func TestImport_NoSnapshot(t *testing.T) {
	srv := kvdbtest.NewServer()
	defer srv.Close()

	_, err := NewManager(newMemObjectStore()).Import(context.Background(), newBucket(t, srv, "b1"), "")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestImport_MalformedLine(t *testing.T) {
	srv := kvdbtest.NewServer()
	defer srv.Close()

	store := newMemObjectStore()
	store.objects["s.jsonl"] = []byte(`{"key":"a","value":"1"}` + "\nnot json\n")

	_, err := NewManager(store).Import(context.Background(), newBucket(t, srv, "b1"), "s.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 0, srv.RequestCount())
}

func TestImport_WriteFailure(t *testing.T) {
	srv := kvdbtest.NewServer()
	defer srv.Close()
	srv.Fail("PUT /b1/bad", http.StatusForbidden)

	store := newMemObjectStore()
	store.objects["s.jsonl"] = []byte(`{"key":"bad","value":"1"}` + "\n")

	_, err := NewManager(store, WithConcurrency(2)).Import(context.Background(), newBucket(t, srv, "b1"), "s.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `set "bad"`)
}

func TestPrune(t *testing.T) {
	store := newMemObjectStore()
	for _, day := range []string{"01", "02", "03", "04"} {
		store.objects["b1/202601"+day+"T000000.000Z.jsonl"] = nil
	}
	store.objects["b2/20260101T000000.000Z.jsonl"] = nil

	m := NewManager(store)
	removed, err := m.Prune(context.Background(), "b1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	left, err := m.Snapshots(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b1/20260104T000000.000Z.jsonl", left[0].Key)

	others, err := m.Snapshots(context.Background(), "b2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{Region: "us-east-1"})
	assert.Error(t, err)

	store, err := NewS3Store(S3Config{
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "us-east-1",
		Bucket:    "backups",
		AccessKey: "key",
		SecretKey: "secret",
		PathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "backups", store.bucket)
}
