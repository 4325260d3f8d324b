package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/birbparty/kvdb/internal/config"
	"github.com/birbparty/kvdb/internal/snapshot"
	"github.com/birbparty/kvdb/sdk"
	"github.com/birbparty/kvdb/sdk/kvdbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memObjectStore) Put(_ context.Context, key string, body []byte, _ map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
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

func (s *memObjectStore) List(_ context.Context, prefix string) ([]snapshot.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []snapshot.Object
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, snapshot.Object{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (s *memObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type harness struct {
	srv   *kvdbtest.Server
	store *memObjectStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	// keep any real profile out of the way
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, env := range []string{"KVDB_BASE_URL", "KVDB_BUCKET", "KVDB_TOKEN", "KVDB_TIMEOUT"} {
		t.Setenv(env, "")
	}

	srv := kvdbtest.NewServer()
	t.Cleanup(srv.Close)
	return &harness{srv: srv, store: &memObjectStore{objects: map[string][]byte{}}}
}

func (h *harness) run(stdin string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	k := newCLI(&out, &errOut)
	k.openObjectStore = func(config.SnapshotConfig) (snapshot.ObjectStore, error) {
		return h.store, nil
	}

	app := k.app()
	app.Reader = strings.NewReader(stdin)
	argv := append([]string{"kvdb", "--base-url", h.srv.URL, "--bucket", "b1", "--token", "t1"}, args...)
	err := app.Run(argv)
	return out.String(), errOut.String(), err
}

func TestCLI_SetIncrGet(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("", "set", "n", "5")
	require.NoError(t, err)

	out, _, err := h.run("", "incr", "n", "3")
	require.NoError(t, err)
	assert.Equal(t, "8\n", out)

	out, _, err = h.run("", "incr", "n")
	require.NoError(t, err)
	assert.Equal(t, "9\n", out)

	out, _, err = h.run("", "get", "n")
	require.NoError(t, err)
	assert.Equal(t, "9\n", out)

	last, ok := h.srv.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "Bearer t1", last.Headers.Get("Authorization"))
}

func TestCLI_SetFromStdinWithContentType(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(`{"a":1}`, "set", "--content-type", "application/json", "doc", "-")
	require.NoError(t, err)

	v, ok := h.srv.Value("b1", "doc")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, v)

	last, _ := h.srv.LastRequest()
	assert.Equal(t, "application/json", last.Headers.Get("Content-Type"))
}

func TestCLI_GetMissingExitsWithTwo(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("", "get", "missing")
	require.Error(t, err)
	assert.True(t, sdk.IsNotFound(err))
	assert.Equal(t, 2, exitCode(err))
}

func TestCLI_UsageErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		args []string
	}{
		{"get without key", []string{"get"}},
		{"set without value", []string{"set", "k"}},
		{"incr bad delta", []string{"incr", "k", "x"}},
		{"key bad index", []string{"key", "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.run("", tt.args...)
			require.Error(t, err)

			var coder cli.ExitCoder
			require.True(t, errors.As(err, &coder))
			assert.Equal(t, 1, exitCode(err))
		})
	}
	assert.Equal(t, 0, h.srv.RequestCount())
}

func TestCLI_ListAndDelete(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("b1", "a", "1")
	h.srv.Seed("b1", "b", "2")
	h.srv.Seed("b1", "c", "3")

	out, _, err := h.run("", "list")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", out)

	out, _, err = h.run("", "list", "--values", "--reverse", "--limit", "2")
	require.NoError(t, err)
	assert.Equal(t, "c=3\nb=2\n", out)

	_, _, err = h.run("", "delete", "b")
	require.NoError(t, err)
	_, ok := h.srv.Value("b1", "b")
	assert.False(t, ok)
}

func TestCLI_Token(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("", "token", "--prefix", "user:", "-p", "read,list", "--ttl", "1h")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	last, _ := h.srv.LastRequest()
	assert.Equal(t, "/b1/tokens/", last.Path)
	assert.Contains(t, string(last.Body), "permissions=read%2Clist")
	assert.Contains(t, string(last.Body), "ttl=3600")
}

func TestCLI_WebStorageCommands(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("b1", "x", "1")
	h.srv.Seed("b1", "y", "2")

	out, _, err := h.run("", "length")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, _, err = h.run("", "key", "1")
	require.NoError(t, err)
	assert.Equal(t, "y\n", out)

	_, _, err = h.run("", "key", "5")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	_, _, err = h.run("", "clear", "--concurrency", "2")
	require.NoError(t, err)

	out, _, err = h.run("", "length")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestCLI_LengthSuppressesFailure(t *testing.T) {
	h := newHarness(t)
	h.srv.Fail("GET /b1/", http.StatusInternalServerError)

	out, _, err := h.run("", "length")
	require.NoError(t, err)
	assert.Equal(t, "-1\n", out)
}

func TestCLI_ExportImport(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("b1", "k1", "v1")
	h.srv.Seed("b1", "k2", "v2")

	out, _, err := h.run("", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "2 entries")

	out, _, err = h.run("", "snapshots")
	require.NoError(t, err)
	assert.Contains(t, out, "b1/")

	_, _, err = h.run("", "clear")
	require.NoError(t, err)

	out, _, err = h.run("", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "2 entries")

	v, ok := h.srv.Value("b1", "k2")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestCLI_ProfileFile(t *testing.T) {
	h := newHarness(t)
	h.srv.Seed("from-profile", "k", "v")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"base_url: "+h.srv.URL+"\nbucket: from-profile\nlog_level: error\n"), 0o600))

	var out bytes.Buffer
	k := newCLI(&out, io.Discard)
	err := k.app().Run([]string{"kvdb", "--config", path, "get", "k"})
	require.NoError(t, err)
	assert.Equal(t, "v\n", out.String())
}

func TestCLI_NoBucket(t *testing.T) {
	h := newHarness(t)

	var out bytes.Buffer
	k := newCLI(&out, io.Discard)
	err := k.app().Run([]string{"kvdb", "--base-url", h.srv.URL, "get", "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bucket configured")
}
