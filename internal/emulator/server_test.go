package emulator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewServer(DefaultConfig(), NewMemoryStore(), WithLogger(log))
}

func do(t *testing.T, s *Server, method, target, body string, header map[string]string) (int, string) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestServer_SetGet(t *testing.T) {
	s := newTestServer(t)

	status, _ := do(t, s, http.MethodPut, "/b1/greeting", "hello", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := do(t, s, http.MethodGet, "/b1/greeting", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", body)
}

func TestServer_GetMissing(t *testing.T) {
	s := newTestServer(t)

	status, body := do(t, s, http.MethodGet, "/b1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not Found", body)
}

func TestServer_EscapedKey(t *testing.T) {
	s := newTestServer(t)

	status, _ := do(t, s, http.MethodPut, "/b1/a%2Fb%20c", "v", nil)
	require.Equal(t, http.StatusOK, status)

	v, err := s.store.Get(context.Background(), "b1", "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestServer_Incr(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing key starts at zero", "+3", "3"},
		{"positive", "+2", "5"},
		{"negative", "-4", "1"},
		{"unsigned overwrites", "10", "10"},
		{"zero overwrites", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, s, http.MethodPatch, "/b1/n", tt.body, nil)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestServer_IncrErrors(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/b1/word", "abc", nil)

	status, _ := do(t, s, http.MethodPatch, "/b1/word", "+1", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, s, http.MethodPatch, "/b1/n", "one", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_Delete(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/b1/k", "v", nil)

	status, _ := do(t, s, http.MethodDelete, "/b1/k", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, s, http.MethodDelete, "/b1/k", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_List(t *testing.T) {
	s := newTestServer(t)
	for _, k := range []string{"b", "a", "c", "x:1"} {
		do(t, s, http.MethodPut, "/b1/"+url.PathEscape(k), "v-"+k, nil)
	}

	t.Run("keys as json", func(t *testing.T) {
		status, body := do(t, s, http.MethodGet, "/b1/?format=json", "", nil)
		require.Equal(t, http.StatusOK, status)

		var keys []string
		require.NoError(t, json.Unmarshal([]byte(body), &keys))
		assert.Equal(t, []string{"a", "b", "c", "x:1"}, keys)
	})

	t.Run("values as pairs", func(t *testing.T) {
		status, body := do(t, s, http.MethodGet, "/b1/?format=json&values=true&limit=2", "", nil)
		require.Equal(t, http.StatusOK, status)

		var pairs [][2]string
		require.NoError(t, json.Unmarshal([]byte(body), &pairs))
		assert.Equal(t, [][2]string{{"a", "v-a"}, {"b", "v-b"}}, pairs)
	})

	t.Run("reverse skip", func(t *testing.T) {
		_, body := do(t, s, http.MethodGet, "/b1/?format=json&reverse=true&skip=1", "", nil)

		var keys []string
		require.NoError(t, json.Unmarshal([]byte(body), &keys))
		assert.Equal(t, []string{"c", "b", "a"}, keys)
	})

	t.Run("prefix", func(t *testing.T) {
		_, body := do(t, s, http.MethodGet, "/b1/?format=json&prefix=x:", "", nil)
		assert.JSONEq(t, `["x:1"]`, body)
	})

	t.Run("text format", func(t *testing.T) {
		_, body := do(t, s, http.MethodGet, "/b1/", "", nil)
		assert.Equal(t, "a\nb\nc\nx:1\n", body)
	})

	t.Run("empty bucket", func(t *testing.T) {
		_, body := do(t, s, http.MethodGet, "/empty/?format=json", "", nil)
		assert.JSONEq(t, `[]`, body)
	})
}

func TestServer_TokenScopes(t *testing.T) {
	s := newTestServer(t)
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	status, body := do(t, s, http.MethodPost, "/b1/tokens/", "prefix=user%3A&permissions=read%2Clist&ttl=60", form)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		AccessToken string `json:"access_token"`
		Permissions string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "read,list", resp.Permissions)

	auth := map[string]string{"Authorization": "Bearer " + resp.AccessToken}

	do(t, s, http.MethodPut, "/b1/user:1", "alice", nil)

	status, body = do(t, s, http.MethodGet, "/b1/user:1", "", auth)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body)

	status, _ = do(t, s, http.MethodPut, "/b1/user:1", "mallory", auth)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, s, http.MethodGet, "/b1/admin", "", auth)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, s, http.MethodGet, "/b2/user:1", "", auth)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, s, http.MethodGet, "/b1/?format=json&prefix=user:", "", auth)
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, s, http.MethodPost, "/b1/tokens/", "", auth)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestServer_ForbiddenRequestsLeaveStoreUntouched(t *testing.T) {
	s := newTestServer(t)
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	status, body := do(t, s, http.MethodPost, "/b1/tokens/", "prefix=user%3A&permissions=read%2Clist", form)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	auth := map[string]string{"Authorization": "Bearer " + resp.AccessToken}

	do(t, s, http.MethodPut, "/b1/user:1", "alice", nil)
	do(t, s, http.MethodPut, "/b1/admin", "root", nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   string
	}{
		{"write", http.MethodPut, "/b1/user:1", "mallory", ErrForbidden.Error()},
		{"increment", http.MethodPatch, "/b1/user:1", "+1", ErrForbidden.Error()},
		{"delete", http.MethodDelete, "/b1/user:1", "", ErrForbidden.Error()},
		{"read outside prefix", http.MethodGet, "/b1/admin", "", ErrForbidden.Error()},
		{"list outside prefix", http.MethodGet, "/b1/?format=json", "", ErrForbidden.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, s, tt.method, tt.target, tt.body, auth)
			assert.Equal(t, http.StatusForbidden, status)
			assert.Equal(t, tt.want, body)
		})
	}

	// nothing reached the store
	status, body = do(t, s, http.MethodGet, "/b1/user:1", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body)

	status, body = do(t, s, http.MethodGet, "/b1/?format=json", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["admin","user:1"]`, body)
}

func TestServer_TokenBadPermission(t *testing.T) {
	s := newTestServer(t)
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	status, _ := do(t, s, http.MethodPost, "/b1/tokens/", "permissions=admin", form)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	status, body := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, body)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/b1/k", "v", nil)

	status, body := do(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "kvdb_emulator_store_operations_total")
}

func TestServer_StoreFailureIsLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := NewServer(DefaultConfig(), failingStore{NewMemoryStore()}, WithLogger(log))

	status, body := do(t, s, http.MethodGet, "/b1/k", "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", body)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "get", hook.LastEntry().Data["operation"])
}
