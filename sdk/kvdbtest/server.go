// Package kvdbtest provides an in-process kvdb server for tests. It answers
// the real REST API from memory and records every request it receives, so
// tests can assert on both results and wire shape.
//
//	srv := kvdbtest.NewServer()
//	defer srv.Close()
//
//	bucket, _ := sdk.NewBucket("b1", "t1", sdk.DefaultConfig().WithBaseURL(srv.URL))
package kvdbtest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/birbparty/kvdb/internal/emulator"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

// HandlerFunc overrides the emulated response for matching requests.
// It returns a status code and a plain-text body.
type HandlerFunc func(r *http.Request) (int, string)

// RecordedRequest stores information about a received request
type RecordedRequest struct {
	Method string
	// Path is the decoded path; RawPath keeps the escaping the client sent
	Path    string
	RawPath string
	Query   url.Values
	Headers http.Header
	Body    []byte
	Time    time.Time
}

// Server is a test kvdb server
type Server struct {
	*httptest.Server
	store        *emulator.MemoryStore
	emulated     http.Handler
	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	requestCount atomic.Int32
	requests     []RecordedRequest
}

// NewServer starts a server backed by an empty in-memory store.
func NewServer() *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := emulator.DefaultConfig()
	cfg.MetricsPath = ""

	s := &Server{
		store:    emulator.NewMemoryStore(),
		handlers: make(map[string]HandlerFunc),
	}
	s.emulated = adaptor.FiberApp(emulator.NewServer(cfg, s.store, emulator.WithLogger(log)).App())
	s.Server = httptest.NewServer(http.HandlerFunc(s.handleRequest))
	return s
}

// Handle overrides responses for pattern, "METHOD /path". A pattern ending
// in "/" matches every path below it.
func (s *Server) Handle(pattern string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[pattern] = handler
}

// Fail makes requests matching pattern answer with status and its text.
func (s *Server) Fail(pattern string, status int) {
	s.Handle(pattern, func(*http.Request) (int, string) {
		return status, http.StatusText(status)
	})
}

// Delay makes requests matching pattern wait before being answered by the
// emulated store. The wait ends early when the client goes away.
func (s *Server) Delay(pattern string, d time.Duration) {
	s.Handle(pattern, func(r *http.Request) (int, string) {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
		}
		return 0, ""
	})
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		RawPath: r.URL.EscapedPath(),
		Query:   r.URL.Query(),
		Headers: r.Header.Clone(),
		Body:    body,
		Time:    time.Now(),
	})
	s.mu.Unlock()
	s.requestCount.Add(1)

	if handler := s.match(r.Method + " " + r.URL.Path); handler != nil {
		// status 0 falls through to the emulator
		if status, text := handler(r); status != 0 {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, text)
			return
		}
	}

	s.emulated.ServeHTTP(w, r)
}

func (s *Server) match(pattern string) HandlerFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if h, ok := s.handlers[pattern]; ok {
		return h
	}
	longest := ""
	var handler HandlerFunc
	for p, h := range s.handlers {
		if strings.HasSuffix(p, "/") && strings.HasPrefix(pattern, p) && len(p) > len(longest) {
			longest, handler = p, h
		}
	}
	return handler
}

// Seed stores value directly, without a request being recorded.
func (s *Server) Seed(bucket, key, value string) {
	_ = s.store.Set(context.Background(), bucket, key, value)
}

// Value reads a stored value directly.
func (s *Server) Value(bucket, key string) (string, bool) {
	v, err := s.store.Get(context.Background(), bucket, key)
	return v, err == nil
}

// RequestCount returns the total number of requests received
func (s *Server) RequestCount() int {
	return int(s.requestCount.Load())
}

// Requests returns all recorded requests
func (s *Server) Requests() []RecordedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]RecordedRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

// LastRequest returns the most recent request, or false if none arrived.
func (s *Server) LastRequest() (RecordedRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.requests) == 0 {
		return RecordedRequest{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// Reset clears recorded requests and overrides. Stored data is kept.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestCount.Store(0)
	s.requests = s.requests[:0]
	s.handlers = make(map[string]HandlerFunc)
}
