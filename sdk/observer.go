package sdk

import (
	"sync"
	"time"
)

// Observer provides hooks for monitoring SDK operations.
// Implement this interface to track performance metrics, debug issues,
// or integrate with your observability stack.
//
// Observer methods are called synchronously on the request path and should
// be fast and non-blocking.
//
// Example implementation:
//
//	type LogObserver struct {
//	    logger *log.Logger
//	}
//
//	func (o *LogObserver) OnRequestStart(op, method, path string) {
//	    o.logger.Printf("[START] %s %s %s", op, method, path)
//	}
//
//	func (o *LogObserver) OnRequestEnd(op, method, path string, status int, duration time.Duration, err error) {
//	    o.logger.Printf("[END] %s %s %s -> %d in %v (err=%v)", op, method, path, status, duration, err)
//	}
type Observer interface {
	// OnRequestStart is called before a request is sent.
	//
	// Parameters:
	//   - op: Bucket operation ("get", "set", "incr", "delete", "list", "token")
	//   - method: HTTP method
	//   - path: Request path without query (e.g., "/bucket/key")
	OnRequestStart(op, method, path string)

	// OnRequestEnd is called when a request completes.
	// status is zero when no response was received.
	OnRequestEnd(op, method, path string, status int, duration time.Duration, err error)
}

// NoopObserver is a no-op implementation of Observer that does nothing.
// This is the default observer used when none is configured.
type NoopObserver struct{}

// OnRequestStart does nothing
func (n *NoopObserver) OnRequestStart(op, method, path string) {}

// OnRequestEnd does nothing
func (n *NoopObserver) OnRequestEnd(op, method, path string, status int, duration time.Duration, err error) {
}

// MetricsCollector is a simple in-memory metrics implementation.
// It counts requests, latencies, transport errors and HTTP statuses per
// operation.
//
// Note: This implementation stores all data in memory and is primarily
// intended for debugging and testing.
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	bucket, _ := sdk.NewBucket(id, token, sdk.DefaultConfig().WithObserver(metrics))
//	// Use bucket...
//	snapshot := metrics.GetMetrics()
//	fmt.Printf("Total requests: %v\n", snapshot["requests"])
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount map[string]int64
	latencies    map[string][]time.Duration
	errorCount   map[string]int64
	statusCount  map[int]int64
}

// NewMetricsCollector creates a new metrics collector for tracking SDK operations.
// The collector is thread-safe and can be used concurrently.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount: make(map[string]int64),
		latencies:    make(map[string][]time.Duration),
		errorCount:   make(map[string]int64),
		statusCount:  make(map[int]int64),
	}
}

// OnRequestStart increments request count
func (m *MetricsCollector) OnRequestStart(op, method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[op]++
}

// OnRequestEnd records request duration, status and transport errors
func (m *MetricsCollector) OnRequestEnd(op, method, path string, status int, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[op] = append(m.latencies[op], duration)
	if err != nil {
		m.errorCount[op]++
	}
	if status != 0 {
		m.statusCount[status]++
	}
}

// GetMetrics returns a snapshot of current metrics.
// The returned map is a copy and safe to read without locks.
//
// The metrics include:
//   - "requests": Map of operation to request count
//   - "latencies": Map of operation to latency measurements
//   - "errors": Map of operation to transport error count
//   - "statuses": Map of HTTP status to response count
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requestsCopy := make(map[string]int64)
	for k, v := range m.requestCount {
		requestsCopy[k] = v
	}

	latenciesCopy := make(map[string][]time.Duration)
	for k, v := range m.latencies {
		latenciesCopy[k] = append([]time.Duration(nil), v...)
	}

	errorsCopy := make(map[string]int64)
	for k, v := range m.errorCount {
		errorsCopy[k] = v
	}

	statusCopy := make(map[int]int64)
	for k, v := range m.statusCount {
		statusCopy[k] = v
	}

	return map[string]interface{}{
		"requests":  requestsCopy,
		"latencies": latenciesCopy,
		"errors":    errorsCopy,
		"statuses":  statusCopy,
	}
}

// CompositeObserver allows multiple observers to be combined into one.
// All observer methods are called on each child observer in order.
// If an observer panics, it's caught to prevent affecting other observers.
//
// Example:
//
//	composite := sdk.NewCompositeObserver(sdk.NewMetricsCollector(), otelObserver)
//	config := sdk.DefaultConfig().WithObserver(composite)
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to multiple observers.
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

// OnRequestStart notifies all observers of request start.
func (c *CompositeObserver) OnRequestStart(op, method, path string) {
	for _, obs := range c.observers {
		func() {
			defer func() { _ = recover() }()
			obs.OnRequestStart(op, method, path)
		}()
	}
}

// OnRequestEnd notifies all observers of request completion.
func (c *CompositeObserver) OnRequestEnd(op, method, path string, status int, duration time.Duration, err error) {
	for _, obs := range c.observers {
		func() {
			defer func() { _ = recover() }()
			obs.OnRequestEnd(op, method, path, status, duration, err)
		}()
	}
}
