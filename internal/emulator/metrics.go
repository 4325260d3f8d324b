package emulator

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kvdb_emulator_request_duration_seconds",
		Help:    "Request duration in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"method", "route", "status"})

	// Store metrics
	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvdb_emulator_store_operations_total",
		Help: "Total number of store operations",
	}, []string{"operation", "result"})

	tokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kvdb_emulator_tokens_issued_total",
		Help: "Total number of access tokens issued",
	})

	grantsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kvdb_emulator_grants_expired_total",
		Help: "Total number of expired token grants removed by the sweeper",
	})
)

// MetricsMiddleware tracks request metrics for Prometheus. The route
// pattern is used as label so bucket and key names don't explode cardinality.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		route := c.Route().Path
		requestDuration.WithLabelValues(
			c.Method(),
			route,
			strconv.Itoa(responseStatus(c, err)),
		).Observe(time.Since(start).Seconds())

		return err
	}
}

// responseStatus is the status the client will see. A returned error is
// written by the error handler after the middleware chain unwinds.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// RecordStoreOperation records a store operation metric
func RecordStoreOperation(operation string, err error) {
	result := "success"
	switch {
	case err == nil:
	case err == ErrKeyNotFound:
		result = "miss"
	default:
		result = "error"
	}
	storeOperations.WithLabelValues(operation, result).Inc()
}

// RecordTokenIssued records an issued access token
func RecordTokenIssued() {
	tokensIssued.Inc()
}

// RecordGrantsExpired counts grants dropped by a sweep.
func RecordGrantsExpired(n int) {
	grantsExpired.Add(float64(n))
}
