package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/birbparty/kvdb/sdk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics builds a meter provider pushing to the OTLP collector on a
// periodic reader and installs it globally. Disabled metrics yield a noop
// provider.
func InitMetrics(ctx context.Context, cfg *Config) (metric.MeterProvider, func(context.Context) error, error) {
	if !cfg.EnableMetrics {
		return metricnoop.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := time.Duration(cfg.MetricsInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)),
		),
	)
	otel.SetMeterProvider(mp)

	return mp, mp.Shutdown, nil
}

// MetricsObserver records bucket requests as OpenTelemetry instruments.
// It plugs into sdk.Config.WithObserver.
type MetricsObserver struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

var _ sdk.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver creates the client instruments on the given provider.
func NewMetricsObserver(mp metric.MeterProvider) (*MetricsObserver, error) {
	meter := mp.Meter("github.com/birbparty/kvdb/sdk")

	requests, err := meter.Int64Counter("kvdb.client.requests",
		metric.WithDescription("Requests sent to the kvdb service"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter("kvdb.client.errors",
		metric.WithDescription("Requests that failed before a response was received"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("kvdb.client.duration",
		metric.WithDescription("Round trip time of kvdb requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsObserver{requests: requests, errors: errs, duration: duration}, nil
}

// OnRequestStart is a no-op; everything is recorded once the outcome is known.
func (m *MetricsObserver) OnRequestStart(op, method, path string) {}

// OnRequestEnd records the request count and latency tagged by operation,
// method and status. Transport failures carry status "error".
func (m *MetricsObserver) OnRequestEnd(op, method, path string, status int, duration time.Duration, err error) {
	ctx := context.Background()

	statusLabel := strconv.Itoa(status)
	if err != nil {
		statusLabel = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("kvdb.operation", op),
		attribute.String("http.method", method),
		attribute.String("http.status", statusLabel),
	)

	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kvdb.operation", op)))
	}
}
