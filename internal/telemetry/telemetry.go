package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Providers bundles everything Init sets up.
type Providers struct {
	Log            *logrus.Entry
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdown []func(context.Context) error
}

// Init initializes all telemetry components
func Init(ctx context.Context, cfg *Config, logOut io.Writer) (*Providers, error) {
	p := &Providers{Log: InitLogger(cfg, logOut)}

	tp, closeTracing, err := InitTracing(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	p.TracerProvider = tp
	p.shutdown = append(p.shutdown, closeTracing)

	mp, closeMetrics, err := InitMetrics(ctx, cfg)
	if err != nil {
		_ = closeTracing(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	p.MeterProvider = mp
	p.shutdown = append(p.shutdown, closeMetrics)

	p.Log.WithFields(logrus.Fields{
		"tracing": cfg.EnableTracing,
		"metrics": cfg.EnableMetrics,
	}).Debug("Telemetry initialized")

	return p, nil
}

// Shutdown flushes and stops the exporters.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FiberTracingMiddleware starts a server span per request, continuing any
// trace context the client propagated.
func FiberTracingMiddleware(tp trace.TracerProvider) fiber.Handler {
	tracer := tp.Tracer("github.com/birbparty/kvdb/internal/emulator")

	return func(c *fiber.Ctx) error {
		carrier := propagation.HeaderCarrier{}
		c.Request().Header.VisitAll(func(k, v []byte) {
			carrier.Set(string(k), string(v))
		})
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)

		ctx, span := tracer.Start(ctx, c.Method(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := responseStatus(c, err)

		span.SetName(c.Method() + " " + c.Route().Path)
		span.SetAttributes(
			semconv.HTTPMethodKey.String(c.Method()),
			semconv.HTTPTargetKey.String(c.OriginalURL()),
			semconv.HTTPRouteKey.String(c.Route().Path),
			semconv.HTTPStatusCodeKey.Int(status),
		)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}

		return err
	}
}

// FiberLoggingMiddleware returns a Fiber middleware for structured logging.
// Entries carry the trace ids of the request span when there is one.
func FiberLoggingMiddleware(log *logrus.Entry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		status := responseStatus(c, err)

		// Log request
		entry := ContextEntry(log, c.UserContext()).WithFields(logrus.Fields{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   status,
			"duration": time.Since(start).Milliseconds(),
			"ip":       c.IP(),
		})

		switch {
		case status >= fiber.StatusInternalServerError:
			entry.WithError(err).Error("Request failed")
		case status >= fiber.StatusBadRequest:
			entry.Warn("Request completed with error status")
		default:
			entry.Info("Request completed")
		}

		return err
	}
}

// responseStatus is the status the error handler will write for err.
func responseStatus(c *fiber.Ctx, err error) int {
	var fe *fiber.Error
	switch {
	case err == nil:
		return c.Response().StatusCode()
	case errors.As(err, &fe):
		return fe.Code
	default:
		return fiber.StatusInternalServerError
	}
}
