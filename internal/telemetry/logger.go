package telemetry

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

var (
	mu     sync.RWMutex
	logger *logrus.Entry
)

// NewLogger builds a logger writing to out with the configured level and
// format. Every entry carries the service fields.
func NewLogger(cfg *Config, out io.Writer) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(out)

	// Set log level
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	// Set formatter
	if cfg.LogFormat == "text" {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "@timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	return l.WithFields(logrus.Fields{
		"service.name":    cfg.ServiceName,
		"service.version": cfg.ServiceVersion,
		"environment":     cfg.Environment,
	})
}

// InitLogger installs the process logger returned by L.
func InitLogger(cfg *Config, out io.Writer) *logrus.Entry {
	entry := NewLogger(cfg, out)

	mu.Lock()
	logger = entry
	mu.Unlock()
	return entry
}

// L returns the process logger, or a standard-logger entry before InitLogger.
func L() *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()

	if logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logger
}

// WithContext adds trace information to the logger
func WithContext(ctx context.Context) *logrus.Entry {
	return ContextEntry(L(), ctx)
}

// ContextEntry binds ctx and its trace ids to entry.
func ContextEntry(entry *logrus.Entry, ctx context.Context) *logrus.Entry {
	return entry.WithContext(ctx).WithFields(traceFields(ctx))
}

func traceFields(ctx context.Context) logrus.Fields {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return logrus.Fields{}
	}
	return logrus.Fields{
		"trace.id": sc.TraceID().String(),
		"span.id":  sc.SpanID().String(),
	}
}
