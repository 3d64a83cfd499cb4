package joingo

import (
	"log/slog"

	"github.com/hupe1980/joingo/engine"
	"github.com/hupe1980/joingo/index"
)

type options struct {
	manager          index.Manager
	pointJoin        engine.PointJoinFunc
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Joiner construction.
type Option func(*options)

// WithManager configures the manager used to resolve cross-index
// references. Without one, only same-index joins can run.
func WithManager(m index.Manager) Option {
	return func(o *options) {
		o.manager = m
	}
}

// WithPointJoin configures the fallback that builds destination queries for
// joins onto point fields. Without one, point destinations fail with a
// configuration error.
func WithPointJoin(fn engine.PointJoinFunc) Option {
	return func(o *options) {
		o.pointJoin = fn
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &joingo.BasicMetricsCollector{}
//	j := joingo.NewJoiner(joingo.WithMetricsCollector(metrics))
//	// ... run joins ...
//	stats := metrics.GetStats()
//	fmt.Printf("Joins: %d, Avg latency: %dns\n", stats.JoinCount, stats.JoinAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := joingo.NewJSONLogger(slog.LevelInfo)
//	j := joingo.NewJoiner(joingo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
