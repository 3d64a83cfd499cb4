package joingo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    joinCounter   prometheus.Counter
//	    joinHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordJoin(mode string, duration time.Duration, err error) {
//	    p.joinCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordJoin is called after each join execution.
	// mode names the strategy that ran, duration is the total time taken,
	// err is nil if successful.
	RecordJoin(mode string, duration time.Duration, err error)

	// RecordResolve is called after each cross-index resolution.
	RecordResolve(duration time.Duration, err error)

	// RecordWarm is called when an index warm completes. The joiner never
	// warms indexes itself; wire this into a registry warm observer.
	RecordWarm(bytes int64, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordJoin(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordResolve(time.Duration, error)     {}
func (NoopMetricsCollector) RecordWarm(int64, time.Duration)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	JoinCount      atomic.Int64
	JoinErrors     atomic.Int64
	JoinTotalNanos atomic.Int64
	ResolveCount   atomic.Int64
	ResolveErrors  atomic.Int64
	WarmCount      atomic.Int64
	WarmBytes      atomic.Int64
	WarmTotalNanos atomic.Int64
}

// RecordJoin implements MetricsCollector.
func (b *BasicMetricsCollector) RecordJoin(mode string, duration time.Duration, err error) {
	b.JoinCount.Add(1)
	b.JoinTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.JoinErrors.Add(1)
	}
}

// RecordResolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResolve(duration time.Duration, err error) {
	b.ResolveCount.Add(1)
	if err != nil {
		b.ResolveErrors.Add(1)
	}
}

// RecordWarm implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWarm(bytes int64, duration time.Duration) {
	b.WarmCount.Add(1)
	b.WarmBytes.Add(bytes)
	b.WarmTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		JoinCount:     b.JoinCount.Load(),
		JoinErrors:    b.JoinErrors.Load(),
		JoinAvgNanos:  b.getAvgJoinNanos(),
		ResolveCount:  b.ResolveCount.Load(),
		ResolveErrors: b.ResolveErrors.Load(),
		WarmCount:     b.WarmCount.Load(),
		WarmBytes:     b.WarmBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgJoinNanos() int64 {
	count := b.JoinCount.Load()
	if count == 0 {
		return 0
	}
	return b.JoinTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	JoinCount     int64
	JoinErrors    int64
	JoinAvgNanos  int64
	ResolveCount  int64
	ResolveErrors int64
	WarmCount     int64
	WarmBytes     int64
}
