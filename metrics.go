package recogo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    detectCounter   prometheus.Counter
//	    detectHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordDetect(clusters, detections int, duration time.Duration, err error) {
//	    p.detectCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordDetect is called after each detection call. clusters is the
	// input size, detections the accepted result count, duration the total
	// time taken, err is nil if successful.
	RecordDetect(clusters, detections int, duration time.Duration, err error)

	// RecordFits is called after the fit stages of each successful call.
	// calls is the number of fitter invocations including merge refits,
	// failed is how many of them contributed no candidates due to errors.
	RecordFits(calls, failed int)

	// RecordMerges is called after each successful call with the number of
	// clusters absorbed during the merge pass.
	RecordMerges(count int)
}

// Compile time check to ensure NoopMetricsCollector satisfies the MetricsCollector interface.
var _ MetricsCollector = NoopMetricsCollector{}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordDetect(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFits(int, int)                         {}
func (NoopMetricsCollector) RecordMerges(int)                            {}

// Compile time check to ensure BasicMetricsCollector satisfies the MetricsCollector interface.
var _ MetricsCollector = (*BasicMetricsCollector)(nil)

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	DetectCount      atomic.Int64
	DetectErrors     atomic.Int64
	DetectTotalNanos atomic.Int64
	ClusterCount     atomic.Int64
	DetectionCount   atomic.Int64
	FitCalls         atomic.Int64
	FailedFits       atomic.Int64
	MergeCount       atomic.Int64
}

// RecordDetect implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDetect(clusters, detections int, duration time.Duration, err error) {
	b.DetectCount.Add(1)
	b.DetectTotalNanos.Add(duration.Nanoseconds())
	b.ClusterCount.Add(int64(clusters))
	b.DetectionCount.Add(int64(detections))
	if err != nil {
		b.DetectErrors.Add(1)
	}
}

// RecordFits implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFits(calls, failed int) {
	b.FitCalls.Add(int64(calls))
	b.FailedFits.Add(int64(failed))
}

// RecordMerges implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerges(count int) {
	b.MergeCount.Add(int64(count))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		DetectCount:    b.DetectCount.Load(),
		DetectErrors:   b.DetectErrors.Load(),
		DetectAvgNanos: b.getAvgDetectNanos(),
		ClusterCount:   b.ClusterCount.Load(),
		DetectionCount: b.DetectionCount.Load(),
		FitCalls:       b.FitCalls.Load(),
		FailedFits:     b.FailedFits.Load(),
		MergeCount:     b.MergeCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgDetectNanos() int64 {
	count := b.DetectCount.Load()
	if count == 0 {
		return 0
	}
	return b.DetectTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	DetectCount    int64
	DetectErrors   int64
	DetectAvgNanos int64
	ClusterCount   int64
	DetectionCount int64
	FitCalls       int64
	FailedFits     int64
	MergeCount     int64
}
