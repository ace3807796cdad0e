package recogo

import (
	"log/slog"

	"github.com/hupe1980/recogo/fitter"
	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/resource"
)

// DefaultMergeThreshold is the planar distance below which two clusters' best
// fits are considered fragments of the same object, in the units of the input
// clouds.
const DefaultMergeThreshold = 0.02

// MergeMetric selects how cluster proximity is judged during the merge pass.
type MergeMetric int

const (
	// MergeMetricPose compares the planar distance between the two clusters'
	// best-fit pose positions. Clusters without a fit never merge.
	MergeMetricPose MergeMetric = iota

	// MergeMetricCloud additionally merges a fitless cluster whose nearest
	// point lies within the threshold of the target's best-fit position.
	// Fragments too small to fit on their own still join their object.
	MergeMetricCloud
)

// String returns a string representation of the MergeMetric.
func (m MergeMetric) String() string {
	switch m {
	case MergeMetricPose:
		return "pose"
	case MergeMetricCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

type options struct {
	fitter              fitter.Fitter
	fitterSet           bool
	builder             index.Builder
	builderSet          bool
	controller          *resource.Controller
	metricsCollector    MetricsCollector
	logger              *Logger
	mergeThreshold      float64
	mergeMetric         MergeMetric
	rebuildIndexOnMerge bool
	candidateCount      int
}

// Option configures Recognizer construction.
type Option func(*options)

// WithFitter replaces the default exhaustive fitter. Passing nil makes New
// fail with ErrNoFitter.
func WithFitter(f fitter.Fitter) Option {
	return func(o *options) {
		o.fitter = f
		o.fitterSet = true
	}
}

// WithIndexBuilder replaces the default k-d tree index builder. Passing nil
// makes New fail with ErrNoIndexBuilder.
func WithIndexBuilder(b index.Builder) Option {
	return func(o *options) {
		o.builder = b
		o.builderSet = true
	}
}

// WithResourceController bounds the per-cluster fit fan-out with the given
// controller. Without one, every cluster is fitted on its own goroutine at
// once.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithMergeThreshold sets the planar merge distance. Zero disables merging
// regardless of the per-call flag, since no two distinct fits are closer than
// nothing.
func WithMergeThreshold(threshold float64) Option {
	return func(o *options) {
		o.mergeThreshold = threshold
	}
}

// WithMergeMetric selects the merge proximity metric.
func WithMergeMetric(m MergeMetric) Option {
	return func(o *options) {
		o.mergeMetric = m
	}
}

// WithRebuildIndexOnMerge rebuilds a cluster's index over the combined points
// before a merge refit. Off by default: the refit reuses the index built over
// the cluster's original points, which is cheaper and usually close enough
// because the absorbed fragments belong to the same object.
func WithRebuildIndexOnMerge(rebuild bool) Option {
	return func(o *options) {
		o.rebuildIndexOnMerge = rebuild
	}
}

// WithCandidateCount sets the default number of ranked candidates requested
// per cluster. Detect calls may override it. Values below one request a
// single candidate.
func WithCandidateCount(n int) Option {
	return func(o *options) {
		o.candidateCount = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// detection calls. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &recogo.BasicMetricsCollector{}
//	rec, _ := recogo.New(reg, recogo.WithMetricsCollector(metrics))
//	// ... run detections ...
//	stats := metrics.GetStats()
//	fmt.Printf("Calls: %d, Avg latency: %dns\n", stats.DetectCount, stats.DetectAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for detection calls.
//
// Example with JSON logging:
//
//	logger := recogo.NewJSONLogger(slog.LevelInfo)
//	rec, _ := recogo.New(reg, recogo.WithLogger(logger))
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
		mergeThreshold:   DefaultMergeThreshold,
		candidateCount:   1,
	}

	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	return o
}
