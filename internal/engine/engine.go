// Package engine implements the detection pipeline: concurrent per-cluster
// fit dispatch, the greedy merge-and-refit pass, and result assembly.
package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/hupe1980/recogo/fitter"
	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/model"
	"github.com/hupe1980/recogo/resource"
)

// Engine runs detection calls against a fixed fitter and index builder.
type Engine struct {
	fitter     fitter.Fitter
	builder    index.Builder
	controller *resource.Controller
	logger     *slog.Logger
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithResourceController sets the resource controller bounding the fit
// fan-out.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) {
		e.controller = rc
	}
}

// New creates an Engine.
func New(f fitter.Fitter, b index.Builder, optFns ...Option) *Engine {
	e := &Engine{
		fitter:  f,
		builder: b,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, fn := range optFns {
		fn(e)
	}

	return e
}

// Params carry one detection call's inputs through the pipeline stages.
type Params struct {
	// Clusters are the segmented input clouds. Never mutated; merged
	// clusters get freshly allocated backing.
	Clusters []model.PointCloud

	// ConfidenceCutoff gates assembled results on transformed confidence.
	ConfidenceCutoff float64

	// PerformMerge enables the merge-and-refit pass.
	PerformMerge bool

	// CandidateCount is the number of candidates requested per cluster; at
	// least one is always requested.
	CandidateCount int

	// MergeThreshold is the planar pose distance below which two clusters'
	// best fits merge.
	MergeThreshold float64

	// MergeCloudFallback additionally merges fitless clusters whose points
	// lie within the threshold of a best-fit position.
	MergeCloudFallback bool

	// RebuildIndexOnMerge rebuilds a cluster's index over the combined
	// points before refitting. Off by default: the refit reuses the index
	// built over the cluster's original points.
	RebuildIndexOnMerge bool
}

// Stats describe the work one detection call performed.
type Stats struct {
	Clusters   int
	FitCalls   int
	FailedFits int
	Merges     int
	Detections int
}

// Result is the outcome of one detection call.
type Result struct {
	Detections []model.Detection
	Stats      Stats
}

// Detect runs the pipeline: parallel fit dispatch, a join barrier, the
// optional sequential merge pass, then assembly in original cluster order.
func (e *Engine) Detect(ctx context.Context, p Params) (*Result, error) {
	st, err := e.dispatch(ctx, &p)
	if err != nil {
		return nil, err
	}

	if p.PerformMerge {
		if err := e.merge(ctx, &p, st); err != nil {
			return nil, err
		}
	}

	detections := assemble(st, p.ConfidenceCutoff)
	st.stats.Detections = len(detections)

	return &Result{
		Detections: detections,
		Stats:      st.stats,
	}, nil
}

// state is the per-call working set shared by the pipeline stages.
//
// rep holds representative indices resolved in exactly one hop: rep[i] == i
// iff cluster i is a surviving, unmerged-away cluster, and rep[j] = i is
// only ever written while rep[i] == i holds. A merge target is itself
// unmerged at merge time, so no chain longer than one hop can form.
type state struct {
	clusters []model.PointCloud
	indexes  []index.Index
	fits     [][]model.FitCandidate
	rep      []int
	stats    Stats
}
