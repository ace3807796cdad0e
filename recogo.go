package recogo

import (
	"math"

	"github.com/hupe1980/recogo/fitter/exhaustive"
	"github.com/hupe1980/recogo/index/kdtree"
	"github.com/hupe1980/recogo/internal/engine"
	"github.com/hupe1980/recogo/registry"
)

// Recognizer recognizes registered object models in segmented point clouds.
//
// A Recognizer is safe for concurrent Detect calls. The registry it was
// created with must not be mutated while a call is in flight; registering
// models between calls is fine.
type Recognizer struct {
	registry *registry.Registry
	engine   *engine.Engine
	metrics  MetricsCollector
	logger   *Logger

	mergeThreshold      float64
	mergeMetric         MergeMetric
	rebuildIndexOnMerge bool
	candidateCount      int
}

// New creates a Recognizer reading models from reg.
//
// Without options the Recognizer fits every registered model using the
// iterative translation fitter over a k-d tree index.
func New(reg *registry.Registry, optFns ...Option) (*Recognizer, error) {
	if reg == nil {
		return nil, ErrRegistryRequired
	}

	opts := applyOptions(optFns)

	if opts.fitterSet && opts.fitter == nil {
		return nil, ErrNoFitter
	}

	if opts.builderSet && opts.builder == nil {
		return nil, ErrNoIndexBuilder
	}

	if opts.mergeThreshold < 0 || math.IsNaN(opts.mergeThreshold) {
		return nil, &ErrInvalidMergeThreshold{Threshold: opts.mergeThreshold}
	}

	f := opts.fitter
	if f == nil {
		f = exhaustive.New(reg)
	}

	b := opts.builder
	if b == nil {
		b = kdtree.Builder()
	}

	engineOpts := []engine.Option{
		engine.WithLogger(opts.logger.Logger),
	}

	if opts.controller != nil {
		engineOpts = append(engineOpts, engine.WithResourceController(opts.controller))
	}

	return &Recognizer{
		registry:            reg,
		engine:              engine.New(f, b, engineOpts...),
		metrics:             opts.metricsCollector,
		logger:              opts.logger,
		mergeThreshold:      opts.mergeThreshold,
		mergeMetric:         opts.mergeMetric,
		rebuildIndexOnMerge: opts.rebuildIndexOnMerge,
		candidateCount:      opts.candidateCount,
	}, nil
}

// Registry returns the registry this Recognizer reads models from.
func (r *Recognizer) Registry() *registry.Registry {
	return r.registry
}
