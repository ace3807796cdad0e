package recogo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/recogo/internal/engine"
	"github.com/hupe1980/recogo/model"
)

// DetectOptions contains per-call options for Detect.
type DetectOptions struct {
	// CandidateCount is the number of ranked candidates requested per
	// cluster. Zero uses the Recognizer default; at least one candidate is
	// always requested.
	CandidateCount int
}

// Detect recognizes registered models in the given clusters.
//
// Every cluster is fitted concurrently; a per-cluster failure only empties
// that cluster's candidates. With performMerge set, clusters whose best fits
// land within the merge threshold are combined and refitted. Results carry
// the winning candidate per surviving cluster whose confidence reaches
// confidenceCutoff, ordered by original cluster index.
//
// The input clusters are never mutated; merged detections reference freshly
// allocated clouds.
func (r *Recognizer) Detect(ctx context.Context, clusters []model.PointCloud, confidenceCutoff float64, performMerge bool, optFns ...func(o *DetectOptions)) ([]model.Detection, error) {
	start := time.Now()
	callID := uuid.NewString()

	opts := DetectOptions{
		CandidateCount: r.candidateCount,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.CandidateCount < 0 {
		err := ErrInvalidCandidateCount
		r.metrics.RecordDetect(len(clusters), 0, time.Since(start), err)
		r.logger.LogDetect(ctx, callID, len(clusters), 0, err)
		return nil, err
	}

	res, err := r.engine.Detect(ctx, engine.Params{
		Clusters:            clusters,
		ConfidenceCutoff:    confidenceCutoff,
		PerformMerge:        performMerge,
		CandidateCount:      opts.CandidateCount,
		MergeThreshold:      r.mergeThreshold,
		MergeCloudFallback:  r.mergeMetric == MergeMetricCloud,
		RebuildIndexOnMerge: r.rebuildIndexOnMerge,
	})
	if err != nil {
		err = translateError(err)
		r.metrics.RecordDetect(len(clusters), 0, time.Since(start), err)
		r.logger.LogDetect(ctx, callID, len(clusters), 0, err)
		return nil, err
	}

	duration := time.Since(start)

	r.metrics.RecordFits(res.Stats.FitCalls, res.Stats.FailedFits)
	r.metrics.RecordMerges(res.Stats.Merges)
	r.metrics.RecordDetect(len(clusters), len(res.Detections), duration, nil)

	r.logger.LogFits(ctx, callID, res.Stats.FitCalls, res.Stats.FailedFits)
	if performMerge {
		r.logger.LogMerge(ctx, callID, res.Stats.Merges)
	}
	r.logger.LogDetect(ctx, callID, len(clusters), len(res.Detections), nil)

	return res.Detections, nil
}
