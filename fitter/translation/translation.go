// Package translation implements a single-model fitter that aligns a model
// cloud to a cluster by iterative translation refinement. Orientation is
// never adjusted: the fit assumes upright objects whose models are authored
// in scene orientation, so the recovered pose is a pure offset.
package translation

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/hupe1980/recogo/fitter"
	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/model"
)

// Options configure the iterative refinement.
type Options struct {
	// MaxIterations bounds the refinement loop.
	MaxIterations int

	// ConvergenceThresh stops the loop once the mean correspondence
	// distance improves by less than this between iterations.
	ConvergenceThresh float64

	// MaxCorrespondDist is the farthest a model point may be from its
	// nearest cluster point and still steer the translation update.
	MaxCorrespondDist float64

	// InlierTolerance is the distance within which a model point counts as
	// matched when scoring the final alignment.
	InlierTolerance float64
}

// DefaultOptions are the default fit options. Distances are in the units of
// the input clouds.
var DefaultOptions = Options{
	MaxIterations:     30,
	ConvergenceThresh: 1e-5,
	MaxCorrespondDist: 0.1,
	InlierTolerance:   0.01,
}

// Fit aligns modelCloud to the cluster whose nearest-neighbor structure is
// idx and scores the alignment. The initial estimate aligns the centroids;
// FitFrom fits from a caller-provided estimate instead.
func Fit(ctx context.Context, modelCloud, cluster model.PointCloud, idx index.Index, opts Options) (model.Pose, float64, error) {
	if modelCloud.Len() == 0 || cluster.Len() == 0 || idx == nil || idx.Len() == 0 {
		return model.Pose{}, 0, nil
	}

	return FitFrom(ctx, modelCloud, cluster.Centroid().Sub(modelCloud.Centroid()), idx, opts)
}

// FitFrom refines the given initial offset against the cluster's index.
// Callers holding a precomputed model centroid or a pose prior seed the fit
// directly and skip the centroid scan. Each iteration moves the model by the
// mean offset of its in-range correspondences. The returned pose maps
// model-frame points into the cluster's frame; the score is in [0,1].
func FitFrom(ctx context.Context, modelCloud model.PointCloud, initial r3.Vector, idx index.Index, opts Options) (model.Pose, float64, error) {
	if modelCloud.Len() == 0 || idx == nil || idx.Len() == 0 {
		return model.Pose{}, 0, nil
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions.MaxIterations
	}

	if opts.MaxCorrespondDist <= 0 {
		opts.MaxCorrespondDist = DefaultOptions.MaxCorrespondDist
	}

	if opts.InlierTolerance <= 0 {
		opts.InlierTolerance = DefaultOptions.InlierTolerance
	}

	t := initial

	prevErr := 0.0

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return model.Pose{}, 0, err
		}

		var (
			sum   r3.Vector
			total float64
			count int
		)

		for _, p := range modelCloud {
			q := p.Add(t)

			n, d, ok := idx.Nearest(q)
			if !ok || d > opts.MaxCorrespondDist {
				continue
			}

			sum = sum.Add(n.Sub(q))
			total += d
			count++
		}

		if count == 0 {
			break
		}

		step := sum.Mul(1 / float64(count))
		meanErr := total / float64(count)

		// Diverging; keep the current estimate.
		if iter > 0 && meanErr > prevErr*1.1 {
			break
		}

		t = t.Add(step)

		if iter > 0 && prevErr-meanErr >= 0 && prevErr-meanErr < opts.ConvergenceThresh {
			break
		}

		prevErr = meanErr
	}

	return model.Pose{Position: t}, score(modelCloud, t, idx, opts.InlierTolerance), nil
}

// score rates an alignment by the fraction of model points within tolerance
// of the cluster, attenuated by their mean residual distance.
func score(modelCloud model.PointCloud, t r3.Vector, idx index.Index, tolerance float64) float64 {
	inliers := 0
	total := 0.0

	for _, p := range modelCloud {
		_, d, ok := idx.Nearest(p.Add(t))
		if !ok || d > tolerance {
			continue
		}

		inliers++
		total += d
	}

	if inliers == 0 {
		return 0
	}

	fraction := float64(inliers) / float64(modelCloud.Len())
	avg := total / float64(inliers)

	return fraction / (1 + avg/tolerance)
}

// Fitter fits one model cloud. It implements fitter.Fitter for callers that
// recognize a single known object; multi-model recognition goes through the
// exhaustive fitter.
type Fitter struct {
	id       model.ObjectID
	cloud    model.PointCloud
	centroid r3.Vector
	opts     Options
}

// Compile time check to ensure Fitter satisfies the fitter.Fitter interface.
var _ fitter.Fitter = (*Fitter)(nil)

// New creates a Fitter for the given model cloud. The cloud is copied.
func New(id model.ObjectID, modelCloud model.PointCloud, optFns ...func(o *Options)) *Fitter {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	cloud := modelCloud.Clone()

	return &Fitter{
		id:       id,
		cloud:    cloud,
		centroid: cloud.Centroid(),
		opts:     opts,
	}
}

// FitBestModels implements the fitter.Fitter interface.
func (f *Fitter) FitBestModels(ctx context.Context, cloud model.PointCloud, idx index.Index, maxCandidates int, confidenceCutoff float64) ([]model.FitCandidate, error) {
	if f.cloud.Len() == 0 || cloud.Len() == 0 || idx == nil || idx.Len() == 0 {
		return nil, nil
	}

	pose, s, err := FitFrom(ctx, f.cloud, cloud.Centroid().Sub(f.centroid), idx, f.opts)
	if err != nil {
		return nil, err
	}

	return []model.FitCandidate{{ObjectID: f.id, Score: s, Pose: pose}}, nil
}
