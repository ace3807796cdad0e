// Package exhaustive implements the default detection fitter: every
// registered model is aligned to the cluster with the iterative translation
// fit and the resulting candidates are ranked by score.
package exhaustive

import (
	"context"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/recogo/fitter"
	"github.com/hupe1980/recogo/fitter/translation"
	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/model"
	"github.com/hupe1980/recogo/registry"
)

// Options configure the exhaustive fitter.
type Options struct {
	// ModelFilter restricts fitting to the given object IDs. Nil fits every
	// registered model.
	ModelFilter *roaring.Bitmap

	// PruneBelowCutoff drops candidates whose transformed confidence falls
	// below the cutoff passed to FitBestModels. Off by default: gating
	// happens during result assembly, after merging has had the chance to
	// refit low-scoring fragments.
	PruneBelowCutoff bool

	// Translation configures the per-model iterative fit.
	Translation translation.Options
}

// DefaultOptions are the default exhaustive fitter options.
var DefaultOptions = Options{
	Translation: translation.DefaultOptions,
}

// Fitter fits every registered model to a cluster.
type Fitter struct {
	reg  *registry.Registry
	opts Options
}

// Compile time check to ensure Fitter satisfies the fitter.Fitter interface.
var _ fitter.Fitter = (*Fitter)(nil)

// New creates a Fitter reading models from reg.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Fitter {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Fitter{
		reg:  reg,
		opts: opts,
	}
}

// FitBestModels implements the fitter.Fitter interface. Models are fit in
// ascending ID order; candidates are ranked by score, ties broken by lower
// ID.
func (f *Fitter) FitBestModels(ctx context.Context, cloud model.PointCloud, idx index.Index, maxCandidates int, confidenceCutoff float64) ([]model.FitCandidate, error) {
	if cloud.Len() == 0 || idx == nil || idx.Len() == 0 {
		return nil, nil
	}

	if maxCandidates < 1 {
		maxCandidates = 1
	}

	var candidates []model.FitCandidate

	// The cluster centroid seeds every fit; registry objects carry theirs
	// precomputed.
	clusterCentroid := cloud.Centroid()

	for obj := range f.reg.All() {
		if f.opts.ModelFilter != nil && !f.opts.ModelFilter.Contains(uint32(obj.ID)) {
			continue
		}

		pose, score, err := translation.FitFrom(ctx, obj.Cloud, clusterCentroid.Sub(obj.Centroid), idx, f.opts.Translation)
		if err != nil {
			return nil, err
		}

		if f.opts.PruneBelowCutoff && model.Confidence(score) < confidenceCutoff {
			continue
		}

		candidates = append(candidates, model.FitCandidate{
			ObjectID: obj.ID,
			Score:    score,
			Pose:     pose,
		})
	}

	slices.SortFunc(candidates, func(a, b model.FitCandidate) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.ObjectID < b.ObjectID {
			return -1
		}
		if a.ObjectID > b.ObjectID {
			return 1
		}
		return 0
	})

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	return candidates, nil
}
