// Package fitter defines the model-fitting boundary used during detection.
//
// A Fitter aligns registered object models to one cluster's point cloud and
// returns ranked candidates. Implementations must be pure with respect to
// their arguments and the registered model set, and safe for concurrent
// calls across distinct clusters.
package fitter

import (
	"context"

	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/model"
)

// Fitter fits object models to a cluster.
type Fitter interface {
	// FitBestModels returns up to maxCandidates fit candidates for the
	// cluster, best score first. An empty cluster yields an empty list, not
	// an error. The index is the cluster's nearest-neighbor structure; its
	// points may be stale relative to the cloud after a merge.
	//
	// confidenceCutoff is advisory. Implementations may use it to prune
	// hopeless candidates early but are not required to; result gating
	// happens during assembly.
	FitBestModels(ctx context.Context, cloud model.PointCloud, idx index.Index, maxCandidates int, confidenceCutoff float64) ([]model.FitCandidate, error)
}

// Func adapts a function to the Fitter interface.
type Func func(ctx context.Context, cloud model.PointCloud, idx index.Index, maxCandidates int, confidenceCutoff float64) ([]model.FitCandidate, error)

// FitBestModels implements the Fitter interface.
func (f Func) FitBestModels(ctx context.Context, cloud model.PointCloud, idx index.Index, maxCandidates int, confidenceCutoff float64) ([]model.FitCandidate, error) {
	return f(ctx, cloud, idx, maxCandidates, confidenceCutoff)
}
