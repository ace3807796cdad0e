package engine

import (
	"context"
	"math"

	"github.com/hupe1980/recogo/model"
)

// merge runs the greedy merge-and-refit pass, sequentially after the join
// barrier. Clusters whose best fits landed within the planar threshold are
// assumed to be fragments of one object: the later cluster's points are
// appended to the earlier one, the later one is marked absorbed, and the
// combined cluster is refit.
//
// The outer scan skips absorbed and fitless clusters. After a merge the
// inner scan continues past the absorbed cluster with the same target, so
// one target can absorb several fragments before the outer scan advances.
func (e *Engine) merge(ctx context.Context, p *Params, st *state) error {
	count := max(1, p.CandidateCount)

	i := 0
	for i < len(st.clusters) {
		if st.rep[i] != i || len(st.fits[i]) == 0 {
			i++
			continue
		}

		for j := i + 1; j < len(st.clusters); j++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			if st.rep[j] != j || !e.mergeClose(p, st, i, j) {
				continue
			}

			// Absorb j into i. The combined cloud gets fresh backing so
			// caller-owned cluster slices stay untouched.
			st.clusters[i] = mergeClouds(st.clusters[i], st.clusters[j])
			st.fits[j] = nil
			st.rep[j] = i
			st.stats.Merges++

			if p.RebuildIndexOnMerge {
				idx, err := e.builder.Build(st.clusters[i])
				if err != nil {
					if isCallLevel(err) {
						return err
					}

					st.stats.FailedFits++
					st.fits[i] = nil
					e.logger.Debug("index rebuild failed", "cluster", i, "error", err)

					break
				}

				st.indexes[i] = idx
			}

			fits, err := e.fitter.FitBestModels(ctx, st.clusters[i], st.indexes[i], count, p.ConfidenceCutoff)
			st.stats.FitCalls++

			if err != nil {
				if isCallLevel(err) {
					return err
				}

				st.stats.FailedFits++
				fits = nil
				e.logger.Debug("merge refit failed", "cluster", i, "error", err)
			}

			st.fits[i] = fits

			// Nothing left to compare against; stop scanning for this
			// target.
			if len(st.fits[i]) == 0 {
				break
			}
		}

		i++
	}

	return nil
}

// mergeClose reports whether cluster j should merge into cluster i. Both
// clusters' best-fit pose positions are compared on the planar metric;
// orientation and height are ignored on the assumption of upright objects
// sharing a support plane. With the cloud fallback enabled, a fitless
// cluster j merges when its nearest point lies within the threshold of i's
// best-fit position.
func (e *Engine) mergeClose(p *Params, st *state, i, j int) bool {
	best := st.fits[i][0].Pose

	if len(st.fits[j]) > 0 {
		return best.PlanarDistance(st.fits[j][0].Pose) < p.MergeThreshold
	}

	if !p.MergeCloudFallback {
		return false
	}

	return planarCloudDistance(best, st.clusters[j]) < p.MergeThreshold
}

// planarCloudDistance is the planar distance from a pose position to the
// nearest point of a cloud.
func planarCloudDistance(pose model.Pose, cloud model.PointCloud) float64 {
	best := math.Inf(1)

	for _, pt := range cloud {
		dx := pt.X - pose.Position.X
		dy := pt.Y - pose.Position.Y

		if d := dx*dx + dy*dy; d < best {
			best = d
		}
	}

	return math.Sqrt(best)
}

// mergeClouds combines two clouds into freshly allocated backing.
func mergeClouds(a, b model.PointCloud) model.PointCloud {
	merged := make(model.PointCloud, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)

	return merged
}
