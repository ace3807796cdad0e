package engine

import "github.com/hupe1980/recogo/model"

// assemble emits one detection per surviving cluster whose best fit clears
// the confidence cutoff. Results are ordered by original cluster index, not
// by confidence; callers correlate them with their input via ClusterIndex.
func assemble(st *state, cutoff float64) []model.Detection {
	detections := make([]model.Detection, 0, len(st.clusters))

	for i := range st.clusters {
		if st.rep[i] != i || len(st.fits[i]) == 0 {
			continue
		}

		best := st.fits[i][0]

		confidence := model.Confidence(best.Score)
		if confidence < cutoff {
			continue
		}

		detections = append(detections, model.Detection{
			Pose:         best.Pose,
			Confidence:   confidence,
			ObjectID:     best.ObjectID,
			Cloud:        st.clusters[i],
			ClusterIndex: i,
		})
	}

	return detections
}
