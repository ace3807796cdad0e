package recogo

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recogo/fitter"
	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/model"
	"github.com/hupe1980/recogo/registry"
)

// scriptedFitter returns canned candidates keyed by cluster length, which
// uniquely identifies the test clusters and their merged combinations.
func scriptedFitter(byLen map[int][]model.FitCandidate) fitter.Fitter {
	return fitter.Func(func(ctx context.Context, cloud model.PointCloud, _ index.Index, _ int, _ float64) ([]model.FitCandidate, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return byLen[cloud.Len()], nil
	})
}

func cloudN(n int, base float64) model.PointCloud {
	cloud := make(model.PointCloud, n)
	for i := range cloud {
		cloud[i] = r3.Vector{X: base + float64(i), Y: base, Z: base}
	}

	return cloud
}

func fitAt(id model.ObjectID, score, x, y float64) model.FitCandidate {
	return model.FitCandidate{
		ObjectID: id,
		Score:    score,
		Pose:     model.Pose{Position: r3.Vector{X: x, Y: y}},
	}
}

// pairFits scripts two clusters fitting the same model within merge range,
// plus the refit of their combination.
func pairFits() map[int][]model.FitCandidate {
	return map[int][]model.FitCandidate{
		2: {fitAt(5, 0.9, 0, 0)},
		3: {fitAt(5, 0.9, 0.01, 0)},
		5: {fitAt(5, 0.9, 0, 0)},
	}
}

func TestDetect(t *testing.T) {
	clusters := []model.PointCloud{cloudN(2, 0), cloudN(3, 10)}

	t.Run("MergeOn", func(t *testing.T) {
		rec, err := New(registry.New(), WithFitter(scriptedFitter(pairFits())))
		require.NoError(t, err)

		detections, err := rec.Detect(context.Background(), clusters, 0.5, true)
		require.NoError(t, err)
		require.Len(t, detections, 1)

		assert.Equal(t, model.ObjectID(5), detections[0].ObjectID)
		assert.InDelta(t, 0.99, detections[0].Confidence, 1e-12)
		assert.Equal(t, 5, detections[0].Cloud.Len())
	})

	t.Run("MergeOff", func(t *testing.T) {
		rec, err := New(registry.New(), WithFitter(scriptedFitter(pairFits())))
		require.NoError(t, err)

		detections, err := rec.Detect(context.Background(), clusters, 0.5, false)
		require.NoError(t, err)
		require.Len(t, detections, 2)

		for i, d := range detections {
			assert.Equal(t, i, d.ClusterIndex)
		}
	})

	t.Run("TighterThresholdPreventsMerge", func(t *testing.T) {
		rec, err := New(registry.New(),
			WithFitter(scriptedFitter(pairFits())),
			WithMergeThreshold(0.005),
		)
		require.NoError(t, err)

		detections, err := rec.Detect(context.Background(), clusters, 0.5, true)
		require.NoError(t, err)
		assert.Len(t, detections, 2)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		rec, err := New(registry.New(), WithFitter(scriptedFitter(nil)))
		require.NoError(t, err)

		detections, err := rec.Detect(context.Background(), nil, 0.5, true)
		require.NoError(t, err)
		assert.Empty(t, detections)
	})
}

func TestDetectMergeMetricCloud(t *testing.T) {
	fitless := model.PointCloud{
		{X: 0.005, Y: 0, Z: 0},
		{X: 0.006, Y: 0.001, Z: 2},
	}

	byLen := map[int][]model.FitCandidate{
		3: {fitAt(5, 0.9, 0, 0)},
		// Length 2 absent: the fragment fits nothing on its own.
		5: {fitAt(5, 0.9, 0, 0)},
	}

	clusters := []model.PointCloud{cloudN(3, 0), fitless}

	t.Run("PoseMetricIgnoresFitless", func(t *testing.T) {
		rec, err := New(registry.New(), WithFitter(scriptedFitter(byLen)))
		require.NoError(t, err)

		detections, err := rec.Detect(context.Background(), clusters, 0.5, true)
		require.NoError(t, err)
		require.Len(t, detections, 1)
		assert.Equal(t, 3, detections[0].Cloud.Len())
	})

	t.Run("CloudMetricAbsorbsFitless", func(t *testing.T) {
		rec, err := New(registry.New(),
			WithFitter(scriptedFitter(byLen)),
			WithMergeMetric(MergeMetricCloud),
		)
		require.NoError(t, err)

		detections, err := rec.Detect(context.Background(), clusters, 0.5, true)
		require.NoError(t, err)
		require.Len(t, detections, 1)
		assert.Equal(t, 5, detections[0].Cloud.Len())
	})
}

func TestDetectCandidateCount(t *testing.T) {
	var lastCount atomic.Int64

	recording := fitter.Func(func(_ context.Context, cloud model.PointCloud, _ index.Index, maxCandidates int, _ float64) ([]model.FitCandidate, error) {
		lastCount.Store(int64(maxCandidates))
		return []model.FitCandidate{fitAt(1, 0.9, 0, 0)}, nil
	})

	clusters := []model.PointCloud{cloudN(2, 0)}

	t.Run("DefaultIsOne", func(t *testing.T) {
		rec, err := New(registry.New(), WithFitter(recording))
		require.NoError(t, err)

		_, err = rec.Detect(context.Background(), clusters, 0, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), lastCount.Load())
	})

	t.Run("RecognizerDefault", func(t *testing.T) {
		rec, err := New(registry.New(), WithFitter(recording), WithCandidateCount(3))
		require.NoError(t, err)

		_, err = rec.Detect(context.Background(), clusters, 0, false)
		require.NoError(t, err)
		assert.Equal(t, int64(3), lastCount.Load())
	})

	t.Run("PerCallOverride", func(t *testing.T) {
		rec, err := New(registry.New(), WithFitter(recording), WithCandidateCount(3))
		require.NoError(t, err)

		_, err = rec.Detect(context.Background(), clusters, 0, false, func(o *DetectOptions) {
			o.CandidateCount = 5
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5), lastCount.Load())
	})

	t.Run("NegativeRejected", func(t *testing.T) {
		rec, err := New(registry.New(), WithFitter(recording))
		require.NoError(t, err)

		_, err = rec.Detect(context.Background(), clusters, 0, false, func(o *DetectOptions) {
			o.CandidateCount = -1
		})
		require.ErrorIs(t, err, ErrInvalidCandidateCount)
	})
}

func TestDetectCanceled(t *testing.T) {
	rec, err := New(registry.New(), WithFitter(scriptedFitter(pairFits())))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = rec.Detect(ctx, []model.PointCloud{cloudN(2, 0)}, 0.5, false)
	require.ErrorIs(t, err, ErrDetectionAborted)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetectMetrics(t *testing.T) {
	var mc BasicMetricsCollector

	rec, err := New(registry.New(),
		WithFitter(scriptedFitter(pairFits())),
		WithMetricsCollector(&mc),
	)
	require.NoError(t, err)

	_, err = rec.Detect(context.Background(), []model.PointCloud{cloudN(2, 0), cloudN(3, 10)}, 0.5, true)
	require.NoError(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.DetectCount)
	assert.Zero(t, stats.DetectErrors)
	assert.Equal(t, int64(2), stats.ClusterCount)
	assert.Equal(t, int64(1), stats.DetectionCount)
	assert.Equal(t, int64(3), stats.FitCalls)
	assert.Equal(t, int64(1), stats.MergeCount)

	// Validation failures are recorded too.
	_, err = rec.Detect(context.Background(), nil, 0.5, false, func(o *DetectOptions) {
		o.CandidateCount = -1
	})
	require.Error(t, err)
	assert.Equal(t, int64(1), mc.GetStats().DetectErrors)
}

func TestDetectLogging(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	rec, err := New(registry.New(),
		WithFitter(scriptedFitter(pairFits())),
		WithLogger(logger),
	)
	require.NoError(t, err)

	_, err = rec.Detect(context.Background(), []model.PointCloud{cloudN(2, 0)}, 0.5, false)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "fitting completed")
	assert.Contains(t, out, "detection completed")
	assert.Contains(t, out, "call_id=")

	buf.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = rec.Detect(ctx, []model.PointCloud{cloudN(2, 0)}, 0.5, false)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "detection failed")
}
