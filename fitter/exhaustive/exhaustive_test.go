package exhaustive

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/golang/geo/r3"
	"github.com/hupe1980/recogo/index/kdtree"
	"github.com/hupe1980/recogo/model"
	"github.com/hupe1980/recogo/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridCloud(n int, spacing float64) model.PointCloud {
	cloud := make(model.PointCloud, 0, n*n)
	half := float64(n-1) / 2

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cloud = append(cloud, r3.Vector{
				X: (float64(i) - half) * spacing,
				Y: (float64(j) - half) * spacing,
			})
		}
	}

	return cloud
}

func lineCloud(n int, spacing float64) model.PointCloud {
	cloud := make(model.PointCloud, 0, n)
	half := float64(n-1) / 2

	for i := 0; i < n; i++ {
		cloud = append(cloud, r3.Vector{X: (float64(i) - half) * spacing})
	}

	return cloud
}

func translate(cloud model.PointCloud, offset r3.Vector) model.PointCloud {
	out := make(model.PointCloud, len(cloud))
	for i, p := range cloud {
		out[i] = p.Add(offset)
	}

	return out
}

// twoModelRegistry registers a dense grid as object 1 and a long sparse
// line as object 2.
func twoModelRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.AddObjectCloud(1, gridCloud(5, 0.01)))
	require.NoError(t, reg.AddObjectCloud(2, lineCloud(10, 0.05)))

	return reg
}

func TestFitBestModels(t *testing.T) {
	offset := r3.Vector{X: 0.4, Y: 0.1}
	cluster := translate(gridCloud(5, 0.01), offset)

	idx, err := kdtree.New(cluster)
	require.NoError(t, err)

	t.Run("RanksByScore", func(t *testing.T) {
		f := New(twoModelRegistry(t))

		candidates, err := f.FitBestModels(context.Background(), cluster, idx, 2, 0.0)
		require.NoError(t, err)
		require.Len(t, candidates, 2)

		assert.Equal(t, model.ObjectID(1), candidates[0].ObjectID)
		assert.Equal(t, model.ObjectID(2), candidates[1].ObjectID)
		assert.Greater(t, candidates[0].Score, candidates[1].Score)
		assert.InDelta(t, offset.X, candidates[0].Pose.Position.X, 1e-6)
	})

	t.Run("TruncatesToMaxCandidates", func(t *testing.T) {
		f := New(twoModelRegistry(t))

		candidates, err := f.FitBestModels(context.Background(), cluster, idx, 1, 0.0)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, model.ObjectID(1), candidates[0].ObjectID)
	})

	t.Run("TieBreaksOnLowerID", func(t *testing.T) {
		reg := registry.New()
		require.NoError(t, reg.AddObjectCloud(7, gridCloud(5, 0.01)))
		require.NoError(t, reg.AddObjectCloud(3, gridCloud(5, 0.01)))

		f := New(reg)

		candidates, err := f.FitBestModels(context.Background(), cluster, idx, 2, 0.0)
		require.NoError(t, err)
		require.Len(t, candidates, 2)

		assert.Equal(t, candidates[0].Score, candidates[1].Score)
		assert.Equal(t, model.ObjectID(3), candidates[0].ObjectID)
		assert.Equal(t, model.ObjectID(7), candidates[1].ObjectID)
	})

	t.Run("ModelFilter", func(t *testing.T) {
		filter := roaring.New()
		filter.Add(2)

		f := New(twoModelRegistry(t), func(o *Options) {
			o.ModelFilter = filter
		})

		candidates, err := f.FitBestModels(context.Background(), cluster, idx, 2, 0.0)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, model.ObjectID(2), candidates[0].ObjectID)
	})

	t.Run("PruneBelowCutoff", func(t *testing.T) {
		f := New(twoModelRegistry(t), func(o *Options) {
			o.PruneBelowCutoff = true
		})

		candidates, err := f.FitBestModels(context.Background(), cluster, idx, 2, 0.9)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, model.ObjectID(1), candidates[0].ObjectID)
	})

	t.Run("EmptyCluster", func(t *testing.T) {
		f := New(twoModelRegistry(t))

		empty, err := kdtree.New(nil)
		require.NoError(t, err)

		candidates, err := f.FitBestModels(context.Background(), nil, empty, 1, 0.5)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("EmptyRegistry", func(t *testing.T) {
		f := New(registry.New())

		candidates, err := f.FitBestModels(context.Background(), cluster, idx, 1, 0.5)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("Canceled", func(t *testing.T) {
		f := New(twoModelRegistry(t))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.FitBestModels(ctx, cluster, idx, 1, 0.5)
		require.ErrorIs(t, err, context.Canceled)
	})
}
