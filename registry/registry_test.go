package registry

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/hupe1980/recogo/mesh"
	"github.com/hupe1980/recogo/model"
	"github.com/hupe1980/recogo/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMesh() mesh.Mesh {
	return mesh.Mesh{
		Vertices: []r3.Vector{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 1, Y: 1, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
		Triangles: [][3]int32{{0, 1, 2}, {0, 2, 3}},
	}
}

func TestAddObjectCloud(t *testing.T) {
	t.Run("Register", func(t *testing.T) {
		r := New()

		cloud := model.PointCloud{{X: 1, Y: 0, Z: 0}, {X: 3, Y: 0, Z: 0}}
		require.NoError(t, r.AddObjectCloud(7, cloud))

		require.Equal(t, 1, r.Len())
		assert.True(t, r.Contains(7))
		assert.False(t, r.Contains(8))

		obj, ok := r.Get(7)
		require.True(t, ok)
		assert.Equal(t, model.ObjectID(7), obj.ID)
		assert.Equal(t, 2, obj.Cloud.Len())
		assert.InDelta(t, 2.0, obj.Centroid.X, 1e-12)
	})

	t.Run("CopiesCloud", func(t *testing.T) {
		r := New()

		cloud := model.PointCloud{{X: 1, Y: 2, Z: 3}}
		require.NoError(t, r.AddObjectCloud(1, cloud))

		cloud[0].X = 99

		obj, ok := r.Get(1)
		require.True(t, ok)
		assert.Equal(t, 1.0, obj.Cloud[0].X)
	})

	t.Run("EmptyCloud", func(t *testing.T) {
		r := New()

		err := r.AddObjectCloud(1, nil)
		require.ErrorIs(t, err, ErrEmptyCloud)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("SilentOverwrite", func(t *testing.T) {
		r := New()

		require.NoError(t, r.AddObjectCloud(1, model.PointCloud{{X: 1}}))
		require.NoError(t, r.AddObjectCloud(1, model.PointCloud{{X: 2}, {X: 4}}))

		require.Equal(t, 1, r.Len())

		obj, ok := r.Get(1)
		require.True(t, ok)
		assert.Equal(t, 2, obj.Cloud.Len())
	})
}

func TestAddObject(t *testing.T) {
	t.Run("SamplesMesh", func(t *testing.T) {
		r := New(func(o *Options) {
			o.SampleSize = 64
		})

		require.NoError(t, r.AddObject(3, testMesh()))

		obj, ok := r.Get(3)
		require.True(t, ok)
		assert.Equal(t, 64, obj.Cloud.Len())

		for _, p := range obj.Cloud {
			assert.GreaterOrEqual(t, p.X, 0.0)
			assert.LessOrEqual(t, p.X, 1.0)
			assert.InDelta(t, 0.0, p.Z, 1e-12)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := New()
		b := New()

		require.NoError(t, a.AddObject(1, testMesh()))
		require.NoError(t, b.AddObject(1, testMesh()))

		objA, _ := a.Get(1)
		objB, _ := b.Get(1)
		assert.Equal(t, objA.Cloud, objB.Cloud)
	})

	t.Run("InvalidMesh", func(t *testing.T) {
		r := New()

		m := mesh.Mesh{
			Vertices:  []r3.Vector{{X: 0}},
			Triangles: [][3]int32{{0, 1, 2}},
		}

		require.ErrorIs(t, r.AddObject(1, m), mesh.ErrInvalidTriangle)
		assert.Equal(t, 0, r.Len())
	})
}

func TestClearObjects(t *testing.T) {
	r := New()

	require.NoError(t, r.AddObjectCloud(1, model.PointCloud{{X: 1}}))
	require.NoError(t, r.AddObjectCloud(2, model.PointCloud{{X: 2}}))
	require.Equal(t, 2, r.Len())

	r.ClearObjects()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.IDs())
	assert.False(t, r.Contains(1))

	// Reusable after clearing.
	require.NoError(t, r.AddObjectCloud(1, model.PointCloud{{X: 1}}))
	assert.Equal(t, 1, r.Len())
}

func TestRemove(t *testing.T) {
	r := New()

	require.NoError(t, r.AddObjectCloud(1, model.PointCloud{{X: 1}}))

	assert.True(t, r.Remove(1))
	assert.False(t, r.Remove(1))
	assert.Equal(t, 0, r.Len())
}

func TestIDs(t *testing.T) {
	r := New()

	for _, id := range []model.ObjectID{5, 1, 3} {
		require.NoError(t, r.AddObjectCloud(id, model.PointCloud{{X: 1}}))
	}

	assert.Equal(t, []model.ObjectID{1, 3, 5}, r.IDs())

	set := r.IDSet()
	assert.Equal(t, uint64(3), set.GetCardinality())

	// The returned set is a copy.
	set.Add(9)
	assert.False(t, r.Contains(9))
}

func TestAll(t *testing.T) {
	r := New()

	for _, id := range []model.ObjectID{4, 2, 8} {
		require.NoError(t, r.AddObjectCloud(id, model.PointCloud{{X: float64(id)}}))
	}

	var ids []model.ObjectID
	for obj := range r.All() {
		ids = append(ids, obj.ID)
	}

	assert.Equal(t, []model.ObjectID{2, 4, 8}, ids)

	// Early break must not deadlock or leak the read lock.
	for range r.All() {
		break
	}

	assert.Equal(t, 3, r.Len())
}

func TestMemoryBudget(t *testing.T) {
	ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 100})

	r := New(func(o *Options) {
		o.Controller = ctrl
	})

	// 4 points = 96 bytes.
	require.NoError(t, r.AddObjectCloud(1, make(model.PointCloud, 4)))
	assert.Equal(t, int64(96), ctrl.MemoryUsage())

	err := r.AddObjectCloud(2, make(model.PointCloud, 1))
	require.ErrorIs(t, err, ErrMemoryBudget)
	assert.False(t, r.Contains(2))

	// Overwriting adjusts the reservation to the new cloud size.
	require.NoError(t, r.AddObjectCloud(1, make(model.PointCloud, 2)))
	assert.Equal(t, int64(48), ctrl.MemoryUsage())

	r.ClearObjects()
	assert.Equal(t, int64(0), ctrl.MemoryUsage())
}
