package mesh

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare() Mesh {
	return Mesh{
		Vertices: []r3.Vector{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 1, Y: 1, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
		Triangles: [][3]int32{{0, 1, 2}, {0, 2, 3}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mesh    Mesh
		wantErr error
	}{
		{"Valid", unitSquare(), nil},
		{"Empty", Mesh{}, ErrEmptyMesh},
		{"IndexOutOfRange", Mesh{
			Vertices:  []r3.Vector{{X: 1}},
			Triangles: [][3]int32{{0, 0, 1}},
		}, ErrInvalidTriangle},
		{"NegativeIndex", Mesh{
			Vertices:  []r3.Vector{{X: 1}},
			Triangles: [][3]int32{{0, -1, 0}},
		}, ErrInvalidTriangle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSurfaceArea(t *testing.T) {
	assert.InDelta(t, 1.0, unitSquare().SurfaceArea(), 1e-12)
}

func TestSample(t *testing.T) {
	t.Run("PointsLieOnSurface", func(t *testing.T) {
		cloud, err := unitSquare().Sample(256)
		require.NoError(t, err)
		require.Len(t, cloud, 256)

		for _, p := range cloud {
			assert.GreaterOrEqual(t, p.X, 0.0)
			assert.LessOrEqual(t, p.X, 1.0)
			assert.GreaterOrEqual(t, p.Y, 0.0)
			assert.LessOrEqual(t, p.Y, 1.0)
			assert.InDelta(t, 0, p.Z, 1e-12)
		}
	})

	t.Run("DeterministicForSeed", func(t *testing.T) {
		a, err := unitSquare().Sample(64)
		require.NoError(t, err)
		b, err := unitSquare().Sample(64)
		require.NoError(t, err)
		assert.Equal(t, a, b)

		c, err := unitSquare().Sample(64, func(o *SampleOptions) { o.Seed = 99 })
		require.NoError(t, err)
		assert.NotEqual(t, a, c)
	})

	t.Run("NoTrianglesFallsBackToVertices", func(t *testing.T) {
		m := Mesh{Vertices: []r3.Vector{{X: 1}, {X: 2}}}
		cloud, err := m.Sample(100)
		require.NoError(t, err)
		assert.Len(t, cloud, 2)
		assert.Equal(t, r3.Vector{X: 1}, cloud[0])
	})

	t.Run("DegenerateTrianglesFallBackToVertices", func(t *testing.T) {
		m := Mesh{
			Vertices:  []r3.Vector{{X: 1}, {X: 1}, {X: 1}},
			Triangles: [][3]int32{{0, 1, 2}},
		}
		cloud, err := m.Sample(10)
		require.NoError(t, err)
		assert.Len(t, cloud, 3)
	})

	t.Run("EmptyMesh", func(t *testing.T) {
		_, err := Mesh{}.Sample(10)
		assert.ErrorIs(t, err, ErrEmptyMesh)
	})

	t.Run("NonPositiveCountSamplesOne", func(t *testing.T) {
		cloud, err := unitSquare().Sample(0)
		require.NoError(t, err)
		assert.Len(t, cloud, 1)
	})
}
