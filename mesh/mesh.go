// Package mesh provides the triangle-mesh geometry registered models are
// built from, surface sampling into fit clouds, and a PLY codec.
package mesh

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/hupe1980/recogo/model"
)

var (
	// ErrEmptyMesh is returned when a mesh has no vertices.
	ErrEmptyMesh = errors.New("mesh: no vertices")

	// ErrInvalidTriangle is returned when a triangle references a vertex
	// that does not exist.
	ErrInvalidTriangle = errors.New("mesh: triangle references missing vertex")
)

// Mesh is an indexed triangle mesh in model coordinates.
//
// Triangles index into Vertices. A mesh without triangles is treated as a
// plain point cloud by Sample.
type Mesh struct {
	Vertices  []r3.Vector
	Triangles [][3]int32
}

// Validate checks that the mesh is non-empty and all triangle indices are in
// range.
func (m Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return ErrEmptyMesh
	}
	n := int32(len(m.Vertices))
	for _, t := range m.Triangles {
		for _, v := range t {
			if v < 0 || v >= n {
				return ErrInvalidTriangle
			}
		}
	}
	return nil
}

// Centroid returns the arithmetic mean of the mesh vertices.
func (m Mesh) Centroid() r3.Vector {
	return model.PointCloud(m.Vertices).Centroid()
}

// Bounds returns the axis-aligned bounding box of the mesh vertices.
func (m Mesh) Bounds() (min, max r3.Vector) {
	return model.PointCloud(m.Vertices).Bounds()
}

// SurfaceArea returns the total area of all triangles.
func (m Mesh) SurfaceArea() float64 {
	var total float64
	for _, t := range m.Triangles {
		total += triangleArea(m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]])
	}
	return total
}

// SampleOptions contains configuration options for surface sampling.
type SampleOptions struct {
	// Seed initializes the sampling RNG. Sampling is deterministic for a
	// given mesh, count and seed, so repeated registrations of the same mesh
	// produce identical fit clouds.
	Seed int64
}

// DefaultSampleOptions contains the default configuration options for
// surface sampling.
var DefaultSampleOptions = SampleOptions{
	Seed: 1,
}

// Sample draws n points from the mesh surface, area-weighted so that point
// density is uniform across triangles.
//
// A mesh without triangles (or with only degenerate ones) falls back to its
// vertices: the result is a copy of the vertex cloud, ignoring n.
func (m Mesh) Sample(n int, optFns ...func(o *SampleOptions)) (model.PointCloud, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 1
	}

	opts := DefaultSampleOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	// Cumulative area table for weighted triangle selection.
	cum := make([]float64, len(m.Triangles))
	var total float64
	for i, t := range m.Triangles {
		total += triangleArea(m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]])
		cum[i] = total
	}

	if total == 0 {
		return model.PointCloud(m.Vertices).Clone(), nil
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	out := make(model.PointCloud, n)
	for i := range out {
		r := rng.Float64() * total
		ti := sort.SearchFloat64s(cum, r)
		if ti >= len(m.Triangles) {
			ti = len(m.Triangles) - 1
		}
		t := m.Triangles[ti]
		out[i] = samplePointInTriangle(rng, m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]])
	}
	return out, nil
}

func triangleArea(a, b, c r3.Vector) float64 {
	return 0.5 * b.Sub(a).Cross(c.Sub(a)).Norm()
}

// samplePointInTriangle picks a uniform point via the square-root barycentric
// transform.
func samplePointInTriangle(rng *rand.Rand, a, b, c r3.Vector) r3.Vector {
	r1 := math.Sqrt(rng.Float64())
	r2 := rng.Float64()
	p := a.Mul(1 - r1)
	p = p.Add(b.Mul(r1 * (1 - r2)))
	return p.Add(c.Mul(r1 * r2))
}
