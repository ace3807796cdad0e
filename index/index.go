// Package index defines the per-cluster nearest-neighbor capability consumed
// by fitters.
//
// An Index is built once over a cluster's points and is read-only afterwards:
// it always reflects the cloud as it was at build time. If a cluster later
// grows (merge appends points from an absorbed cluster), the index does not
// see the new points unless it is rebuilt.
package index

import (
	"github.com/golang/geo/r3"

	"github.com/hupe1980/recogo/model"
)

// Index answers nearest-neighbor queries over one cluster's points.
//
// Implementations must be safe for concurrent readers. They are never
// mutated after Build returns.
type Index interface {
	// Nearest returns the indexed point closest to q and its Euclidean
	// distance. ok is false when the index holds no points.
	Nearest(q r3.Vector) (p r3.Vector, dist float64, ok bool)

	// Len returns the number of indexed points.
	Len() int
}

// Builder constructs an Index from one cluster's points.
//
// Builders must accept empty clouds: the resulting index simply reports no
// neighbors. The input cloud must not be retained by reference; clusters may
// grow after the index is built.
type Builder interface {
	Build(points model.PointCloud) (Index, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(points model.PointCloud) (Index, error)

// Build calls f(points).
func (f BuilderFunc) Build(points model.PointCloud) (Index, error) {
	return f(points)
}
