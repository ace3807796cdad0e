// Package kdtree provides an exact nearest-neighbor index backed by a k-d
// tree. It is the default spatial index for cluster fitting.
package kdtree

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/model"
)

// Compile-time check to ensure Tree satisfies the index interface.
var _ index.Index = (*Tree)(nil)

// Tree is an exact nearest-neighbor index over a point cloud.
type Tree struct {
	tree *kdtree.Tree
	n    int
}

// New builds a Tree over the given points. The points are copied, so later
// growth of the cloud does not affect the index.
func New(points model.PointCloud) (*Tree, error) {
	if len(points) == 0 {
		return &Tree{}, nil
	}
	ps := make(pointSet, len(points))
	copy(ps, points)
	return &Tree{
		tree: kdtree.New(ps, false),
		n:    len(points),
	}, nil
}

// Builder returns an index.Builder producing a Tree per cloud.
func Builder() index.Builder {
	return index.BuilderFunc(func(points model.PointCloud) (index.Index, error) {
		return New(points)
	})
}

// Len returns the number of indexed points.
func (t *Tree) Len() int { return t.n }

// Nearest returns the indexed point closest to q and its Euclidean distance.
func (t *Tree) Nearest(q r3.Vector) (r3.Vector, float64, bool) {
	if t.tree == nil || t.n == 0 {
		return r3.Vector{}, 0, false
	}
	got, d2 := t.tree.Nearest(point(q))
	if got == nil {
		return r3.Vector{}, 0, false
	}
	return r3.Vector(got.(point)), math.Sqrt(d2), true
}

// point adapts r3.Vector to kdtree.Comparable. Distance follows the gonum
// convention of returning the squared Euclidean distance.
type point r3.Vector

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		return p.Z - q.Z
	}
}

func (p point) Dims() int { return 3 }

func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	return r3.Vector(p).Sub(r3.Vector(q)).Norm2()
}

// pointSet adapts a point slice to kdtree.Interface.
type pointSet []r3.Vector

func (s pointSet) Index(i int) kdtree.Comparable        { return point(s[i]) }
func (s pointSet) Len() int                             { return len(s) }
func (s pointSet) Slice(start, end int) kdtree.Interface { return s[start:end] }

func (s pointSet) Pivot(d kdtree.Dim) int {
	return plane{dim: d, pointSet: s}.Pivot()
}

// plane sorts a pointSet along a single dimension.
type plane struct {
	dim kdtree.Dim
	pointSet
}

func (p plane) Less(i, j int) bool {
	switch p.dim {
	case 0:
		return p.pointSet[i].X < p.pointSet[j].X
	case 1:
		return p.pointSet[i].Y < p.pointSet[j].Y
	default:
		return p.pointSet[i].Z < p.pointSet[j].Z
	}
}

func (p plane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.pointSet = p.pointSet[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.pointSet[i], p.pointSet[j] = p.pointSet[j], p.pointSet[i]
}
