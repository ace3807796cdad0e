// Package grid provides a uniform voxel-hash nearest-neighbor index.
//
// Construction is a single pass over the cloud, which makes it cheaper to
// build than a k-d tree for dense sensor clusters. Queries scan voxel shells
// of increasing radius around the query point, so lookup cost grows with the
// distance to the nearest indexed point.
package grid

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"

	"github.com/hupe1980/recogo/index"
	"github.com/hupe1980/recogo/model"
)

// Compile-time check to ensure Index satisfies the index interface.
var _ index.Index = (*Index)(nil)

// ErrInvalidCellSize is returned when the configured cell size is not positive.
var ErrInvalidCellSize = errors.New("grid: cell size must be positive")

// Options contains configuration options for the grid index.
type Options struct {
	// CellSize is the voxel edge length, in the same units as the points.
	// It should roughly match the expected point spacing; much smaller cells
	// waste memory, much larger cells degrade query time.
	CellSize float64
}

// DefaultOptions contains the default configuration options for the grid index.
var DefaultOptions = Options{
	CellSize: 0.01,
}

type cell struct {
	x, y, z int32
}

// Index is a voxel-hash nearest-neighbor index over a point cloud.
type Index struct {
	cellSize float64
	points   model.PointCloud
	cells    map[cell][]int32
	minCell  cell
	maxCell  cell
}

// New builds a grid index over the given points. The points are copied, so
// later growth of the cloud does not affect the index.
func New(points model.PointCloud, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.CellSize <= 0 {
		return nil, ErrInvalidCellSize
	}

	g := &Index{
		cellSize: opts.CellSize,
		points:   points.Clone(),
		cells:    make(map[cell][]int32, len(points)/4+1),
	}

	for i, p := range g.points {
		c := g.cellOf(p)
		g.cells[c] = append(g.cells[c], int32(i))
		if i == 0 {
			g.minCell, g.maxCell = c, c
			continue
		}
		g.minCell = minCell(g.minCell, c)
		g.maxCell = maxCell(g.maxCell, c)
	}

	return g, nil
}

// Builder returns an index.Builder producing a grid Index per cloud.
func Builder(optFns ...func(o *Options)) index.Builder {
	return index.BuilderFunc(func(points model.PointCloud) (index.Index, error) {
		return New(points, optFns...)
	})
}

// Len returns the number of indexed points.
func (g *Index) Len() int { return len(g.points) }

// Nearest returns the indexed point closest to q and its Euclidean distance.
//
// The search visits voxel shells of increasing Chebyshev radius around q's
// cell. After finishing shell r, any point in an unvisited shell is at least
// r*cellSize away, so the scan stops as soon as the best candidate beats that
// bound.
func (g *Index) Nearest(q r3.Vector) (r3.Vector, float64, bool) {
	if len(g.points) == 0 {
		return r3.Vector{}, 0, false
	}

	qc := g.cellOf(q)

	// Shells closer than the populated bounding box are provably empty.
	start := chebyshevToBox(qc, g.minCell, g.maxCell)
	maxR := start + chebyshevSpan(g.minCell, g.maxCell) + 1

	best := int32(-1)
	bestDist := math.Inf(1)

	for r := start; r <= maxR; r++ {
		g.scanShell(qc, r, q, &best, &bestDist)
		if best >= 0 && bestDist <= float64(r)*g.cellSize {
			break
		}
	}

	if best < 0 {
		// Unreachable for a non-empty index; scan linearly rather than miss.
		for i, p := range g.points {
			if d := p.Sub(q).Norm(); d < bestDist {
				best = int32(i)
				bestDist = d
			}
		}
	}

	return g.points[best], bestDist, true
}

// scanShell examines every cell whose Chebyshev distance from center is
// exactly r and updates the best candidate.
func (g *Index) scanShell(center cell, r int32, q r3.Vector, best *int32, bestDist *float64) {
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				if maxAbs3(dx, dy, dz) != r {
					continue
				}
				c := cell{center.x + dx, center.y + dy, center.z + dz}
				for _, i := range g.cells[c] {
					if d := g.points[i].Sub(q).Norm(); d < *bestDist {
						*best = i
						*bestDist = d
					}
				}
			}
		}
	}
}

func (g *Index) cellOf(p r3.Vector) cell {
	return cell{
		x: int32(math.Floor(p.X / g.cellSize)),
		y: int32(math.Floor(p.Y / g.cellSize)),
		z: int32(math.Floor(p.Z / g.cellSize)),
	}
}

func minCell(a, b cell) cell {
	return cell{min(a.x, b.x), min(a.y, b.y), min(a.z, b.z)}
}

func maxCell(a, b cell) cell {
	return cell{max(a.x, b.x), max(a.y, b.y), max(a.z, b.z)}
}

func maxAbs3(x, y, z int32) int32 {
	ax, ay, az := absI32(x), absI32(y), absI32(z)
	return max(ax, max(ay, az))
}

func absI32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// chebyshevToBox returns the Chebyshev distance in cells from c to the box
// [lo, hi]; zero when c lies inside the box.
func chebyshevToBox(c, lo, hi cell) int32 {
	dx := axisGap(c.x, lo.x, hi.x)
	dy := axisGap(c.y, lo.y, hi.y)
	dz := axisGap(c.z, lo.z, hi.z)
	return max(dx, max(dy, dz))
}

func axisGap(v, lo, hi int32) int32 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}

func chebyshevSpan(lo, hi cell) int32 {
	return max(hi.x-lo.x, max(hi.y-lo.y, hi.z-lo.z))
}
