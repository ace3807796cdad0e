package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/hupe1980/recogo/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Cloud generates n points uniformly distributed in an axis-aligned cube of
// the given edge length centered at the origin.
func (r *RNG) Cloud(n int, extent float64) model.PointCloud {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloud := make(model.PointCloud, n)
	for i := range cloud {
		cloud[i] = r3.Vector{
			X: (r.rand.Float64() - 0.5) * extent,
			Y: (r.rand.Float64() - 0.5) * extent,
			Z: (r.rand.Float64() - 0.5) * extent,
		}
	}

	return cloud
}

// GaussianCloud generates n points normally distributed around the origin
// with the given standard deviation per coordinate.
func (r *RNG) GaussianCloud(n int, sigma float64) model.PointCloud {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloud := make(model.PointCloud, n)
	for i := range cloud {
		cloud[i] = r3.Vector{
			X: r.rand.NormFloat64() * sigma,
			Y: r.rand.NormFloat64() * sigma,
			Z: r.rand.NormFloat64() * sigma,
		}
	}

	return cloud
}

// SphereCloud generates n points uniformly distributed on the surface of a
// sphere with the given radius centered at the origin. Uses the Gaussian
// method for uniform distribution on the sphere.
func (r *RNG) SphereCloud(n int, radius float64) model.PointCloud {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloud := make(model.PointCloud, n)
	for i := range cloud {
		v := r3.Vector{
			X: r.rand.NormFloat64(),
			Y: r.rand.NormFloat64(),
			Z: r.rand.NormFloat64(),
		}

		norm := v.Norm()
		if norm == 0 {
			norm = 1 // Avoid division by zero, though unlikely with floats
		}

		cloud[i] = v.Mul(radius / norm)
	}

	return cloud
}

// BoxCloud generates n points uniformly distributed on the surface of an
// axis-aligned box with the given edge lengths centered at the origin. Faces
// are sampled proportionally to their area, so point density is uniform over
// the whole surface. Useful as a synthetic rigid tabletop object.
func (r *RNG) BoxCloud(n int, dims r3.Vector) model.PointCloud {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Face areas for the x, y, and z face pairs.
	ax := dims.Y * dims.Z
	ay := dims.X * dims.Z
	az := dims.X * dims.Y

	total := 2 * (ax + ay + az)
	if total == 0 {
		total = 1
	}

	hx, hy, hz := dims.X/2, dims.Y/2, dims.Z/2

	cloud := make(model.PointCloud, n)
	for i := range cloud {
		sign := 1.0
		if r.rand.Intn(2) == 0 {
			sign = -1.0
		}

		u := r.rand.Float64() * total / 2

		switch {
		case u < ax:
			cloud[i] = r3.Vector{
				X: sign * hx,
				Y: (r.rand.Float64() - 0.5) * dims.Y,
				Z: (r.rand.Float64() - 0.5) * dims.Z,
			}
		case u < ax+ay:
			cloud[i] = r3.Vector{
				X: (r.rand.Float64() - 0.5) * dims.X,
				Y: sign * hy,
				Z: (r.rand.Float64() - 0.5) * dims.Z,
			}
		default:
			cloud[i] = r3.Vector{
				X: (r.rand.Float64() - 0.5) * dims.X,
				Y: (r.rand.Float64() - 0.5) * dims.Y,
				Z: sign * hz,
			}
		}
	}

	return cloud
}

// CylinderCloud generates n points uniformly distributed on the surface of
// an upright cylinder with the given radius and height centered at the
// origin. The lateral surface and both caps are sampled proportionally to
// their area. Useful as a synthetic can or cup model.
func (r *RNG) CylinderCloud(n int, radius, height float64) model.PointCloud {
	r.mu.Lock()
	defer r.mu.Unlock()

	lateral := 2 * math.Pi * radius * height
	capArea := math.Pi * radius * radius

	total := lateral + 2*capArea
	if total == 0 {
		total = 1
	}

	cloud := make(model.PointCloud, n)
	for i := range cloud {
		u := r.rand.Float64() * total

		if u < lateral {
			theta := r.rand.Float64() * 2 * math.Pi
			cloud[i] = r3.Vector{
				X: radius * math.Cos(theta),
				Y: radius * math.Sin(theta),
				Z: (r.rand.Float64() - 0.5) * height,
			}

			continue
		}

		// Cap: uniform over the disc, top or bottom by remaining area.
		theta := r.rand.Float64() * 2 * math.Pi
		rho := radius * math.Sqrt(r.rand.Float64())

		z := height / 2
		if u >= lateral+capArea {
			z = -z
		}

		cloud[i] = r3.Vector{
			X: rho * math.Cos(theta),
			Y: rho * math.Sin(theta),
			Z: z,
		}
	}

	return cloud
}

// Pose samples a rigid transform with a uniformly random orientation and a
// translation uniform in a cube of the given edge length centered at the
// origin. Orientation uniformity comes from normalizing a 4-D Gaussian
// sample to a unit quaternion.
func (r *RNG) Pose(maxOffset float64) model.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := quat.Number{
		Real: r.rand.NormFloat64(),
		Imag: r.rand.NormFloat64(),
		Jmag: r.rand.NormFloat64(),
		Kmag: r.rand.NormFloat64(),
	}

	norm := quat.Abs(q)
	if norm == 0 {
		q = quat.Number{Real: 1}
		norm = 1
	}

	return model.Pose{
		Position: r3.Vector{
			X: (r.rand.Float64() - 0.5) * maxOffset,
			Y: (r.rand.Float64() - 0.5) * maxOffset,
			Z: (r.rand.Float64() - 0.5) * maxOffset,
		},
		Orientation: quat.Scale(1/norm, q),
	}
}

// UprightPose samples a rigid transform with a random rotation about the z
// axis and a translation uniform in the x/y plane within the given extent.
// This matches how objects sit on a tabletop: upright, at arbitrary yaw.
func (r *RNG) UprightPose(maxOffset float64) model.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()

	half := r.rand.Float64() * math.Pi // half-angle of a full turn

	return model.Pose{
		Position: r3.Vector{
			X: (r.rand.Float64() - 0.5) * maxOffset,
			Y: (r.rand.Float64() - 0.5) * maxOffset,
		},
		Orientation: quat.Number{Real: math.Cos(half), Kmag: math.Sin(half)},
	}
}

// Jitter returns a copy of the cloud with Gaussian noise of the given
// standard deviation added to every coordinate. The input is not modified.
func (r *RNG) Jitter(cloud model.PointCloud, sigma float64) model.PointCloud {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(model.PointCloud, len(cloud))
	for i, p := range cloud {
		out[i] = r3.Vector{
			X: p.X + r.rand.NormFloat64()*sigma,
			Y: p.Y + r.rand.NormFloat64()*sigma,
			Z: p.Z + r.rand.NormFloat64()*sigma,
		}
	}

	return out
}

// TransformCloud applies a pose to every point of the cloud and returns the
// result with fresh backing. The input is not modified.
func TransformCloud(cloud model.PointCloud, pose model.Pose) model.PointCloud {
	out := make(model.PointCloud, len(cloud))
	for i, p := range cloud {
		out[i] = pose.Apply(p)
	}

	return out
}

// NearestDistance performs an exact scan for the distance from q to the
// closest point of the cloud, as ground truth for index implementations.
// It returns +Inf for an empty cloud.
func NearestDistance(cloud model.PointCloud, q r3.Vector) float64 {
	best := math.Inf(1)

	for _, p := range cloud {
		if d := p.Sub(q).Norm(); d < best {
			best = d
		}
	}

	return best
}
