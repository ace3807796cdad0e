package model

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// ObjectID is the stable identifier of a registered rigid model.
type ObjectID uint32

// String returns a string representation of the ObjectID.
func (id ObjectID) String() string {
	return fmt.Sprintf("Object(%d)", uint32(id))
}

// PointCloud is an ordered sequence of 3-D points in a shared reference
// frame. Clouds produced by segmentation represent one surface fragment each;
// clouds attached to detections may be the union of several fragments.
type PointCloud []r3.Vector

// Len returns the number of points in the cloud.
func (c PointCloud) Len() int { return len(c) }

// Clone returns a copy of the cloud with its own backing array.
func (c PointCloud) Clone() PointCloud {
	if c == nil {
		return nil
	}
	out := make(PointCloud, len(c))
	copy(out, c)
	return out
}

// Centroid returns the arithmetic mean of the cloud's points.
// The centroid of an empty cloud is the zero vector.
func (c PointCloud) Centroid() r3.Vector {
	if len(c) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range c {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(c)))
}

// Bounds returns the axis-aligned bounding box of the cloud.
// For an empty cloud both corners are the zero vector.
func (c PointCloud) Bounds() (min, max r3.Vector) {
	if len(c) == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	min, max = c[0], c[0]
	for _, p := range c[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	return min, max
}

// Pose is a rigid-body transform: a rotation followed by a translation.
//
// Orientation is a unit quaternion. The zero value is treated as the identity
// rotation so that Pose{Position: p} behaves as a pure translation.
type Pose struct {
	Position    r3.Vector
	Orientation quat.Number
}

// IdentityPose returns the pose with zero translation and identity rotation.
func IdentityPose() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

// rotation returns the orientation with the zero value normalized to the
// identity quaternion.
func (p Pose) rotation() quat.Number {
	if p.Orientation == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return p.Orientation
}

// Apply transforms a point from model coordinates into the pose's frame:
// the point is rotated by Orientation, then offset by Position.
func (p Pose) Apply(v r3.Vector) r3.Vector {
	q := p.rotation()
	if q == (quat.Number{Real: 1}) {
		return v.Add(p.Position)
	}
	pt := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, pt), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}.Add(p.Position)
}

// PlanarDistance returns the Euclidean distance between two pose positions
// projected onto the x/y plane. Height and orientation are ignored: the
// merge decision assumes upright objects resting on a shared support plane.
func (p Pose) PlanarDistance(o Pose) float64 {
	return math.Hypot(p.Position.X-o.Position.X, p.Position.Y-o.Position.Y)
}

// FitCandidate is one candidate assignment of a registered model's identity
// and pose to a cluster. Score is the raw matching score in [0,1]; higher is
// better. Candidate lists are ordered best-first.
type FitCandidate struct {
	ObjectID ObjectID
	Score    float64
	Pose     Pose
}

// Detection is one accepted recognition result.
type Detection struct {
	// Pose locates the recognized model in the input reference frame.
	Pose Pose

	// Confidence is Confidence(score) of the winning candidate, in [0,1].
	Confidence float64

	// ObjectID identifies the recognized model.
	ObjectID ObjectID

	// Cloud is the cluster the detection was fitted against, including any
	// points absorbed from merged clusters.
	Cloud PointCloud

	// ClusterIndex is the index of the surviving cluster in the input
	// sequence. Detections are emitted in ascending ClusterIndex order.
	ClusterIndex int
}

// Confidence converts a raw matching score into the confidence used for the
// accept/reject decision: 1 - (1-s)^2. Scores are clamped to [0,1] first, so
// the result is always in [0,1] with Confidence(0)=0 and Confidence(1)=1.
func Confidence(score float64) float64 {
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	d := 1 - score
	return 1 - d*d
}
