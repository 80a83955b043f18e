// Package spatialmath defines the rigid transforms used to place the sandtray, the camera
// and the arm reach relative to one another.
package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a rigid transform in 3D space: a translation in meters followed by a
// rotation. Poses are immutable once constructed.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type basicPose struct {
	point r3.Vector
	q     quaternion
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return &basicPose{q: quaternion{Real: 1}}
}

// NewPoseFromPoint returns a pose with the given translation and no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &basicPose{point: point, q: quaternion{Real: 1}}
}

// NewPose returns a pose with the given translation and orientation. A nil orientation is
// treated as no rotation.
func NewPose(point r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(point)
	}
	return &basicPose{point: point, q: normalize(o.Quaternion())}
}

func (p *basicPose) Point() r3.Vector {
	return p.point
}

func (p *basicPose) Orientation() Orientation {
	q := p.q
	return &q
}

func (p *basicPose) String() string {
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f W:%.4f I:%.4f J:%.4f K:%.4f}",
		p.point.X, p.point.Y, p.point.Z, p.q.Real, p.q.Imag, p.q.Jmag, p.q.Kmag)
}

// Compose chains two poses left to right, so that Compose(A→B, B→C) is A→C.
func Compose(a, b Pose) Pose {
	return newDualQuaternion(a).transformation(newDualQuaternion(b)).pose()
}

// PoseInverse returns the pose that undoes p, such that Compose(p, PoseInverse(p)) is the
// identity.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(quat.Number(normalize(p.Orientation().Quaternion())))
	pt := rotate(inv, p.Point())
	return &basicPose{point: pt.Mul(-1), q: quaternion(inv)}
}

// PoseAlmostEqual reports whether two poses have approximately the same translation and
// orientation.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps is PoseAlmostEqual with an explicit translation tolerance in meters.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon) &&
		OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	d := a.Sub(b)
	return d.X*d.X < epsilon*epsilon && d.Y*d.Y < epsilon*epsilon && d.Z*d.Z < epsilon*epsilon
}

// rotate applies the unit quaternion q to v.
func rotate(q quat.Number, v r3.Vector) r3.Vector {
	r := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}
