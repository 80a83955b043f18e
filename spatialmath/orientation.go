package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

const degToRad = math.Pi / 180

// Orientation is any parameterization of a 3D rotation that can be expressed as a quaternion.
type Orientation interface {
	Quaternion() quat.Number
}

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{Real: 1}
}

// NewQuaternion returns the orientation described by the quaternion w + xi + yj + zk.
// The result is normalized.
func NewQuaternion(w, x, y, z float64) Orientation {
	q := normalize(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z})
	return &q
}

type quaternion quat.Number

func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// R4AA is an axis-angle rotation: Theta radians around the axis (RX, RY, RZ).
type R4AA struct {
	Theta float64
	RX    float64
	RY    float64
	RZ    float64
}

// Quaternion returns the quaternion for this axis angle. A zero axis is no rotation.
func (r4 *R4AA) Quaternion() quat.Number {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(r4.Theta/2) / norm
	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: r4.RX * sinA,
		Jmag: r4.RY * sinA,
		Kmag: r4.RZ * sinA,
	}
}

// EulerAngles are intrinsic x-y-z (roll, pitch, yaw) rotations in radians.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// NewEulerAnglesFromDegrees converts roll, pitch and yaw given in degrees.
func NewEulerAnglesFromDegrees(roll, pitch, yaw float64) *EulerAngles {
	return &EulerAngles{Roll: roll * degToRad, Pitch: pitch * degToRad, Yaw: yaw * degToRad}
}

// Quaternion returns the quaternion for these euler angles.
func (ea *EulerAngles) Quaternion() quat.Number {
	cr, sr := math.Cos(ea.Roll/2), math.Sin(ea.Roll/2)
	cp, sp := math.Cos(ea.Pitch/2), math.Sin(ea.Pitch/2)
	cy, sy := math.Cos(ea.Yaw/2), math.Sin(ea.Yaw/2)
	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// OrientationAlmostEqual will return a bool describing whether 2 poses have approximately the same orientation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// QuaternionAlmostEqual reports whether two quaternions describe the same rotation within tol.
// q and -q are the same rotation.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	a, b = quat.Number(normalize(a)), quat.Number(normalize(b))
	if a.Real*b.Real+a.Imag*b.Imag+a.Jmag*b.Jmag+a.Kmag*b.Kmag < 0 {
		b = quat.Scale(-1, b)
	}
	return math.Abs(a.Real-b.Real) < tol &&
		math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol &&
		math.Abs(a.Kmag-b.Kmag) < tol
}

// normalize scales q to unit length. The zero quaternion becomes the identity.
func normalize(q quat.Number) quaternion {
	n := quat.Abs(q)
	if n == 0 {
		return quaternion{Real: 1}
	}
	return quaternion(quat.Scale(1/n, q))
}
