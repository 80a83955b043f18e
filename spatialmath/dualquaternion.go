package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// dualQuaternion holds a rigid transform as a unit dual quaternion r + ε(½ t r), where r is
// the rotation and t the translation as a pure quaternion.
type dualQuaternion struct {
	dualquat.Number
}

func newDualQuaternion(p Pose) *dualQuaternion {
	rot := quat.Number(normalize(p.Orientation().Quaternion()))
	pt := p.Point()
	t := quat.Number{Imag: pt.X, Jmag: pt.Y, Kmag: pt.Z}
	return &dualQuaternion{dualquat.Number{
		Real: rot,
		Dual: quat.Scale(0.5, quat.Mul(t, rot)),
	}}
}

// transformation multiplies q by another dual quaternion, which applies by after q.
func (q *dualQuaternion) transformation(by *dualQuaternion) *dualQuaternion {
	return &dualQuaternion{dualquat.Mul(q.Number, by.Number)}
}

// translation recovers t = 2 * dual * conj(real).
func (q *dualQuaternion) translation() r3.Vector {
	t := quat.Scale(2, quat.Mul(q.Dual, quat.Conj(q.Real)))
	return r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
}

func (q *dualQuaternion) pose() Pose {
	return &basicPose{point: q.translation(), q: normalize(q.Real)}
}
