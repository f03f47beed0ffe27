package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// R4AA is a rotation of Theta radians about the axis (RX, RY, RZ). Joint descriptions use it to name their
// rotation axis; the axis need not be normalized.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA returns the identity rotation about +Z.
func NewR4AA() *R4AA {
	return &R4AA{RZ: 1}
}

// AxisAngles returns r4 itself.
func (r4 *R4AA) AxisAngles() *R4AA {
	return r4
}

// Quaternion returns the unit quaternion of the rotation.
func (r4 *R4AA) Quaternion() quat.Number {
	return r4.ToQuat()
}

// ToR3 returns the rotation vector, the axis scaled by Theta. The axis is used as stored.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}.Mul(r4.Theta)
}

// ToQuat returns the unit quaternion of the rotation without modifying r4.
func (r4 *R4AA) ToQuat() quat.Number {
	unit := *r4
	unit.Normalize()
	s, c := math.Sincos(unit.Theta / 2)
	return quat.Number{Real: c, Imag: s * unit.RX, Jmag: s * unit.RY, Kmag: s * unit.RZ}
}

// Normalize scales the axis to unit length. A zero axis becomes +Z.
func (r4 *R4AA) Normalize() {
	axis := r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
	norm := axis.Norm()
	if norm == 0 {
		r4.RX, r4.RY, r4.RZ = 0, 0, 1
		return
	}
	axis = axis.Mul(1 / norm)
	r4.RX, r4.RY, r4.RZ = axis.X, axis.Y, axis.Z
}

// R3ToR4 splits a rotation vector into angle and unit axis. The zero vector maps to NewR4AA.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	unit := aa.Mul(1 / theta)
	return &R4AA{Theta: theta, RX: unit.X, RY: unit.Y, RZ: unit.Z}
}
