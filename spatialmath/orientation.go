package spatialmath

import (
	"gonum.org/v1/gonum/num/quat"
)

// Orientation is a rotation of a link frame relative to the world. Every implementation converts to a unit
// quaternion, which is what kinematics and pose residuals work with.
type Orientation interface {
	AxisAngles() *R4AA
	Quaternion() quat.Number
}

// NewZeroOrientation returns the identity rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{1, 0, 0, 0}
}

// OrientationBetween returns the world frame rotation taking o1 onto o2.
func OrientationBetween(o1, o2 Orientation) Orientation {
	q := quaternion(quat.Mul(o2.Quaternion(), quat.Conj(o1.Quaternion())))
	return &q
}
