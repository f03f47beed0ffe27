// Package spatialmath defines spatial mathematical operations
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof pose in space: a translation and an orientation relative to some parent frame.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewZeroPose returns a pose at (0,0,0) with no rotation.
func NewZeroPose() Pose {
	return &pose{orientation: quat.Number{Real: 1}}
}

// NewPose constructs a pose from a point and an orientation. The orientation is normalized; nil means no rotation.
func NewPose(point r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(point)
	}
	return &pose{point: point, orientation: Normalize(o.Quaternion())}
}

// NewPoseFromPoint constructs a pose with the given translation and no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &pose{point: point, orientation: quat.Number{Real: 1}}
}

// NewPoseFromOrientation constructs a pose with the given orientation and no translation.
func NewPoseFromOrientation(o Orientation) Pose {
	return NewPose(r3.Vector{}, o)
}

// NewPoseFromXYZWXYZ builds a pose from a translation and a w, x, y, z quaternion, the layout used by
// trajectory requests.
func NewPoseFromXYZWXYZ(xyz []float64, wxyz []float64) (Pose, error) {
	if len(xyz) != 3 {
		return nil, errors.Errorf("position needs 3 values, got %d", len(xyz))
	}
	if len(wxyz) != 4 {
		return nil, errors.Errorf("quaternion needs 4 values, got %d", len(wxyz))
	}
	o, err := NewQuaternion(wxyz[0], wxyz[1], wxyz[2], wxyz[3])
	if err != nil {
		return nil, err
	}
	return NewPose(r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}, o), nil
}

// Point returns the translation of the pose.
func (p *pose) Point() r3.Vector {
	return p.point
}

// Orientation returns the rotation of the pose.
func (p *pose) Orientation() Orientation {
	q := quaternion(p.orientation)
	return &q
}

func (p *pose) String() string {
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f W:%.4f I:%.4f J:%.4f K:%.4f}",
		p.point.X, p.point.Y, p.point.Z,
		p.orientation.Real, p.orientation.Imag, p.orientation.Jmag, p.orientation.Kmag)
}

// Compose takes two poses and returns a pose that is the result of applying b in the frame of a.
// For example, if a is the pose of a link in the world and b is the pose of the next link relative to it,
// Compose(a, b) is the pose of the next link in the world.
func Compose(a, b Pose) Pose {
	qa := a.Orientation().Quaternion()
	return &pose{
		point:       a.Point().Add(RotateVector(qa, b.Point())),
		orientation: Normalize(quat.Mul(qa, b.Orientation().Quaternion())),
	}
}

// PoseInverse returns the inverse transform of the given pose.
func PoseInverse(p Pose) Pose {
	qInv := quat.Conj(p.Orientation().Quaternion())
	return &pose{
		point:       RotateVector(qInv, p.Point()).Mul(-1),
		orientation: qInv,
	}
}

// PoseBetween returns the transform that takes a to b, expressed in the frame of a, such that Compose(a, result) == b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseDelta returns the difference between two poses in the world frame: the translation b-a and the world-frame
// rotation taking a's orientation onto b's.
func PoseDelta(a, b Pose) Pose {
	return &pose{
		point:       b.Point().Sub(a.Point()),
		orientation: OrientationBetween(a.Orientation(), b.Orientation()).Quaternion(),
	}
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps will return a bool describing whether 2 poses are approximately the same within eps.
func PoseAlmostEqualEps(a, b Pose, eps float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), eps) &&
		QuaternionAlmostEqual(a.Orientation().Quaternion(), b.Orientation().Quaternion(), eps)
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}
