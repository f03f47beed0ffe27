// Package referenceframe defines the kinematic description of articulated manipulators: frames, serial
// chains of frames, and the per-link forward kinematics and Jacobians computed from them.
package referenceframe

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	spatial "go.viam.com/trajopt/spatialmath"
	"go.viam.com/trajopt/utils"
)

// OOBErrString is contained in every error about inputs outside joint limits.
const OOBErrString = "input out of bounds"

// World is the name of the root frame every chain hangs from.
const World = "world"

// Limit is the closed range of motion of one joint.
type Limit struct {
	Min float64
	Max float64
}

func (l Limit) contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

func (l Limit) almostEqual(other Limit) bool {
	const epsilon = 1e-5
	return utils.Float64AlmostEqual(l.Min, other.Min, epsilon) && utils.Float64AlmostEqual(l.Max, other.Max, epsilon)
}

// RandomFrameInputs draws uniformly within the limits of each joint of m. Unbounded joints are sampled in
// [-999, 999].
func RandomFrameInputs(m Frame, rSeed *rand.Rand) []Input {
	if rSeed == nil {
		//nolint:gosec
		rSeed = rand.New(rand.NewSource(1))
	}
	limits := m.DoF()
	inputs := make([]Input, 0, len(limits))
	for _, lim := range limits {
		lo, hi := math.Max(lim.Min, -999), math.Min(lim.Max, 999)
		inputs = append(inputs, Input{lo + rSeed.Float64()*(hi-lo)})
	}
	return inputs
}

// Frame is one link of a kinematic chain.
type Frame interface {
	Name() string

	// Transform maps the frame's inputs to its pose relative to the parent frame. Inputs outside the limits
	// still produce a pose, alongside an error containing OOBErrString.
	Transform([]Input) (spatial.Pose, error)

	// DoF returns one limit per input; fixed links return an empty slice.
	DoF() []Limit

	// AlmostEquals compares frames up to floating point noise.
	AlmostEquals(otherFrame Frame) bool
}

// jointFrame is a single degree of freedom frame moving along or about a fixed axis in its own frame.
type jointFrame interface {
	Frame
	axis() r3.Vector
	revolute() bool
}

// staticFrame is a rigid offset from its parent.
type staticFrame struct {
	name      string
	transform spatial.Pose
}

// NewStaticFrame returns a link with a fixed, non-nil pose relative to its parent.
func NewStaticFrame(name string, pose spatial.Pose) (Frame, error) {
	if pose == nil {
		return nil, errors.Errorf("static frame %q needs a pose", name)
	}
	return &staticFrame{name, pose}, nil
}

// NewZeroStaticFrame returns a static link coincident with its parent.
func NewZeroStaticFrame(name string) Frame {
	return &staticFrame{name, spatial.NewZeroPose()}
}

// FrameFromPoint returns a static link translated by point.
func FrameFromPoint(name string, point r3.Vector) (Frame, error) {
	return NewStaticFrame(name, spatial.NewPoseFromPoint(point))
}

func (sf *staticFrame) Name() string {
	return sf.name
}

func (sf *staticFrame) Transform(input []Input) (spatial.Pose, error) {
	if len(input) != 0 {
		return nil, NewIncorrectDoFError(len(input), 0)
	}
	return sf.transform, nil
}

func (sf *staticFrame) DoF() []Limit {
	return []Limit{}
}

func (sf *staticFrame) AlmostEquals(otherFrame Frame) bool {
	other, ok := otherFrame.(*staticFrame)
	return ok && sf.name == other.name && spatial.PoseAlmostEqual(sf.transform, other.transform)
}

// joint is a revolute joint rotating about, or a prismatic joint sliding along, a unit axis.
type joint struct {
	name      string
	unitAxis  r3.Vector
	limit     []Limit
	isRotated bool
}

// NewTranslationalFrame returns a prismatic joint sliding along axis, which need not be normalized.
func NewTranslationalFrame(name string, axis r3.Vector, limit Limit) (Frame, error) {
	if axis.Norm() < 1e-8 {
		return nil, errors.Errorf("prismatic joint %q has a zero axis", name)
	}
	return &joint{name: name, unitAxis: axis.Normalize(), limit: []Limit{limit}}, nil
}

// NewRotationalFrame returns a revolute joint about the axis of the given axis-angle. Theta is ignored.
func NewRotationalFrame(name string, axis spatial.R4AA, limit Limit) (Frame, error) {
	v := r3.Vector{X: axis.RX, Y: axis.RY, Z: axis.RZ}
	if v.Norm() < 1e-8 {
		return nil, errors.Errorf("revolute joint %q has a zero axis", name)
	}
	return &joint{name: name, unitAxis: v.Normalize(), limit: []Limit{limit}, isRotated: true}, nil
}

func (j *joint) Name() string {
	return j.name
}

func (j *joint) Transform(input []Input) (spatial.Pose, error) {
	if len(input) != 1 {
		return nil, NewIncorrectDoFError(len(input), 1)
	}
	v := input[0].Value
	var err error
	if !j.limit[0].contains(v) {
		err = fmt.Errorf("joint %q: %.5f %s %v", j.name, v, OOBErrString, j.limit[0])
	}
	if j.isRotated {
		return spatial.NewPoseFromOrientation(&spatial.R4AA{
			Theta: v, RX: j.unitAxis.X, RY: j.unitAxis.Y, RZ: j.unitAxis.Z,
		}), err
	}
	return spatial.NewPoseFromPoint(j.unitAxis.Mul(v)), err
}

func (j *joint) DoF() []Limit {
	return j.limit
}

func (j *joint) AlmostEquals(otherFrame Frame) bool {
	other, ok := otherFrame.(*joint)
	return ok && j.name == other.name && j.isRotated == other.isRotated &&
		spatial.R3VectorAlmostEqual(j.unitAxis, other.unitAxis, 1e-8) &&
		j.limit[0].almostEqual(other.limit[0])
}

func (j *joint) axis() r3.Vector {
	return j.unitAxis
}

func (j *joint) revolute() bool {
	return j.isRotated
}
