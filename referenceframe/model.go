package referenceframe

import (
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/trajopt/spatialmath"
)

// A Model is a kinematic chain that can report the world pose and Jacobian of any of its links.
type Model interface {
	Frame
	// ForwardKinematics returns the world pose of the named link for the given joint configuration.
	ForwardKinematics(link string, inputs []Input) (spatialmath.Pose, error)
	// Jacobian returns the 6xDoF world-frame Jacobian of the named link. Rows 0-2 are linear velocity
	// and rows 3-5 angular velocity. Columns of joints distal to the link are zero.
	Jacobian(link string, inputs []Input) (*mat.Dense, error)
	LinkNames() []string
	HasLink(name string) bool
}

// SimpleModel is a serial chain of frames ordered from the base outwards. Joints attach the following link to the
// preceding one; the first frame hangs from the world.
//
// A SimpleModel holds no mutable state after construction and is safe for concurrent use.
type SimpleModel struct {
	name string
	// OrdTransforms is the list of transforms ordered from base to end effector
	OrdTransforms []Frame
	limits        []Limit
	linkIndex     map[string]int
}

// NewSimpleModel constructs a new model.
func NewSimpleModel(name string) *SimpleModel {
	return &SimpleModel{name: name, linkIndex: map[string]int{}}
}

// NewSerialModel builds a model from frames listed from base to end effector.
func NewSerialModel(name string, frames []Frame) (*SimpleModel, error) {
	m := NewSimpleModel(name)
	for _, f := range frames {
		if f.Name() == World {
			return nil, NewReservedWordError("frame", World)
		}
	}
	m.setOrdTransforms(frames)
	return m, nil
}

func (m *SimpleModel) setOrdTransforms(frames []Frame) {
	m.OrdTransforms = frames
	m.linkIndex = make(map[string]int, len(frames))
	m.limits = make([]Limit, 0, len(frames))
	for i, f := range frames {
		m.linkIndex[f.Name()] = i
		m.limits = append(m.limits, f.DoF()...)
	}
}

// Name returns the name of this model.
func (m *SimpleModel) Name() string {
	return m.name
}

// DoF returns the joint limits of the chain, one per degree of freedom, from the base outwards.
func (m *SimpleModel) DoF() []Limit {
	return m.limits
}

// LinkNames returns the names of every frame in the chain from the base outwards.
func (m *SimpleModel) LinkNames() []string {
	names := make([]string, 0, len(m.OrdTransforms))
	for _, f := range m.OrdTransforms {
		names = append(names, f.Name())
	}
	return names
}

// HasLink reports whether the chain contains a frame with the given name.
func (m *SimpleModel) HasLink(name string) bool {
	_, ok := m.linkIndex[name]
	return ok
}

// AlmostEquals returns whether the other frame is a model with the same name and approximately equal transforms.
func (m *SimpleModel) AlmostEquals(otherFrame Frame) bool {
	other, ok := otherFrame.(*SimpleModel)
	if !ok || m.name != other.name || len(m.OrdTransforms) != len(other.OrdTransforms) {
		return false
	}
	for i, f := range m.OrdTransforms {
		if !f.AlmostEquals(other.OrdTransforms[i]) {
			return false
		}
	}
	return true
}

// Transform takes a model and a list of joint angles in radians and computes the pose of the end effector.
// Out of bounds inputs are still evaluated; the returned error then lists every violated limit.
func (m *SimpleModel) Transform(inputs []Input) (spatialmath.Pose, error) {
	poses, err := m.linkPoses(inputs)
	if poses == nil {
		return nil, err
	}
	if len(poses) == 0 {
		return spatialmath.NewZeroPose(), err
	}
	return poses[len(poses)-1], err
}

// ForwardKinematics returns the world pose of the named link. Joint limits are not enforced.
func (m *SimpleModel) ForwardKinematics(link string, inputs []Input) (spatialmath.Pose, error) {
	idx, ok := m.linkIndex[link]
	if !ok {
		return nil, NewUnknownLinkError(link, m.name)
	}
	poses, err := m.linkPoses(inputs)
	if poses == nil {
		return nil, err
	}
	return poses[idx], nil
}

// Jacobian returns the world-frame geometric Jacobian of the named link. Joint limits are not enforced.
func (m *SimpleModel) Jacobian(link string, inputs []Input) (*mat.Dense, error) {
	idx, ok := m.linkIndex[link]
	if !ok {
		return nil, NewUnknownLinkError(link, m.name)
	}
	poses, err := m.linkPoses(inputs)
	if poses == nil {
		return nil, err
	}

	if len(m.limits) == 0 {
		// gonum has no zero-width matrices
		return &mat.Dense{}, nil
	}
	jac := mat.NewDense(6, len(m.limits), nil)
	pLink := poses[idx].Point()
	prev := spatialmath.NewZeroPose()
	col := 0
	for i, frame := range m.OrdTransforms {
		dof := len(frame.DoF())
		if i > idx {
			break
		}
		if joint, ok := frame.(jointFrame); ok && dof == 1 {
			axisW := spatialmath.RotateVector(prev.Orientation().Quaternion(), joint.axis())
			if joint.revolute() {
				lin := axisW.Cross(pLink.Sub(prev.Point()))
				jac.Set(0, col, lin.X)
				jac.Set(1, col, lin.Y)
				jac.Set(2, col, lin.Z)
				jac.Set(3, col, axisW.X)
				jac.Set(4, col, axisW.Y)
				jac.Set(5, col, axisW.Z)
			} else {
				jac.Set(0, col, axisW.X)
				jac.Set(1, col, axisW.Y)
				jac.Set(2, col, axisW.Z)
			}
		}
		col += dof
		prev = poses[i]
	}
	return jac, nil
}

// linkPoses returns the world pose of every frame of the chain. A nil slice means the inputs could not be
// evaluated at all; a non-nil slice with an error means some inputs were out of bounds.
func (m *SimpleModel) linkPoses(inputs []Input) ([]spatialmath.Pose, error) {
	if len(inputs) != len(m.limits) {
		return nil, NewIncorrectDoFError(len(inputs), len(m.limits))
	}
	var err error
	poses := make([]spatialmath.Pose, 0, len(m.OrdTransforms))
	composedTransformation := spatialmath.NewZeroPose()
	posIdx := 0
	// get quaternions from the base outwards.
	for _, transform := range m.OrdTransforms {
		dof := len(transform.DoF()) + posIdx
		input := inputs[posIdx:dof]
		posIdx = dof

		pose, errNew := transform.Transform(input)
		// Fail if inputs are incorrect and pose is nil, but allow querying out-of-bounds positions
		if pose == nil {
			return nil, errNew
		}
		multierr.AppendInto(&err, errNew)
		composedTransformation = spatialmath.Compose(composedTransformation, pose)
		poses = append(poses, composedTransformation)
	}
	return poses, err
}
