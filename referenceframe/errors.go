package referenceframe

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCircularReference is returned when a robot description's parent links form a loop.
var ErrCircularReference = errors.New("infinite loop finding path from end effector to world")

// ErrNeedOneEndEffector is returned when a robot description does not end in exactly one frame.
var ErrNeedOneEndEffector = errors.New("need exactly one end effector")

// ErrNoModelInformation is used when there is no model information.
var ErrNoModelInformation = errors.New("no model information")

// UnknownLinkError is returned when a link name is not part of a model's chain.
type UnknownLinkError struct {
	Link  string
	Model string
}

func (e *UnknownLinkError) Error() string {
	return fmt.Sprintf("link %q is not part of model %q", e.Link, e.Model)
}

// NewUnknownLinkError returns an error for a link missing from the named model.
func NewUnknownLinkError(link, model string) error {
	return &UnknownLinkError{Link: link, Model: model}
}

// DimensionMismatchError is returned when the number of inputs does not match a frame's degrees of freedom.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("number of inputs does not match frame DoF, expected %d but got %d", e.Want, e.Got)
}

// NewIncorrectDoFError returns an error indicating that the length of an input slice does not match the DoF of the frame.
func NewIncorrectDoFError(actual, expected int) error {
	return &DimensionMismatchError{Got: actual, Want: expected}
}

// NewReservedWordError is used when a name is used which is reserved.
func NewReservedWordError(configType, reservedWord string) error {
	return errors.Errorf("reserved word: cannot name a %s '%s'", configType, reservedWord)
}

// NewFrameNotInListOfTransformsError returns an error indicating that a frame of the given name
// is missing from the provided list of transforms.
func NewFrameNotInListOfTransformsError(frameName string) error {
	return errors.Errorf("frame named '%s' not in the list of transforms", frameName)
}

// NewManipulatorMissingError returns an error for a manipulator name the robot does not have.
func NewManipulatorMissingError(robot, manip string) error {
	return errors.Errorf("robot %q has no manipulator named %q", robot, manip)
}

// NewUnsupportedJointTypeError is used when a joint type is not supported.
func NewUnsupportedJointTypeError(jointType string) error {
	return errors.Errorf("unsupported joint type detected: %q", jointType)
}
