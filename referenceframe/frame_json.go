package referenceframe

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	spatial "go.viam.com/trajopt/spatialmath"
	"go.viam.com/trajopt/utils"
)

// Supported orientation encodings of a link.
const (
	AxisAnglesType = "axis_angles"
	QuaternionType = "quaternion"
)

// Supported joint types.
const (
	RevoluteJoint  = "revolute"
	PrismaticJoint = "prismatic"
)

// OrientationConfig describes an orientation by its encoding type and a type-specific value.
type OrientationConfig struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type quaternionConfig struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ParseConfig converts an OrientationConfig into an Orientation.
func (cfg *OrientationConfig) ParseConfig() (spatial.Orientation, error) {
	switch cfg.Type {
	case AxisAnglesType:
		var aa spatial.R4AA
		if err := json.Unmarshal(cfg.Value, &aa); err != nil {
			return nil, errors.Wrap(err, "bad axis_angles orientation")
		}
		aa.Normalize()
		return &aa, nil
	case QuaternionType:
		var q quaternionConfig
		if err := json.Unmarshal(cfg.Value, &q); err != nil {
			return nil, errors.Wrap(err, "bad quaternion orientation")
		}
		return spatial.NewQuaternion(q.W, q.X, q.Y, q.Z)
	case "":
		return spatial.NewZeroOrientation(), nil
	default:
		return nil, errors.Errorf("orientation type %q not recognized", cfg.Type)
	}
}

// LinkConfig is a static link of a chain with a fixed offset from its parent.
type LinkConfig struct {
	ID          string             `json:"id"`
	Translation r3.Vector          `json:"translation"`
	Orientation *OrientationConfig `json:"orientation,omitempty"`
	Parent      string             `json:"parent"`
}

// ParseConfig converts a LinkConfig into a static frame.
func (cfg *LinkConfig) ParseConfig() (Frame, error) {
	var orient spatial.Orientation
	if cfg.Orientation != nil {
		var err error
		orient, err = cfg.Orientation.ParseConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "link %q", cfg.ID)
		}
	}
	return NewStaticFrame(cfg.ID, spatial.NewPose(cfg.Translation, orient))
}

// JointConfig is a single degree of freedom joint. Revolute limits are given in degrees, prismatic limits in the
// length units of the description.
type JointConfig struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Parent string    `json:"parent"`
	Axis   r3.Vector `json:"axis"`
	Max    float64   `json:"max"` // in length units or degs
	Min    float64   `json:"min"` // in length units or degs
}

// ToFrame converts a JointConfig into a joint frame.
func (cfg *JointConfig) ToFrame() (Frame, error) {
	if cfg.Min > cfg.Max {
		return nil, errors.Errorf("joint %q has min %v greater than max %v", cfg.ID, cfg.Min, cfg.Max)
	}
	switch cfg.Type {
	case RevoluteJoint:
		return NewRotationalFrame(cfg.ID, spatial.R4AA{RX: cfg.Axis.X, RY: cfg.Axis.Y, RZ: cfg.Axis.Z},
			Limit{Min: utils.DegToRad(cfg.Min), Max: utils.DegToRad(cfg.Max)})
	case PrismaticJoint:
		return NewTranslationalFrame(cfg.ID, cfg.Axis, Limit{Min: cfg.Min, Max: cfg.Max})
	default:
		return nil, NewUnsupportedJointTypeError(cfg.Type)
	}
}
