package trajopt

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// CostType names a kind of cost in a request.
type CostType string

// Supported costs.
const (
	CostJointVelocity CostType = "joint_vel"
	CostJointPosition CostType = "joint_pos"
	CostPose          CostType = "pose"
)

// ConstraintType names a kind of constraint in a request.
type ConstraintType string

// Supported constraints.
const (
	ConstraintPose              ConstraintType = "pose"
	ConstraintJoint             ConstraintType = "joint"
	ConstraintCartesianVelocity ConstraintType = "cart_vel"
)

// InitType names an initialization policy.
type InitType string

// Initialization policies.
const (
	InitStationary   InitType = "stationary"
	InitStraightLine InitType = "straight_line"
	InitGivenTraj    InitType = "given_traj"
)

// Request is a declarative trajectory optimization request.
type Request struct {
	BasicInfo   *BasicInfo             `json:"basic_info"`
	Costs       []CostInfo             `json:"costs,omitempty"`
	Constraints []ConstraintInfo       `json:"constraints,omitempty"`
	InitInfo    *InitInfo              `json:"init_info"`
	Solver      map[string]interface{} `json:"solver,omitempty"`
}

// BasicInfo describes the decision variables.
type BasicInfo struct {
	NSteps *int   `json:"n_steps" jsonschema:"minimum=1"`
	Manip  string `json:"manip"`
	// StartFixed pins waypoint 0 to the start configuration. Defaults to true.
	StartFixed *bool `json:"start_fixed,omitempty"`
	// DofsFixed lists joints that must keep their starting value along the whole trajectory.
	DofsFixed []int `json:"dofs_fixed,omitempty"`
	// Start is the current joint configuration of the manipulator. Defaults to all zeros.
	Start []float64 `json:"start,omitempty"`
}

// CostInfo is one cost of a request. Params are decoded according to Type.
type CostInfo struct {
	Type   CostType               `json:"type" jsonschema:"enum=joint_vel,enum=joint_pos,enum=pose"`
	Name   string                 `json:"name,omitempty"`
	Params map[string]interface{} `json:"params"`
}

// ConstraintInfo is one constraint of a request. Params are decoded according to Type.
type ConstraintInfo struct {
	Type   ConstraintType         `json:"type" jsonschema:"enum=pose,enum=joint,enum=cart_vel"`
	Name   string                 `json:"name,omitempty"`
	Params map[string]interface{} `json:"params"`
}

// InitInfo selects the initial trajectory.
type InitInfo struct {
	Type InitType `json:"type" jsonschema:"enum=stationary,enum=straight_line,enum=given_traj"`
	// Endpoint is the final configuration for straight_line.
	Endpoint []float64 `json:"endpoint,omitempty"`
	// Data holds one configuration per waypoint for given_traj.
	Data [][]float64 `json:"data,omitempty"`
}

// PoseParams are the params of pose costs and constraints.
type PoseParams struct {
	Timestep  *int      `json:"timestep,omitempty"`
	XYZ       []float64 `json:"xyz"`
	WXYZ      []float64 `json:"wxyz"`
	PosCoeffs []float64 `json:"pos_coeffs,omitempty"`
	RotCoeffs []float64 `json:"rot_coeffs,omitempty"`
	Link      string    `json:"link"`
}

// JointVelocityParams are the params of joint_vel costs.
type JointVelocityParams struct {
	Coeffs []float64 `json:"coeffs,omitempty"`
}

// JointParams are the params of joint_pos costs and joint constraints.
type JointParams struct {
	Vals     []float64 `json:"vals"`
	Coeffs   []float64 `json:"coeffs,omitempty"`
	Timestep *int      `json:"timestep,omitempty"`
}

// CartesianVelocityParams are the params of cart_vel constraints.
type CartesianVelocityParams struct {
	FirstStep     *int     `json:"first_step,omitempty"`
	LastStep      *int     `json:"last_step,omitempty"`
	DistanceLimit *float64 `json:"distance_limit"`
	Link          string   `json:"link"`
}

// ParseRequest decodes and validates a request. Requests are JSON5, so hand written files may carry comments and
// trailing commas.
func ParseRequest(data []byte) (*Request, error) {
	req := &Request{}
	if err := json5.Unmarshal(data, req); err != nil {
		return nil, &MalformedRequestError{Field: "", Reason: err.Error()}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// ReadRequestFile reads and parses a JSON request from a file.
func ReadRequestFile(path string) (*Request, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request file")
	}
	return ParseRequest(data)
}

// Validate checks the structure of the request. Checks that need the manipulator are done by Assemble.
func (r *Request) Validate() error {
	if r.BasicInfo == nil {
		return newMalformedRequestError("basic_info", "missing")
	}
	if r.BasicInfo.NSteps == nil {
		return newMalformedRequestError("basic_info.n_steps", "missing")
	}
	if *r.BasicInfo.NSteps < 1 {
		return newMalformedRequestError("basic_info.n_steps", "must be positive, got %d", *r.BasicInfo.NSteps)
	}
	if r.BasicInfo.Manip == "" {
		return newMalformedRequestError("basic_info.manip", "missing")
	}
	for i, c := range r.Costs {
		field := fmt.Sprintf("costs[%d]", i)
		switch c.Type {
		case CostJointVelocity, CostJointPosition, CostPose:
		case "":
			return newMalformedRequestError(field+".type", "missing")
		default:
			return newMalformedRequestError(field+".type", "unsupported cost type %q", c.Type)
		}
	}
	for i, c := range r.Constraints {
		field := fmt.Sprintf("constraints[%d]", i)
		switch c.Type {
		case ConstraintPose, ConstraintJoint, ConstraintCartesianVelocity:
		case "":
			return newMalformedRequestError(field+".type", "missing")
		default:
			return newMalformedRequestError(field+".type", "unsupported constraint type %q", c.Type)
		}
	}
	if r.InitInfo == nil {
		return newMalformedRequestError("init_info", "missing")
	}
	switch r.InitInfo.Type {
	case InitStationary:
	case InitStraightLine:
		if r.InitInfo.Endpoint == nil {
			return newMalformedRequestError("init_info.endpoint", "required by straight_line")
		}
	case InitGivenTraj:
		if r.InitInfo.Data == nil {
			return newMalformedRequestError("init_info.data", "required by given_traj")
		}
		if len(r.InitInfo.Data) != *r.BasicInfo.NSteps {
			return newMalformedRequestError("init_info.data", "has %d waypoints, n_steps is %d",
				len(r.InitInfo.Data), *r.BasicInfo.NSteps)
		}
	case "":
		return newMalformedRequestError("init_info.type", "missing")
	default:
		return newMalformedRequestError("init_info.type", "unsupported init type %q", r.InitInfo.Type)
	}
	if _, err := NewOptionsFromMap(r.Solver); err != nil {
		return newMalformedRequestError("solver", "%v", err)
	}
	return nil
}

// NSteps returns the number of waypoints. The request must be valid.
func (r *Request) NSteps() int {
	return *r.BasicInfo.NSteps
}

// StartFixed reports whether waypoint 0 is pinned.
func (r *Request) StartFixed() bool {
	return r.BasicInfo.StartFixed == nil || *r.BasicInfo.StartFixed
}

// decodeParams decodes raw params into a typed struct. Unknown keys are rejected.
func decodeParams(field string, raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return newMalformedRequestError(field+".params", "%v", err)
	}
	return nil
}
