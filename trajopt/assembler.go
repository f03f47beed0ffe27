package trajopt

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/trajopt/referenceframe"
	"go.viam.com/trajopt/spatialmath"
	"go.viam.com/trajopt/trajectory"
)

// startTolerance is how far the first waypoint of a given initialization may be from the start configuration
// when the start is fixed.
const startTolerance = 1e-5

// Assemble turns a request into a problem over the requested manipulator. Every link is resolved and every term is
// built here, so a returned problem can be solved without further validation.
func Assemble(req *Request, provider referenceframe.KinematicsProvider) (*Problem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	model, err := provider.Manipulator(req.BasicInfo.Manip)
	if err != nil {
		return nil, newMalformedRequestError("basic_info.manip", "%v", err)
	}
	a := &assembler{req: req, model: model, nSteps: req.NSteps(), dof: len(model.DoF())}
	if a.dof == 0 {
		return nil, newMalformedRequestError("basic_info.manip", "manipulator %q has no joints", model.Name())
	}

	start, err := a.start()
	if err != nil {
		return nil, err
	}
	initTraj, err := a.initialTrajectory(start)
	if err != nil {
		return nil, err
	}

	var costs, constraints []Term
	for i, ci := range req.Costs {
		term, err := a.cost(i, ci)
		if err != nil {
			return nil, err
		}
		costs = append(costs, term)
	}
	if len(req.BasicInfo.DofsFixed) > 0 {
		term, err := NewFixedDoF("dofs_fixed", req.BasicInfo.DofsFixed, a.nSteps, a.dof)
		if err != nil {
			return nil, newMalformedRequestError("basic_info.dofs_fixed", "%v", err)
		}
		constraints = append(constraints, term)
	}
	for i, ci := range req.Constraints {
		term, err := a.constraint(i, ci)
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, term)
	}

	prob, err := NewProblem(model, initTraj, costs, constraints)
	if err != nil {
		return nil, newMalformedRequestError("init_info", "%v", err)
	}
	opts, err := NewOptionsFromMap(req.Solver)
	if err != nil {
		return nil, newMalformedRequestError("solver", "%v", err)
	}
	prob.options = opts
	return prob, nil
}

type assembler struct {
	req    *Request
	model  referenceframe.Model
	nSteps int
	dof    int
}

func (a *assembler) start() ([]referenceframe.Input, error) {
	start := a.req.BasicInfo.Start
	if start == nil {
		start = make([]float64, a.dof)
	}
	if len(start) != a.dof {
		return nil, errors.Wrap(referenceframe.NewIncorrectDoFError(len(start), a.dof), "basic_info.start")
	}
	if err := a.checkLimits("basic_info.start", start); err != nil {
		return nil, err
	}
	return referenceframe.FloatsToInputs(start), nil
}

func (a *assembler) checkLimits(field string, cfg []float64) error {
	for j, lim := range a.model.DoF() {
		if cfg[j] < lim.Min || cfg[j] > lim.Max {
			return newMalformedRequestError(field, "joint %d value %v outside limits [%v, %v]", j, cfg[j], lim.Min, lim.Max)
		}
	}
	return nil
}

func (a *assembler) initialTrajectory(start []referenceframe.Input) (*trajectory.Trajectory, error) {
	info := a.req.InitInfo
	fixed := a.req.StartFixed()
	switch info.Type {
	case InitStationary:
		return trajectory.Stationary(start, a.nSteps, fixed)
	case InitStraightLine:
		if len(info.Endpoint) != a.dof {
			return nil, errors.Wrap(referenceframe.NewIncorrectDoFError(len(info.Endpoint), a.dof), "init_info.endpoint")
		}
		if err := a.checkLimits("init_info.endpoint", info.Endpoint); err != nil {
			return nil, err
		}
		return trajectory.StraightLine(start, referenceframe.FloatsToInputs(info.Endpoint), a.nSteps, fixed)
	case InitGivenTraj:
		waypoints := make([][]referenceframe.Input, 0, len(info.Data))
		for i, row := range info.Data {
			field := fmt.Sprintf("init_info.data[%d]", i)
			if len(row) != a.dof {
				return nil, errors.Wrap(referenceframe.NewIncorrectDoFError(len(row), a.dof), field)
			}
			if err := a.checkLimits(field, row); err != nil {
				return nil, err
			}
			waypoints = append(waypoints, referenceframe.FloatsToInputs(row))
		}
		if fixed {
			if referenceframe.InputsLinfDistance(waypoints[0], start) > startTolerance {
				return nil, newMalformedRequestError("init_info.data",
					"first waypoint %v does not match start %v while start_fixed is set", info.Data[0],
					referenceframe.InputsToFloats(start))
			}
			waypoints[0] = referenceframe.CopyInputs(start)
		}
		return trajectory.FromWaypoints(waypoints, fixed)
	}
	return nil, newMalformedRequestError("init_info.type", "unsupported init type %q", info.Type)
}

// timestep applies the default of the last waypoint.
func (a *assembler) timestep(field string, step *int) (int, error) {
	if step == nil {
		return a.nSteps - 1, nil
	}
	if *step < 0 || *step >= a.nSteps {
		return 0, newMalformedRequestError(field, "timestep %d outside [0, %d)", *step, a.nSteps)
	}
	return *step, nil
}

func orDefault(coeffs []float64) []float64 {
	if coeffs == nil {
		return []float64{1}
	}
	return coeffs
}

func termName(name, typ string) string {
	if name == "" {
		return typ
	}
	return name
}

// wrapTermError keeps coefficient and kinematic errors typed and turns everything else into a malformed request.
func wrapTermError(field string, err error) error {
	var coeffErr *InvalidCoefficientError
	var linkErr *referenceframe.UnknownLinkError
	if errors.As(err, &coeffErr) || errors.As(err, &linkErr) {
		return err
	}
	var malformed *MalformedRequestError
	if errors.As(err, &malformed) {
		return err
	}
	return newMalformedRequestError(field+".params", "%v", err)
}

func (a *assembler) cost(i int, ci CostInfo) (Term, error) {
	field := fmt.Sprintf("costs[%d]", i)
	name := termName(ci.Name, string(ci.Type))
	var term Term
	var err error
	switch ci.Type {
	case CostJointVelocity:
		term, err = a.jointVelocity(field, name, ci.Params)
	case CostJointPosition:
		term, err = a.jointTarget(field, name, KindCost, ci.Params)
	case CostPose:
		term, err = a.pose(field, name, KindCost, ci.Params)
	default:
		return nil, newMalformedRequestError(field+".type", "unsupported cost type %q", ci.Type)
	}
	if err != nil {
		return nil, wrapTermError(field, err)
	}
	return term, nil
}

func (a *assembler) constraint(i int, ci ConstraintInfo) (Term, error) {
	field := fmt.Sprintf("constraints[%d]", i)
	name := termName(ci.Name, string(ci.Type))
	var term Term
	var err error
	switch ci.Type {
	case ConstraintPose:
		term, err = a.pose(field, name, KindEquality, ci.Params)
	case ConstraintJoint:
		term, err = a.jointTarget(field, name, KindEquality, ci.Params)
	case ConstraintCartesianVelocity:
		term, err = a.cartesianVelocity(field, name, ci.Params)
	default:
		return nil, newMalformedRequestError(field+".type", "unsupported constraint type %q", ci.Type)
	}
	if err != nil {
		return nil, wrapTermError(field, err)
	}
	return term, nil
}

func (a *assembler) jointVelocity(field, name string, raw map[string]interface{}) (Term, error) {
	var params JointVelocityParams
	if err := decodeParams(field, raw, &params); err != nil {
		return nil, err
	}
	return NewJointVelocity(name, orDefault(params.Coeffs), a.nSteps, a.dof)
}

func (a *assembler) jointTarget(field, name string, kind Kind, raw map[string]interface{}) (Term, error) {
	var params JointParams
	if err := decodeParams(field, raw, &params); err != nil {
		return nil, err
	}
	if params.Vals == nil {
		return nil, newMalformedRequestError(field+".params.vals", "missing")
	}
	step, err := a.timestep(field+".params.timestep", params.Timestep)
	if err != nil {
		return nil, err
	}
	if kind == KindCost {
		return NewJointPosition(name, params.Vals, orDefault(params.Coeffs), step, a.nSteps, a.dof)
	}
	return NewJointTarget(name, params.Vals, orDefault(params.Coeffs), step, a.nSteps, a.dof)
}

func (a *assembler) pose(field, name string, kind Kind, raw map[string]interface{}) (Term, error) {
	var params PoseParams
	if err := decodeParams(field, raw, &params); err != nil {
		return nil, err
	}
	if params.Link == "" {
		return nil, newMalformedRequestError(field+".params.link", "missing")
	}
	if params.XYZ == nil {
		return nil, newMalformedRequestError(field+".params.xyz", "missing")
	}
	if params.WXYZ == nil {
		return nil, newMalformedRequestError(field+".params.wxyz", "missing")
	}
	target, err := spatialmath.NewPoseFromXYZWXYZ(params.XYZ, params.WXYZ)
	if err != nil {
		return nil, newMalformedRequestError(field+".params", "%v", err)
	}
	step, err := a.timestep(field+".params.timestep", params.Timestep)
	if err != nil {
		return nil, err
	}
	return NewPoseMatch(name, kind, a.model, params.Link, target, orDefault(params.PosCoeffs),
		orDefault(params.RotCoeffs), step, a.nSteps)
}

func (a *assembler) cartesianVelocity(field, name string, raw map[string]interface{}) (Term, error) {
	var params CartesianVelocityParams
	if err := decodeParams(field, raw, &params); err != nil {
		return nil, err
	}
	if params.Link == "" {
		return nil, newMalformedRequestError(field+".params.link", "missing")
	}
	if params.DistanceLimit == nil || math.IsNaN(*params.DistanceLimit) {
		return nil, newMalformedRequestError(field+".params.distance_limit", "missing")
	}
	first, last := 0, a.nSteps-1
	if params.FirstStep != nil {
		first = *params.FirstStep
	}
	if params.LastStep != nil {
		last = *params.LastStep
	}
	return NewCartesianVelocity(name, a.model, params.Link, first, last, *params.DistanceLimit, a.nSteps)
}
