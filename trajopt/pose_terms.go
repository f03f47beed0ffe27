package trajopt

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/trajopt/referenceframe"
	"go.viam.com/trajopt/spatialmath"
	"go.viam.com/trajopt/trajectory"
)

// PoseMatch drives the world pose of a link at one timestep to a target. Its residual is
//
//	[pos ∘ (p_target − p_fk); rot ∘ log(q_target ⊗ q_fk⁻¹)]
//
// where log is the SO(3) logarithm returning a rotation vector. As a constraint it is an equality; as a cost it
// uses the Abs penalty.
type PoseMatch struct {
	baseTerm
	shaped
	model  referenceframe.Model
	link   string
	step   int
	target spatialmath.Pose
	pos    []float64
	rot    []float64
}

// NewPoseMatch builds a pose term of the given kind. kind must be KindCost or KindEquality.
func NewPoseMatch(
	name string,
	kind Kind,
	model referenceframe.Model,
	link string,
	target spatialmath.Pose,
	posCoeffs, rotCoeffs []float64,
	step, nSteps int,
) (*PoseMatch, error) {
	if kind == KindInequality {
		return nil, errors.Errorf("term %q: pose terms cannot be inequalities", name)
	}
	if !model.HasLink(link) {
		return nil, referenceframe.NewUnknownLinkError(link, model.Name())
	}
	if err := checkStep(name, step, nSteps); err != nil {
		return nil, err
	}
	pos, err := expandCoefficients(name, posCoeffs, 3)
	if err != nil {
		return nil, err
	}
	rot, err := expandCoefficients(name, rotCoeffs, 3)
	if err != nil {
		return nil, err
	}
	return &PoseMatch{
		baseTerm: baseTerm{name: name, kind: kind, coeffs: append(append([]float64{}, pos...), rot...)},
		shaped:   shaped{nSteps: nSteps, dof: len(model.DoF())},
		model:    model,
		link:     link,
		step:     step,
		target:   target,
		pos:      pos,
		rot:      rot,
	}, nil
}

// Penalty is Abs for pose costs.
func (pm *PoseMatch) Penalty() Penalty {
	return Abs
}

// Link returns the name of the matched link.
func (pm *PoseMatch) Link() string {
	return pm.link
}

// Step returns the timestep the term applies to.
func (pm *PoseMatch) Step() int {
	return pm.step
}

// Target returns the goal pose.
func (pm *PoseMatch) Target() spatialmath.Pose {
	return pm.target
}

// rotationError returns log(q_target ⊗ q_fk⁻¹), the world-frame rotation still needed to reach the target.
func (pm *PoseMatch) rotationError(current spatialmath.Pose) r3.Vector {
	qt := pm.target.Orientation().Quaternion()
	qc := current.Orientation().Quaternion()
	return spatialmath.QuatToR3AA(quat.Mul(qt, quat.Conj(qc)))
}

func (pm *PoseMatch) residualAt(current spatialmath.Pose) []float64 {
	delta := pm.target.Point().Sub(current.Point())
	e := pm.rotationError(current)
	return []float64{
		pm.pos[0] * delta.X,
		pm.pos[1] * delta.Y,
		pm.pos[2] * delta.Z,
		pm.rot[0] * e.X,
		pm.rot[1] * e.Y,
		pm.rot[2] * e.Z,
	}
}

// Residual evaluates the pose error at the term's timestep.
func (pm *PoseMatch) Residual(traj *trajectory.Trajectory) ([]float64, error) {
	if err := pm.check(pm.name, traj); err != nil {
		return nil, err
	}
	current, err := pm.model.ForwardKinematics(pm.link, traj.Waypoint(pm.step))
	if err != nil {
		return nil, err
	}
	return pm.residualAt(current), nil
}

// Linearize returns the pose error and its Jacobian. The position rows are −diag(pos)·J_lin and the rotation rows
// −diag(rot)·J_r⁻¹(e)·J_ang, with J_r⁻¹ the inverse right Jacobian of the SO(3) logarithm.
func (pm *PoseMatch) Linearize(traj *trajectory.Trajectory) ([]float64, *mat.Dense, error) {
	if err := pm.check(pm.name, traj); err != nil {
		return nil, nil, err
	}
	cfg := traj.Waypoint(pm.step)
	current, err := pm.model.ForwardKinematics(pm.link, cfg)
	if err != nil {
		return nil, nil, err
	}
	geo, err := pm.model.Jacobian(pm.link, cfg)
	if err != nil {
		return nil, nil, err
	}
	r := pm.residualAt(current)

	jrInv := spatialmath.LogMapJacobianInverse(pm.rotationError(current))
	var rotJac mat.Dense
	rotJac.Mul(jrInv, geo.Slice(3, 6, 0, pm.dof))

	jac := mat.NewDense(6, pm.dim(), nil)
	for j := 0; j < pm.dof; j++ {
		col := traj.Index(pm.step, j)
		for i := 0; i < 3; i++ {
			jac.Set(i, col, -pm.pos[i]*geo.At(i, j))
			jac.Set(3+i, col, -pm.rot[i]*rotJac.At(i, j))
		}
	}
	return r, jac, nil
}

// CartesianVelocity bounds how far a link may travel along each world axis between consecutive waypoints in
// [first, last]: |pₜ₊₁,ₖ − pₜ,ₖ| ≤ limit.
type CartesianVelocity struct {
	baseTerm
	shaped
	model       referenceframe.Model
	link        string
	first, last int
	limit       float64
}

// NewCartesianVelocity builds the inequality constraint over steps first..last.
func NewCartesianVelocity(
	name string,
	model referenceframe.Model,
	link string,
	first, last int,
	limit float64,
	nSteps int,
) (*CartesianVelocity, error) {
	if !model.HasLink(link) {
		return nil, referenceframe.NewUnknownLinkError(link, model.Name())
	}
	if err := checkStep(name, first, nSteps); err != nil {
		return nil, err
	}
	if err := checkStep(name, last, nSteps); err != nil {
		return nil, err
	}
	if first > last {
		return nil, errors.Errorf("term %q has first_step %d after last_step %d", name, first, last)
	}
	if limit < 0 {
		return nil, &InvalidCoefficientError{Term: name, Index: 0, Value: limit}
	}
	return &CartesianVelocity{
		baseTerm: baseTerm{name: name, kind: KindInequality, coeffs: []float64{1}},
		shaped:   shaped{nSteps: nSteps, dof: len(model.DoF())},
		model:    model,
		link:     link,
		first:    first,
		last:     last,
		limit:    limit,
	}, nil
}

// Penalty is unused for constraints.
func (cv *CartesianVelocity) Penalty() Penalty {
	return Abs
}

// Residual returns, for every step and axis, d − limit and −d − limit where d is the displacement along the axis.
func (cv *CartesianVelocity) Residual(traj *trajectory.Trajectory) ([]float64, error) {
	r, _, err := cv.evaluate(traj, false)
	return r, err
}

// Linearize returns the residual and its Jacobian, built from the linear rows of the link Jacobian.
func (cv *CartesianVelocity) Linearize(traj *trajectory.Trajectory) ([]float64, *mat.Dense, error) {
	return cv.evaluate(traj, true)
}

func (cv *CartesianVelocity) evaluate(traj *trajectory.Trajectory, withJacobian bool) ([]float64, *mat.Dense, error) {
	if err := cv.check(cv.name, traj); err != nil {
		return nil, nil, err
	}
	steps := cv.last - cv.first
	r := make([]float64, 0, 6*steps)
	if steps == 0 {
		return r, &mat.Dense{}, nil
	}
	var jac *mat.Dense
	if withJacobian {
		jac = mat.NewDense(6*steps, cv.dim(), nil)
	}

	points := make([]spatialmath.Pose, 0, steps+1)
	jacs := make([]*mat.Dense, 0, steps+1)
	for t := cv.first; t <= cv.last; t++ {
		cfg := traj.Waypoint(t)
		p, err := cv.model.ForwardKinematics(cv.link, cfg)
		if err != nil {
			return nil, nil, err
		}
		points = append(points, p)
		if withJacobian {
			j, err := cv.model.Jacobian(cv.link, cfg)
			if err != nil {
				return nil, nil, err
			}
			jacs = append(jacs, j)
		}
	}

	for s := 0; s < steps; s++ {
		d := points[s+1].Point().Sub(points[s].Point())
		disp := []float64{d.X, d.Y, d.Z}
		for k := 0; k < 3; k++ {
			row := len(r)
			r = append(r, disp[k]-cv.limit, -disp[k]-cv.limit)
			if !withJacobian {
				continue
			}
			for j := 0; j < cv.dof; j++ {
				next := jacs[s+1].At(k, j)
				prev := jacs[s].At(k, j)
				jac.Set(row, traj.Index(cv.first+s+1, j), next)
				jac.Set(row, traj.Index(cv.first+s, j), -prev)
				jac.Set(row+1, traj.Index(cv.first+s+1, j), -next)
				jac.Set(row+1, traj.Index(cv.first+s, j), prev)
			}
		}
	}
	return r, jac, nil
}
