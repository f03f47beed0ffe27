package trajopt

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/trajopt/trajectory"
)

// JointVelocity penalizes joint motion between consecutive waypoints: Σₜ Σⱼ cⱼ (xₜ₊₁,ⱼ − xₜ,ⱼ)².
type JointVelocity struct {
	baseTerm
	shaped
	hessian *mat.SymBandDense
}

// NewJointVelocity builds the smoothness cost. coeffs holds one weight per joint, or a single weight for all.
func NewJointVelocity(name string, coeffs []float64, nSteps, dof int) (*JointVelocity, error) {
	c, err := expandCoefficients(name, coeffs, dof)
	if err != nil {
		return nil, err
	}
	s := shaped{nSteps: nSteps, dof: dof}
	n := s.dim()
	// waypoint t only couples with t±1, so the band is one waypoint wide
	bandwidth := dof
	if bandwidth > n-1 {
		bandwidth = n - 1
	}
	h := mat.NewSymBandDense(n, bandwidth, nil)
	for t := 0; t+1 < nSteps; t++ {
		for j := 0; j < dof; j++ {
			a, b := t*dof+j, (t+1)*dof+j
			h.SetSymBand(a, a, h.At(a, a)+c[j])
			h.SetSymBand(b, b, h.At(b, b)+c[j])
			h.SetSymBand(a, b, h.At(a, b)-c[j])
		}
	}
	return &JointVelocity{baseTerm: baseTerm{name: name, kind: KindCost, coeffs: c}, shaped: s, hessian: h}, nil
}

// Hessian returns H such that the cost is xᵀHx. H is shared and must not be modified.
func (jv *JointVelocity) Hessian() *mat.SymBandDense {
	return jv.hessian
}

// JointPosition pulls the configuration at one timestep towards target values: Σⱼ cⱼ (xₜ,ⱼ − vⱼ)².
type JointPosition struct {
	baseTerm
	shaped
	step   int
	target []float64
}

// NewJointPosition builds a squared joint position cost at timestep step.
func NewJointPosition(name string, target, coeffs []float64, step, nSteps, dof int) (*JointPosition, error) {
	return newJointTargetTerm(name, KindCost, target, coeffs, step, nSteps, dof)
}

// NewJointTarget builds an equality constraint holding the configuration at timestep step at target values.
func NewJointTarget(name string, target, coeffs []float64, step, nSteps, dof int) (*JointPosition, error) {
	return newJointTargetTerm(name, KindEquality, target, coeffs, step, nSteps, dof)
}

func newJointTargetTerm(name string, kind Kind, target, coeffs []float64, step, nSteps, dof int) (*JointPosition, error) {
	if len(target) != dof {
		return nil, errors.Errorf("term %q needs %d target values, got %d", name, dof, len(target))
	}
	if err := checkStep(name, step, nSteps); err != nil {
		return nil, err
	}
	c, err := expandCoefficients(name, coeffs, dof)
	if err != nil {
		return nil, err
	}
	return &JointPosition{
		baseTerm: baseTerm{name: name, kind: kind, coeffs: c},
		shaped:   shaped{nSteps: nSteps, dof: dof},
		step:     step,
		target:   append([]float64(nil), target...),
	}, nil
}

// Penalty is always Squared for the cost; constraints ignore it.
func (jp *JointPosition) Penalty() Penalty {
	return Squared
}

// rowScale is the factor applied to residual row j. Squared costs use √c so that r² carries c.
func (jp *JointPosition) rowScale(j int) float64 {
	if jp.kind == KindCost {
		return math.Sqrt(jp.coeffs[j])
	}
	return jp.coeffs[j]
}

// Residual returns the scaled difference between the configuration at the timestep and the target.
func (jp *JointPosition) Residual(traj *trajectory.Trajectory) ([]float64, error) {
	if err := jp.check(jp.name, traj); err != nil {
		return nil, err
	}
	r := make([]float64, jp.dof)
	for j := range r {
		r[j] = jp.rowScale(j) * (traj.Value(jp.step, j) - jp.target[j])
	}
	return r, nil
}

// Linearize returns the residual and its constant Jacobian.
func (jp *JointPosition) Linearize(traj *trajectory.Trajectory) ([]float64, *mat.Dense, error) {
	r, err := jp.Residual(traj)
	if err != nil {
		return nil, nil, err
	}
	jac := mat.NewDense(jp.dof, jp.dim(), nil)
	for j := 0; j < jp.dof; j++ {
		jac.Set(j, traj.Index(jp.step, j), jp.rowScale(j))
	}
	return r, jac, nil
}

// FixedDoF holds the listed joints at their waypoint 0 value along the whole trajectory.
type FixedDoF struct {
	baseTerm
	shaped
	joints []int
}

// NewFixedDoF builds the equality constraint xₜ,ⱼ − x₀,ⱼ = 0 for every t > 0 and every listed joint j.
func NewFixedDoF(name string, joints []int, nSteps, dof int) (*FixedDoF, error) {
	seen := map[int]bool{}
	for _, j := range joints {
		if j < 0 || j >= dof {
			return nil, errors.Errorf("term %q fixes joint %d, model has %d", name, j, dof)
		}
		if seen[j] {
			return nil, errors.Errorf("term %q fixes joint %d twice", name, j)
		}
		seen[j] = true
	}
	return &FixedDoF{
		baseTerm: baseTerm{name: name, kind: KindEquality, coeffs: []float64{1}},
		shaped:   shaped{nSteps: nSteps, dof: dof},
		joints:   append([]int(nil), joints...),
	}, nil
}

// Penalty is unused for constraints.
func (fd *FixedDoF) Penalty() Penalty {
	return Abs
}

// Residual returns the drift of every fixed joint from its starting value, waypoint by waypoint.
func (fd *FixedDoF) Residual(traj *trajectory.Trajectory) ([]float64, error) {
	if err := fd.check(fd.name, traj); err != nil {
		return nil, err
	}
	r := make([]float64, 0, (fd.nSteps-1)*len(fd.joints))
	for t := 1; t < fd.nSteps; t++ {
		for _, j := range fd.joints {
			r = append(r, traj.Value(t, j)-traj.Value(0, j))
		}
	}
	return r, nil
}

// Linearize returns the residual and its constant Jacobian.
func (fd *FixedDoF) Linearize(traj *trajectory.Trajectory) ([]float64, *mat.Dense, error) {
	r, err := fd.Residual(traj)
	if err != nil {
		return nil, nil, err
	}
	if len(r) == 0 {
		return r, &mat.Dense{}, nil
	}
	jac := mat.NewDense(len(r), fd.dim(), nil)
	row := 0
	for t := 1; t < fd.nSteps; t++ {
		for _, j := range fd.joints {
			jac.Set(row, traj.Index(t, j), 1)
			jac.Set(row, traj.Index(0, j), -1)
			row++
		}
	}
	return r, jac, nil
}
