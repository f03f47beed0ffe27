package trajopt

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/trajopt/trajectory"
)

// Kind tells the solver how a term enters the merit function.
type Kind int

// Term kinds.
const (
	KindCost Kind = iota
	KindEquality
	KindInequality
)

func (k Kind) String() string {
	switch k {
	case KindCost:
		return "cost"
	case KindEquality:
		return "equality"
	case KindInequality:
		return "inequality"
	}
	return "unknown"
}

// Penalty selects how the residual of a cost term is turned into a scalar.
type Penalty int

// Cost penalties.
const (
	// Squared costs are the sum of squared residuals. They are convexified by Gauss-Newton.
	Squared Penalty = iota
	// Abs costs are the sum of absolute residuals. They are kept exact in the convex model.
	Abs
)

func (p Penalty) String() string {
	switch p {
	case Squared:
		return "squared"
	case Abs:
		return "abs"
	}
	return "unknown"
}

// A Term is a named cost or constraint over a trajectory.
type Term interface {
	Name() string
	Kind() Kind
	Coefficients() []float64
}

// A ResidualTerm is defined by a vector valued residual r(x) of the flattened trajectory x.
//
// Costs are Σr² or Σ|r| depending on Penalty. Equality constraints require r = 0 and are measured by Σ|r|.
// Inequality constraints require r ≤ 0 and are measured by Σmax(0, r). Residuals already carry the term's
// coefficients.
type ResidualTerm interface {
	Term
	Penalty() Penalty
	Residual(traj *trajectory.Trajectory) ([]float64, error)
	// Linearize returns the residual together with its Jacobian with respect to the flattened trajectory.
	Linearize(traj *trajectory.Trajectory) ([]float64, *mat.Dense, error)
}

// A QuadraticTerm is a cost xᵀHx with a constant banded H. The solver reuses H on every iteration.
type QuadraticTerm interface {
	Term
	Hessian() *mat.SymBandDense
}

// Value returns the cost of a cost term, or the violation of a constraint term, on the given trajectory.
func Value(term Term, traj *trajectory.Trajectory) (float64, error) {
	switch t := term.(type) {
	case QuadraticTerm:
		return quadraticValue(t.Hessian(), traj.Flatten()), nil
	case ResidualTerm:
		r, err := t.Residual(traj)
		if err != nil {
			return 0, err
		}
		return penaltyValue(t.Kind(), t.Penalty(), r), nil
	}
	return 0, errors.Errorf("term %q of type %T cannot be evaluated", term.Name(), term)
}

func quadraticValue(h *mat.SymBandDense, x []float64) float64 {
	xv := mat.NewVecDense(len(x), x)
	hx := mat.NewVecDense(len(x), nil)
	hx.MulVec(h, xv)
	return mat.Dot(xv, hx)
}

func penaltyValue(kind Kind, penalty Penalty, r []float64) float64 {
	total := 0.
	switch kind {
	case KindCost:
		if penalty == Squared {
			return floats.Dot(r, r)
		}
		for _, v := range r {
			total += math.Abs(v)
		}
	case KindEquality:
		for _, v := range r {
			total += math.Abs(v)
		}
	case KindInequality:
		for _, v := range r {
			total += math.Max(0, v)
		}
	}
	return total
}

// expandCoefficients validates coefficients and broadcasts a single value to n entries.
func expandCoefficients(term string, coeffs []float64, n int) ([]float64, error) {
	var out []float64
	switch len(coeffs) {
	case 1:
		out = make([]float64, n)
		floats.AddConst(coeffs[0], out)
	case n:
		out = append([]float64(nil), coeffs...)
	default:
		return nil, errors.Errorf("term %q needs 1 or %d coefficients, got %d", term, n, len(coeffs))
	}
	for i, c := range coeffs {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, &InvalidCoefficientError{Term: term, Index: i, Value: c}
		}
	}
	return out, nil
}

// baseTerm carries what every term shares.
type baseTerm struct {
	name   string
	kind   Kind
	coeffs []float64
}

func (b *baseTerm) Name() string {
	return b.name
}

func (b *baseTerm) Kind() Kind {
	return b.kind
}

func (b *baseTerm) Coefficients() []float64 {
	return append([]float64(nil), b.coeffs...)
}

func checkStep(term string, step, nSteps int) error {
	if step < 0 || step >= nSteps {
		return errors.Errorf("term %q refers to timestep %d outside [0, %d)", term, step, nSteps)
	}
	return nil
}

// shaped records the trajectory shape a term was built for.
type shaped struct {
	nSteps int
	dof    int
}

func (s shaped) check(term string, traj *trajectory.Trajectory) error {
	if traj.NSteps() != s.nSteps || traj.DoF() != s.dof {
		return errors.Errorf("term %q was built for %dx%d trajectories, got %dx%d",
			term, s.nSteps, s.dof, traj.NSteps(), traj.DoF())
	}
	return nil
}

func (s shaped) dim() int {
	return s.nSteps * s.dof
}
