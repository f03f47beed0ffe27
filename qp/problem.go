// Package qp solves the convex subproblems of sequential convex optimization: a quadratic objective plus
// weighted absolute-value and hinge penalties of affine functions, over a box.
package qp

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Problem is
//
//	minimize   ½dᵀPd + qᵀd + Σᵢ WAᵢ|Aᵢd + Bᵢ| + Σₖ WCₖ max(0, Cₖd + Eₖ)
//	subject to Lower ≤ d ≤ Upper
//
// A and C may be nil when there are no rows of that kind. Lower may equal Upper to pin a variable. P may be a
// *mat.SymBandDense; solvers keep the band when the rows of A and C stay inside it.
type Problem struct {
	P mat.Symmetric
	Q []float64

	A  *mat.Dense
	B  []float64
	WA []float64

	C  *mat.Dense
	E  []float64
	WC []float64

	Lower []float64
	Upper []float64
}

// Solution is the result of a subproblem solve.
type Solution struct {
	X          []float64
	Objective  float64
	Iterations int
	// Converged is false when the iteration cap was hit first. X is still feasible for the box.
	Converged bool
}

// Solver solves convex subproblems. Implementations must return a point inside the box and must terminate.
type Solver interface {
	Solve(p *Problem) (*Solution, error)
}

// Dim returns the number of variables.
func (p *Problem) Dim() int {
	return len(p.Q)
}

func rows(m *mat.Dense) int {
	if m == nil || m.IsEmpty() {
		return 0
	}
	r, _ := m.Dims()
	return r
}

// Validate checks that every part of the problem has consistent dimensions and that weights are non-negative.
func (p *Problem) Validate() error {
	n := p.Dim()
	if n == 0 {
		return errors.New("problem has no variables")
	}
	var err error
	if p.P == nil || p.P.SymmetricDim() != n {
		multierr.AppendInto(&err, errors.Errorf("P must be %dx%d", n, n))
	}
	if len(p.Lower) != n || len(p.Upper) != n {
		multierr.AppendInto(&err, errors.Errorf("bounds must have %d entries", n))
	} else {
		for i := range p.Lower {
			if p.Lower[i] > p.Upper[i] {
				multierr.AppendInto(&err, errors.Errorf("lower bound %d above upper bound: %v > %v", i, p.Lower[i], p.Upper[i]))
			}
		}
	}
	multierr.AppendInto(&err, checkRows("A", p.A, p.B, p.WA, n))
	multierr.AppendInto(&err, checkRows("C", p.C, p.E, p.WC, n))
	return err
}

func checkRows(name string, m *mat.Dense, offset, weight []float64, n int) error {
	r := rows(m)
	if r == 0 {
		if len(offset) != 0 || len(weight) != 0 {
			return errors.Errorf("%s has no rows but %d offsets and %d weights", name, len(offset), len(weight))
		}
		return nil
	}
	if _, c := m.Dims(); c != n {
		return errors.Errorf("%s must have %d columns, has %d", name, n, c)
	}
	if len(offset) != r || len(weight) != r {
		return errors.Errorf("%s has %d rows but %d offsets and %d weights", name, r, len(offset), len(weight))
	}
	for i, w := range weight {
		if w < 0 || math.IsNaN(w) {
			return errors.Errorf("%s row %d has invalid weight %v", name, i, w)
		}
	}
	return nil
}

// Objective evaluates the full objective at d. The box is not checked.
func (p *Problem) Objective(d []float64) float64 {
	dv := mat.NewVecDense(len(d), d)
	pd := mat.NewVecDense(len(d), nil)
	pd.MulVec(p.P, dv)
	val := 0.5*mat.Dot(dv, pd) + floats.Dot(p.Q, d)
	if r := rows(p.A); r > 0 {
		ad := mat.NewVecDense(r, nil)
		ad.MulVec(p.A, dv)
		for i := 0; i < r; i++ {
			val += p.WA[i] * math.Abs(ad.AtVec(i)+p.B[i])
		}
	}
	if r := rows(p.C); r > 0 {
		cd := mat.NewVecDense(r, nil)
		cd.MulVec(p.C, dv)
		for i := 0; i < r; i++ {
			val += p.WC[i] * math.Max(0, cd.AtVec(i)+p.E[i])
		}
	}
	return val
}

// InBox reports whether d lies inside the problem's bounds.
func (p *Problem) InBox(d []float64) bool {
	for i, v := range d {
		if v < p.Lower[i] || v > p.Upper[i] {
			return false
		}
	}
	return true
}
