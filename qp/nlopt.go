//go:build !windows && !no_cgo

package qp

import (
	"math"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/trajopt/utils"
)

const (
	defaultNloptMaxEval = 2000
	defaultNloptTol     = 1e-9
)

// NloptSolver solves subproblems with nlopt's SLSQP on the smooth slack reformulation
//
//	minimize   ½dᵀPd + qᵀd + Σ WAᵢ sᵢ + Σ WCₖ tₖ
//	subject to -sᵢ ≤ Aᵢd + Bᵢ ≤ sᵢ,  Cₖd + Eₖ ≤ tₖ,  s, t ≥ 0,  Lower ≤ d ≤ Upper
type NloptSolver struct {
	MaxEval int
	Tol     float64
}

// NewNloptSolver returns an SLSQP backed solver.
func NewNloptSolver() (*NloptSolver, error) {
	return &NloptSolver{MaxEval: defaultNloptMaxEval, Tol: defaultNloptTol}, nil
}

// Solve runs SLSQP from the box-clipped origin with slacks set to be feasible.
func (ns *NloptSolver) Solve(p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n, mA, mC := p.Dim(), rows(p.A), rows(p.C)
	total := n + mA + mC

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(total))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	lower := make([]float64, total)
	upper := make([]float64, total)
	copy(lower, p.Lower)
	copy(upper, p.Upper)
	for i := n; i < total; i++ {
		upper[i] = math.Inf(1)
	}

	evals := 0
	px := mat.NewVecDense(n, nil)
	objective := func(x, gradient []float64) float64 {
		evals++
		d := mat.NewVecDense(n, x[:n])
		px.MulVec(p.P, d)
		val := 0.5*mat.Dot(d, px) + floats.Dot(p.Q, x[:n])
		for i := 0; i < mA; i++ {
			val += p.WA[i] * x[n+i]
		}
		for k := 0; k < mC; k++ {
			val += p.WC[k] * x[n+mA+k]
		}
		if len(gradient) > 0 {
			for i := 0; i < n; i++ {
				gradient[i] = px.AtVec(i) + p.Q[i]
			}
			copy(gradient[n:n+mA], p.WA)
			copy(gradient[n+mA:], p.WC)
		}
		return val
	}

	// rows: Ad + B - s, -(Ad + B) - s, Cd + E - t
	nCons := 2*mA + mC
	constraints := func(result, x, gradient []float64) {
		for i := 0; i < mA; i++ {
			ad := p.B[i]
			for j := 0; j < n; j++ {
				ad += p.A.At(i, j) * x[j]
			}
			result[i] = ad - x[n+i]
			result[mA+i] = -ad - x[n+i]
		}
		for k := 0; k < mC; k++ {
			cd := p.E[k]
			for j := 0; j < n; j++ {
				cd += p.C.At(k, j) * x[j]
			}
			result[2*mA+k] = cd - x[n+mA+k]
		}
		if len(gradient) == 0 {
			return
		}
		for i := range gradient {
			gradient[i] = 0
		}
		for i := 0; i < mA; i++ {
			for j := 0; j < n; j++ {
				a := p.A.At(i, j)
				gradient[i*total+j] = a
				gradient[(mA+i)*total+j] = -a
			}
			gradient[i*total+n+i] = -1
			gradient[(mA+i)*total+n+i] = -1
		}
		for k := 0; k < mC; k++ {
			row := 2*mA + k
			for j := 0; j < n; j++ {
				gradient[row*total+j] = p.C.At(k, j)
			}
			gradient[row*total+n+mA+k] = -1
		}
	}

	err = multierr.Combine(
		opt.SetLowerBounds(lower),
		opt.SetUpperBounds(upper),
		opt.SetMinObjective(objective),
		opt.SetFtolRel(ns.Tol),
		opt.SetXtolRel(ns.Tol),
		opt.SetMaxEval(ns.MaxEval),
	)
	if nCons > 0 {
		tol := make([]float64, nCons)
		for i := range tol {
			tol[i] = ns.Tol
		}
		err = multierr.Combine(err, opt.AddInequalityMConstraint(constraints, tol))
	}
	if err != nil {
		return nil, errors.Wrap(err, "nlopt setup error")
	}

	start := make([]float64, total)
	for j := 0; j < n; j++ {
		start[j] = utils.Clamp(0, p.Lower[j], p.Upper[j])
	}
	slack := make([]float64, nCons)
	constraints(slack, append(start[:n:n], make([]float64, mA+mC)...), nil)
	for i := 0; i < mA; i++ {
		start[n+i] = math.Abs(slack[i])
	}
	for k := 0; k < mC; k++ {
		start[n+mA+k] = math.Max(0, slack[2*mA+k])
	}

	xOpt, _, nloptErr := opt.Optimize(start)
	if nloptErr != nil && xOpt == nil {
		return nil, errors.Wrap(nloptErr, "nlopt optimize")
	}
	out := make([]float64, n)
	for j := range out {
		out[j] = utils.Clamp(xOpt[j], p.Lower[j], p.Upper[j])
	}
	sol := &Solution{X: out, Objective: p.Objective(out), Iterations: evals, Converged: nloptErr == nil}

	zero := make([]float64, n)
	if p.InBox(zero) {
		if zeroObj := p.Objective(zero); zeroObj < sol.Objective {
			sol.X = zero
			sol.Objective = zeroObj
		}
	}
	return sol, nil
}
