package qp

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/trajopt/utils"
)

// ADMM default settings.
const (
	defaultADMMMaxIterations = 4000
	defaultADMMAbsTol        = 1e-7
	defaultADMMRelTol        = 1e-6
	defaultADMMRho           = 0.1
	defaultADMMSigma         = 1e-6
	defaultADMMAlpha         = 1.6
	admmCheckEvery           = 10
	admmRhoAdaptFactor       = 5.
	admmRhoMin               = 1e-6
	admmRhoMax               = 1e6
)

// ADMM solves subproblems with the alternating direction method of multipliers on the splitting z = [A; C; I]d.
// The linear system is factored once per rho value, as a band matrix when P and the rows of A and C only couple
// nearby variables; rho is adapted to balance the primal and dual residuals.
type ADMM struct {
	MaxIterations int     `json:"max_iterations"`
	AbsTol        float64 `json:"abs_tol"`
	RelTol        float64 `json:"rel_tol"`
	Rho           float64 `json:"rho"`
	Sigma         float64 `json:"sigma"`
	Alpha         float64 `json:"alpha"`
}

// NewADMM returns an ADMM solver with default settings.
func NewADMM() *ADMM {
	return &ADMM{
		MaxIterations: defaultADMMMaxIterations,
		AbsTol:        defaultADMMAbsTol,
		RelTol:        defaultADMMRelTol,
		Rho:           defaultADMMRho,
		Sigma:         defaultADMMSigma,
		Alpha:         defaultADMMAlpha,
	}
}

// admmState holds the stacked operator M = [A; C; I] of one problem.
type admmState struct {
	p      *Problem
	n      int
	mA, mC int
	// band is the bandwidth of P + MᵀM, or -1 when the system is factored densely.
	band int
}

func newADMMState(p *Problem) *admmState {
	s := &admmState{p: p, n: p.Dim(), mA: rows(p.A), mC: rows(p.C), band: symBandwidth(p.P)}
	if s.mA > 0 {
		s.band = max(s.band, GramBandwidth(p.A))
	}
	if s.mC > 0 {
		s.band = max(s.band, GramBandwidth(p.C))
	}
	if 2*(s.band+1) > s.n {
		s.band = -1
	}
	return s
}

func (s *admmState) m() int {
	return s.mA + s.mC + s.n
}

// mul computes M d.
func (s *admmState) mul(d []float64) []float64 {
	out := make([]float64, s.m())
	dv := mat.NewVecDense(s.n, d)
	if s.mA > 0 {
		mat.NewVecDense(s.mA, out[:s.mA]).MulVec(s.p.A, dv)
	}
	if s.mC > 0 {
		mat.NewVecDense(s.mC, out[s.mA:s.mA+s.mC]).MulVec(s.p.C, dv)
	}
	copy(out[s.mA+s.mC:], d)
	return out
}

// mulT computes Mᵀ v.
func (s *admmState) mulT(v []float64) []float64 {
	out := make([]float64, s.n)
	copy(out, v[s.mA+s.mC:])
	tmp := mat.NewVecDense(s.n, nil)
	if s.mA > 0 {
		tmp.MulVec(s.p.A.T(), mat.NewVecDense(s.mA, v[:s.mA]))
		floats.Add(out, tmp.RawVector().Data)
	}
	if s.mC > 0 {
		tmp.MulVec(s.p.C.T(), mat.NewVecDense(s.mC, v[s.mA:s.mA+s.mC]))
		floats.Add(out, tmp.RawVector().Data)
	}
	return out
}

// linearSolver is a factored P + sigma I + rho MᵀM.
type linearSolver interface {
	SolveVecTo(dst *mat.VecDense, b mat.Vector) error
}

// factor builds and factors P + sigma I + rho MᵀM, keeping it banded when the problem allows.
func (s *admmState) factor(sigma, rho float64) (linearSolver, error) {
	if s.band >= 0 {
		return s.factorBand(sigma, rho)
	}
	k := mat.NewSymDense(s.n, nil)
	for i := 0; i < s.n; i++ {
		for j := i; j < s.n; j++ {
			k.SetSym(i, j, s.p.P.At(i, j))
		}
		k.SetSym(i, i, k.At(i, i)+sigma+rho)
	}
	if s.mA > 0 {
		var ata mat.SymDense
		ata.SymOuterK(rho, s.p.A.T())
		k.AddSym(k, &ata)
	}
	if s.mC > 0 {
		var ctc mat.SymDense
		ctc.SymOuterK(rho, s.p.C.T())
		k.AddSym(k, &ctc)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return nil, errors.New("subproblem matrix is not positive definite")
	}
	return &chol, nil
}

func (s *admmState) factorBand(sigma, rho float64) (linearSolver, error) {
	k := mat.NewSymBandDense(s.n, s.band, nil)
	for i := 0; i < s.n; i++ {
		for j := i; j <= i+s.band && j < s.n; j++ {
			if v := s.p.P.At(i, j); v != 0 {
				k.SetSymBand(i, j, v)
			}
		}
		k.SetSymBand(i, i, k.At(i, i)+sigma+rho)
	}
	AddGram(k, s.p.A, rho)
	AddGram(k, s.p.C, rho)
	var chol mat.BandCholesky
	if ok := chol.Factorize(k); !ok {
		return nil, errors.New("subproblem matrix is not positive definite")
	}
	return &chol, nil
}

// project applies the proximal operator of the penalties and the box indicator, scaled by 1/rho, in place.
func (s *admmState) project(w []float64, rho float64) {
	p := s.p
	for i := 0; i < s.mA; i++ {
		v := w[i] + p.B[i]
		thresh := p.WA[i] / rho
		switch {
		case v > thresh:
			v -= thresh
		case v < -thresh:
			v += thresh
		default:
			v = 0
		}
		w[i] = v - p.B[i]
	}
	for k := 0; k < s.mC; k++ {
		idx := s.mA + k
		v := w[idx] + p.E[k]
		thresh := p.WC[k] / rho
		switch {
		case v > thresh:
			v -= thresh
		case v >= 0:
			v = 0
		}
		w[idx] = v - p.E[k]
	}
	for j := 0; j < s.n; j++ {
		idx := s.mA + s.mC + j
		w[idx] = utils.Clamp(w[idx], p.Lower[j], p.Upper[j])
	}
}

func normInf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, math.Inf(1))
}

// Solve runs ADMM until the residual tolerances are met or the iteration cap is hit.
func (a *ADMM) Solve(p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := newADMMState(p)
	n, m := s.n, s.m()

	rho := a.Rho
	chol, err := s.factor(a.Sigma, rho)
	if err != nil {
		return nil, err
	}

	x := make([]float64, n)
	z := s.mul(x)
	s.project(z, rho)
	u := make([]float64, m)

	xv := mat.NewVecDense(n, x)
	rhs := make([]float64, n)
	rhsv := mat.NewVecDense(n, rhs)
	px := mat.NewVecDense(n, nil)
	zPrev := make([]float64, m)
	converged := false
	iter := 0
	for iter < a.MaxIterations {
		iter++
		// x update: (P + sigma I + rho MᵀM) x = sigma x - q + rho Mᵀ(z - u)
		diff := make([]float64, m)
		floats.SubTo(diff, z, u)
		mtd := s.mulT(diff)
		for i := range rhs {
			rhs[i] = a.Sigma*x[i] - p.Q[i] + rho*mtd[i]
		}
		if err := chol.SolveVecTo(xv, rhsv); err != nil {
			return nil, errors.Wrap(err, "admm linear solve")
		}

		// z update with over-relaxation
		mx := s.mul(x)
		copy(zPrev, z)
		relaxed := make([]float64, m)
		for i := range relaxed {
			relaxed[i] = a.Alpha*mx[i] + (1-a.Alpha)*zPrev[i]
			z[i] = relaxed[i] + u[i]
		}
		s.project(z, rho)

		// scaled dual update
		for i := range u {
			u[i] += relaxed[i] - z[i]
		}

		if iter%admmCheckEvery != 0 && iter != a.MaxIterations {
			continue
		}

		primal := make([]float64, m)
		floats.SubTo(primal, mx, z)
		rPrim := normInf(primal)

		// dual residual Px + q + Mᵀy with y = rho u
		px.MulVec(p.P, xv)
		y := make([]float64, m)
		floats.ScaleTo(y, rho, u)
		mty := s.mulT(y)
		dual := make([]float64, n)
		for i := range dual {
			dual[i] = px.AtVec(i) + p.Q[i] + mty[i]
		}
		rDual := normInf(dual)

		primScale := math.Max(normInf(mx), normInf(z))
		dualScale := math.Max(math.Max(normInf(px.RawVector().Data), normInf(p.Q)), normInf(mty))
		if rPrim <= a.AbsTol+a.RelTol*primScale && rDual <= a.AbsTol+a.RelTol*dualScale {
			converged = true
			break
		}

		// rebalance rho when the residuals drift apart
		if primScale > 0 && dualScale > 0 && rDual > 0 {
			ratio := math.Sqrt((rPrim / primScale) / (rDual / dualScale))
			newRho := utils.Clamp(rho*ratio, admmRhoMin, admmRhoMax)
			if newRho > rho*admmRhoAdaptFactor || newRho < rho/admmRhoAdaptFactor {
				newChol, err := s.factor(a.Sigma, newRho)
				if err != nil {
					return nil, err
				}
				floats.Scale(rho/newRho, u)
				rho = newRho
				chol = newChol
			}
		}
	}

	// the box block of z is feasible by construction
	out := make([]float64, n)
	copy(out, z[s.mA+s.mC:])
	sol := &Solution{X: out, Objective: p.Objective(out), Iterations: iter, Converged: converged}

	// never return something worse than not moving
	zero := make([]float64, n)
	if p.InBox(zero) {
		if zeroObj := p.Objective(zero); zeroObj < sol.Objective {
			sol.X = zero
			sol.Objective = zeroObj
		}
	}
	return sol, nil
}
