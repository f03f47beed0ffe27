package trajopt

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/trajopt/qp"
)

// convexModel is the local convex model of the merit function around x, less the trust region.
type convexModel struct {
	qp *qp.Problem
	// base is the model value of the zero step, equal to the exact merit at x.
	base float64
}

// rowBlock collects rows of Jacobians with their offsets and weights before stacking them into one matrix.
type rowBlock struct {
	jacs    []*mat.Dense
	offsets []float64
	weights []float64
	rows    int
}

func (b *rowBlock) add(jac *mat.Dense, residual []float64, weight float64) {
	if len(residual) == 0 {
		return
	}
	b.jacs = append(b.jacs, jac)
	b.offsets = append(b.offsets, residual...)
	for range residual {
		b.weights = append(b.weights, weight)
	}
	b.rows += len(residual)
}

func (b *rowBlock) stack(n int) *mat.Dense {
	if b.rows == 0 {
		return nil
	}
	out := mat.NewDense(b.rows, n, nil)
	row := 0
	for _, j := range b.jacs {
		r, _ := j.Dims()
		out.Slice(row, row+r, 0, n).(*mat.Dense).Copy(j)
		row += r
	}
	return out
}

// convexify builds the model
//
//	½dᵀPd + qᵀd + Σ w|a·d + b| + Σ w·max(0, c·d + e)
//
// from a linearized evaluation at x. Squared costs enter through Gauss-Newton, quadratic costs exactly, abs costs
// and constraints as absolute value and hinge rows. Constraint rows are weighted by mu.
func (p *Problem) convexify(x []float64, ev *evaluation, mu float64) *convexModel {
	n := len(x)
	hess := mat.NewSymBandDense(n, p.hessianBandwidth(ev), nil)
	grad := mat.NewVecDense(n, nil)
	var abs, hinge rowBlock

	xv := mat.NewVecDense(n, x)
	for i, term := range p.costs {
		e := ev.costs[i]
		switch t := term.(type) {
		case QuadraticTerm:
			h := t.Hessian()
			addSymBand(hess, h, 2)
			var hx mat.VecDense
			hx.MulVec(h, xv)
			grad.AddScaledVec(grad, 2, &hx)
		case ResidualTerm:
			if len(e.residual) == 0 {
				continue
			}
			if t.Penalty() == Squared {
				qp.AddGram(hess, e.jac, 2)
				var jr mat.VecDense
				jr.MulVec(e.jac.T(), mat.NewVecDense(len(e.residual), e.residual))
				grad.AddScaledVec(grad, 2, &jr)
			} else {
				abs.add(e.jac, e.residual, 1)
			}
		}
	}
	for i, term := range p.constraints {
		e := ev.constraints[i]
		if term.Kind() == KindEquality {
			abs.add(e.jac, e.residual, mu)
		} else {
			hinge.add(e.jac, e.residual, mu)
		}
	}

	prob := &qp.Problem{
		P:     hess,
		Q:     grad.RawVector().Data,
		A:     abs.stack(n),
		B:     abs.offsets,
		WA:    abs.weights,
		C:     hinge.stack(n),
		E:     hinge.offsets,
		WC:    hinge.weights,
		Lower: make([]float64, n),
		Upper: make([]float64, n),
	}
	return &convexModel{qp: prob, base: ev.merit(mu)}
}

// hessianBandwidth is the widest coupling between variables in the quadratic part of the model: the band of the
// quadratic costs and the row spans of the squared residual Jacobians.
func (p *Problem) hessianBandwidth(ev *evaluation) int {
	k := 0
	for i, term := range p.costs {
		switch t := term.(type) {
		case QuadraticTerm:
			_, hk := t.Hessian().SymBand()
			k = max(k, hk)
		case ResidualTerm:
			if e := ev.costs[i]; len(e.residual) > 0 && t.Penalty() == Squared {
				k = max(k, qp.GramBandwidth(e.jac))
			}
		}
	}
	return k
}

func addSymBand(dst, band *mat.SymBandDense, scale float64) {
	n, k := band.SymBand()
	for i := 0; i < n; i++ {
		for j := i; j <= i+k && j < n; j++ {
			if v := band.At(i, j); v != 0 {
				dst.SetSymBand(i, j, dst.At(i, j)+scale*v)
			}
		}
	}
}

// setTrustRegion bounds the step by the trust radius and the variable bounds. Fixed variables are pinned at zero.
func (m *convexModel) setTrustRegion(x []float64, radius float64, p *Problem) {
	for i := range x {
		if p.fixed[i] {
			m.qp.Lower[i], m.qp.Upper[i] = 0, 0
			continue
		}
		lo := math.Max(-radius, p.lower[i]-x[i])
		hi := math.Min(radius, p.upper[i]-x[i])
		if lo > hi {
			lo = hi
		}
		m.qp.Lower[i], m.qp.Upper[i] = lo, hi
	}
}

// predictedImprovement is how much the model says the merit drops when taking step d.
func (m *convexModel) predictedImprovement(d []float64) float64 {
	return m.qp.Objective(make([]float64, len(d))) - m.qp.Objective(d)
}

// step applies d to x, keeping fixed variables untouched and every variable inside its bounds.
func (p *Problem) step(x, d []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if p.fixed[i] {
			out[i] = x[i]
			continue
		}
		out[i] = math.Min(p.upper[i], math.Max(p.lower[i], x[i]+d[i]))
	}
	return out
}
