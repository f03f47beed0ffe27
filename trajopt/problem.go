package trajopt

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/trajopt/referenceframe"
	"go.viam.com/trajopt/trajectory"
)

// Problem is a trajectory optimization problem: an initial trajectory, the costs to minimize and the constraints
// to satisfy, over variables bounded by the joint limits of the model. A Problem is not modified by solving it.
type Problem struct {
	model       referenceframe.Model
	init        *trajectory.Trajectory
	costs       []Term
	constraints []Term
	lower       []float64
	upper       []float64
	fixed       []bool
	// options requested alongside the problem, nil when the request carried none.
	options *Options
}

// NewProblem checks the terms against their roles and replicates the joint limits of the model into per variable
// bounds. The initial trajectory must respect the joint limits.
func NewProblem(model referenceframe.Model, initTraj *trajectory.Trajectory, costs, constraints []Term) (*Problem, error) {
	limits := model.DoF()
	if initTraj.DoF() != len(limits) {
		return nil, referenceframe.NewIncorrectDoFError(initTraj.DoF(), len(limits))
	}
	var err error
	for _, c := range costs {
		if c.Kind() != KindCost {
			err = multierr.Append(err, errors.Errorf("term %q is a %v, not a cost", c.Name(), c.Kind()))
		}
		err = multierr.Append(err, checkEvaluable(c))
	}
	for _, c := range constraints {
		if c.Kind() == KindCost {
			err = multierr.Append(err, errors.Errorf("term %q is a cost, not a constraint", c.Name()))
		}
		if _, ok := c.(ResidualTerm); !ok {
			err = multierr.Append(err, errors.Errorf("constraint %q of type %T has no residual", c.Name(), c))
		}
	}
	if err != nil {
		return nil, err
	}

	n := initTraj.NSteps() * initTraj.DoF()
	p := &Problem{
		model:       model,
		init:        initTraj.Clone(),
		costs:       append([]Term(nil), costs...),
		constraints: append([]Term(nil), constraints...),
		lower:       make([]float64, n),
		upper:       make([]float64, n),
		fixed:       make([]bool, n),
	}
	for t := 0; t < initTraj.NSteps(); t++ {
		for j, lim := range limits {
			idx := initTraj.Index(t, j)
			p.lower[idx] = lim.Min
			p.upper[idx] = lim.Max
			p.fixed[idx] = t == 0 && initTraj.StartFixed()
			if v := initTraj.Value(t, j); v < lim.Min || v > lim.Max {
				return nil, errors.Errorf("initial trajectory joint %d at waypoint %d is %v, outside [%v, %v]",
					j, t, v, lim.Min, lim.Max)
			}
		}
	}
	return p, nil
}

func checkEvaluable(term Term) error {
	switch term.(type) {
	case QuadraticTerm, ResidualTerm:
		return nil
	}
	return errors.Errorf("cost %q of type %T is neither quadratic nor residual", term.Name(), term)
}

// Model returns the kinematic model the problem is posed over.
func (p *Problem) Model() referenceframe.Model {
	return p.model
}

// Init returns a copy of the initial trajectory.
func (p *Problem) Init() *trajectory.Trajectory {
	return p.init.Clone()
}

// Costs returns the cost terms.
func (p *Problem) Costs() []Term {
	return append([]Term(nil), p.costs...)
}

// Constraints returns the constraint terms.
func (p *Problem) Constraints() []Term {
	return append([]Term(nil), p.constraints...)
}

// Options returns the solver options that came with the problem, or the defaults.
func (p *Problem) Options() *Options {
	if p.options == nil {
		return NewDefaultOptions()
	}
	o := *p.options
	return &o
}

// Dim returns the number of decision variables.
func (p *Problem) Dim() int {
	return len(p.lower)
}

// termEval holds one term's evaluation at a trajectory. jac is only set when linearizing.
type termEval struct {
	value    float64
	residual []float64
	jac      *mat.Dense
}

// evaluation holds every term's evaluation at one trajectory, costs first.
type evaluation struct {
	costs       []termEval
	constraints []termEval
}

// evaluate computes all terms at traj, in parallel. Each term writes only its own slot.
func (p *Problem) evaluate(ctx context.Context, traj *trajectory.Trajectory, linearize bool, threads int) (*evaluation, error) {
	ev := &evaluation{
		costs:       make([]termEval, len(p.costs)),
		constraints: make([]termEval, len(p.constraints)),
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	schedule := func(term Term, slot *termEval) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("evaluating %q panicked: %v", term.Name(), r)
				}
			}()
			out, err := evaluateTerm(term, traj, linearize)
			if err != nil {
				return errors.Wrapf(err, "evaluating %q", term.Name())
			}
			*slot = out
			return nil
		})
	}
	for i, c := range p.costs {
		schedule(c, &ev.costs[i])
	}
	for i, c := range p.constraints {
		schedule(c, &ev.constraints[i])
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ev, nil
}

func evaluateTerm(term Term, traj *trajectory.Trajectory, linearize bool) (termEval, error) {
	switch t := term.(type) {
	case QuadraticTerm:
		return termEval{value: quadraticValue(t.Hessian(), traj.Flatten())}, nil
	case ResidualTerm:
		var out termEval
		var err error
		if linearize {
			out.residual, out.jac, err = t.Linearize(traj)
		} else {
			out.residual, err = t.Residual(traj)
		}
		if err != nil {
			return termEval{}, err
		}
		out.value = penaltyValue(t.Kind(), t.Penalty(), out.residual)
		return out, nil
	}
	return termEval{}, errors.Errorf("term %q of type %T cannot be evaluated", term.Name(), term)
}

func (ev *evaluation) cost() float64 {
	total := 0.
	for _, c := range ev.costs {
		total += c.value
	}
	return total
}

func (ev *evaluation) violation() float64 {
	total := 0.
	for _, c := range ev.constraints {
		total += c.value
	}
	return total
}

// maxViolation is the largest violation of any single constraint.
func (ev *evaluation) maxViolation() float64 {
	largest := 0.
	for _, c := range ev.constraints {
		largest = math.Max(largest, c.value)
	}
	return largest
}

// merit is the exact penalty function cost + mu * violation.
func (ev *evaluation) merit(mu float64) float64 {
	return ev.cost() + mu*ev.violation()
}
