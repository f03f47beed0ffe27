package trajopt

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/trajopt/logging"
	"go.viam.com/trajopt/trajectory"
	"go.viam.com/trajopt/utils"
)

// Status is the state of a solve.
type Status int

// Solver states. A finished solve is in one of the last three.
const (
	StatusInitializing Status = iota
	StatusIterating
	StatusConverged
	StatusMaxIterExceeded
	StatusDiverged
)

var statusNames = map[Status]string{
	StatusInitializing:    "Initializing",
	StatusIterating:       "Iterating",
	StatusConverged:       "Converged",
	StatusMaxIterExceeded: "MaxIterExceeded",
	StatusDiverged:        "Diverged",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, errors.Errorf("unknown status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for k, v := range statusNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return errors.Errorf("unknown status %q", string(text))
}

// IterationRecord describes one subproblem solve.
type IterationRecord struct {
	Iteration   int     `json:"iteration"`
	Penalty     float64 `json:"penalty"`
	TrustRadius float64 `json:"trust_radius"`
	// Merit is the exact merit at the point the model was built around.
	Merit        float64 `json:"merit"`
	ModelImprove float64 `json:"model_improve"`
	ExactImprove float64 `json:"exact_improve"`
	Ratio        float64 `json:"ratio"`
	Accepted     bool    `json:"accepted"`
	Violation    float64 `json:"violation"`
}

// solverState is everything a solve mutates. Each Solve call owns a fresh one.
type solverState struct {
	x              *trajectory.Trajectory
	eval           *evaluation
	mu             float64
	trust          float64
	iteration      int
	meritIncreases int
	status         Status
	history        []IterationRecord
}

// Solve runs sequential convex optimization with a trust region and an adaptive l1 penalty on the problem. A nil
// opts uses the options the problem was assembled with. Failing to converge is reported through the result's
// Status; errors are reserved for invalid options, failed evaluations and cancellation. A nil logger discards
// output.
func Solve(ctx context.Context, logger logging.Logger, prob *Problem, opts *Options) (*Result, error) {
	logger = orBlankLogger(logger)
	if opts == nil {
		opts = prob.Options()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	solver, err := opts.newQPSolver()
	if err != nil {
		return nil, err
	}
	threads := opts.numThreads()
	meta := NewSolveMeta()
	start := time.Now()
	defer meta.DeferTiming("Solve", start)

	id := uuid.New()
	logger = logger.Sublogger("solve")
	logger.Debugw("starting solve", "id", id.String(), "steps", prob.init.NSteps(), "dof", prob.init.DoF(),
		"costs", len(prob.costs), "constraints", len(prob.constraints), "qp_solver", opts.QPSolver)

	st := &solverState{
		x:      prob.init.Clone(),
		mu:     opts.MeritErrorCoeff,
		trust:  opts.TrustBoxSize,
		status: StatusInitializing,
	}

	evaluate := func(traj *trajectory.Trajectory, linearize bool) (*evaluation, error) {
		if linearize {
			defer meta.DeferTiming("linearize", time.Now())
		} else {
			defer meta.DeferTiming("evaluate", time.Now())
		}
		return prob.evaluate(ctx, traj, linearize, threads)
	}

	st.status = StatusIterating
penalty:
	for {
		trustConverged := false
		for !trustConverged {
			if st.iteration >= opts.MaxIter {
				st.status = StatusMaxIterExceeded
				break penalty
			}
			st.iteration++

			st.eval, err = evaluate(st.x, true)
			if err != nil {
				return nil, err
			}
			x := st.x.Flatten()
			model := prob.convexify(x, st.eval, st.mu)
			merit := model.base

			for {
				model.setTrustRegion(x, st.trust, prob)
				qpStart := time.Now()
				sol, err := solver.Solve(model.qp)
				meta.AddTiming("qpSolve", time.Since(qpStart))
				if err != nil {
					return nil, errors.Wrapf(err, "subproblem at iteration %d", st.iteration)
				}
				rec := IterationRecord{
					Iteration:    st.iteration,
					Penalty:      st.mu,
					TrustRadius:  st.trust,
					Merit:        merit,
					ModelImprove: model.predictedImprovement(sol.X),
					Violation:    st.eval.maxViolation(),
				}
				if rec.ModelImprove < -1e-5 {
					logger.Debugw("convex model got worse, subproblem solve was inexact",
						"id", id.String(), "iteration", st.iteration, "model_improve", rec.ModelImprove)
				}
				if rec.ModelImprove < opts.MinApproxImprove ||
					(merit > 0 && rec.ModelImprove/merit < opts.MinApproxImproveFrac) {
					st.history = append(st.history, rec)
					logger.Debugw("converged because improvement was small", "id", id.String(),
						"iteration", st.iteration, "model_improve", rec.ModelImprove)
					trustConverged = true
					break
				}

				candidate := st.x.Clone()
				if err := candidate.Update(prob.step(x, sol.X)); err != nil {
					return nil, err
				}
				candEval, err := evaluate(candidate, false)
				if err != nil {
					return nil, err
				}
				rec.ExactImprove = merit - candEval.merit(st.mu)
				rec.Ratio = rec.ExactImprove / rec.ModelImprove

				if rec.Ratio < opts.ImproveRatioThreshold {
					st.history = append(st.history, rec)
					st.trust *= opts.TrustShrinkRatio
					logger.Debugw("rejected step, shrinking trust region", "id", id.String(),
						"iteration", st.iteration, "ratio", rec.Ratio, "trust", st.trust)
					if st.trust < opts.MinTrustBoxSize {
						trustConverged = true
						break
					}
					continue
				}

				rec.Accepted = true
				st.history = append(st.history, rec)
				st.x = candidate
				st.eval = candEval
				st.trust *= opts.TrustExpandRatio
				logger.Debugw("accepted step", "id", id.String(), "iteration", st.iteration,
					"merit", candEval.merit(st.mu), "ratio", rec.Ratio, "trust", st.trust)
				break
			}

			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		// the latest evaluation is always at st.x
		viol := st.eval.maxViolation()
		if viol <= opts.CntTolerance {
			st.status = StatusConverged
			break
		}
		if st.meritIncreases >= opts.MaxMeritCoeffIncreases {
			st.status = StatusDiverged
			break
		}
		st.mu *= opts.MeritCoeffIncreaseRatio
		st.meritIncreases++
		st.trust = math.Max(st.trust, opts.MinTrustBoxSize/opts.TrustShrinkRatio*1.5)
		logger.Debugw("constraints still violated, increasing penalty", "id", id.String(),
			"violation", viol, "penalty", st.mu)
	}

	final, err := evaluate(st.x, false)
	if err != nil {
		return nil, err
	}
	meta.Duration = time.Since(start)
	res := newResult(id, prob, st, final)
	res.Meta = meta
	logger.Debugw("finished solve", "id", id.String(), "status", st.status.String(), "iterations", st.iteration,
		"violation", res.ConstraintViolation, "duration", meta.Duration)
	return res, nil
}

// SolveBatch solves independent problems concurrently, at most utils.ParallelFactor at a time. Every problem gets
// its own solver state; results are in the order of the problems. The first error, or panic, cancels the remaining
// solves. A nil logger discards output.
func SolveBatch(ctx context.Context, logger logging.Logger, problems []*Problem, opts *Options) ([]*Result, error) {
	logger = orBlankLogger(logger)
	results := make([]*Result, len(problems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(utils.ParallelFactor)
	for i, prob := range problems {
		i, prob := i, prob
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("problem %d: solve panicked: %v", i, r)
				}
			}()
			res, err := Solve(gctx, logger.Sublogger("batch"), prob, opts)
			if err != nil {
				return errors.Wrapf(err, "problem %d", i)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func orBlankLogger(logger logging.Logger) logging.Logger {
	if logger == nil {
		return logging.NewBlankLogger("trajopt")
	}
	return logger
}
