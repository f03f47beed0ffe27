package trajopt

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/trajopt/qp"
	"go.viam.com/trajopt/utils"
)

// default values for solver options.
const (
	// Number of convexifications before giving up.
	defaultMaxIter = 1000

	// Accept a step if the true improvement is at least this fraction of the predicted improvement.
	defaultImproveRatioThreshold = 0.25

	// The trust region has converged once it is smaller than this.
	defaultMinTrustBoxSize = 1e-4

	// Stop convexifying when the model predicts less improvement than this, absolutely or relative to the merit.
	defaultMinApproxImprove     = 1e-4
	defaultMinApproxImproveFrac = 1e-3

	defaultTrustShrinkRatio = 0.1
	defaultTrustExpandRatio = 1.5
	defaultTrustBoxSize     = 0.1

	// Constraints are satisfied when no constraint is violated by more than this.
	defaultCntTolerance = 1e-4

	// Initial weight of constraint violations in the merit function, and how it grows.
	defaultMeritErrorCoeff         = 10
	defaultMeritCoeffIncreaseRatio = 10
	defaultMaxMeritCoeffIncreases  = 5

	// QPSolverADMM is the pure Go subproblem solver.
	QPSolverADMM = "admm"
	// QPSolverNlopt solves subproblems with nlopt's SLSQP. It needs a cgo build.
	QPSolverNlopt = "nlopt"
)

// NewDefaultOptions returns the default solver settings.
func NewDefaultOptions() *Options {
	admm := qp.NewADMM()
	return &Options{
		MaxIter:                 defaultMaxIter,
		ImproveRatioThreshold:   defaultImproveRatioThreshold,
		MinTrustBoxSize:         defaultMinTrustBoxSize,
		MinApproxImprove:        defaultMinApproxImprove,
		MinApproxImproveFrac:    defaultMinApproxImproveFrac,
		TrustShrinkRatio:        defaultTrustShrinkRatio,
		TrustExpandRatio:        defaultTrustExpandRatio,
		TrustBoxSize:            defaultTrustBoxSize,
		CntTolerance:            defaultCntTolerance,
		MeritErrorCoeff:         defaultMeritErrorCoeff,
		MeritCoeffIncreaseRatio: defaultMeritCoeffIncreaseRatio,
		MaxMeritCoeffIncreases:  defaultMaxMeritCoeffIncreases,
		QPSolver:                QPSolverADMM,
		ADMMMaxIterations:       admm.MaxIterations,
	}
}

// Options control the sequential convex solver.
type Options struct {
	// Maximum number of convexifications across all penalty levels.
	MaxIter int `json:"max_iter"`

	ImproveRatioThreshold float64 `json:"improve_ratio_threshold"`
	MinTrustBoxSize       float64 `json:"min_trust_box_size"`
	MinApproxImprove      float64 `json:"min_approx_improve"`
	MinApproxImproveFrac  float64 `json:"min_approx_improve_frac"`
	TrustShrinkRatio      float64 `json:"trust_shrink_ratio"`
	TrustExpandRatio      float64 `json:"trust_expand_ratio"`

	// Initial half-width of the trust box, in joint units.
	TrustBoxSize float64 `json:"trust_box_size"`

	CntTolerance float64 `json:"cnt_tolerance"`

	// Penalty on constraint violation in the merit function, grown after each trust region convergence that leaves
	// constraints violated.
	MeritErrorCoeff         float64 `json:"merit_error_coeff"`
	MeritCoeffIncreaseRatio float64 `json:"merit_coeff_increase_ratio"`
	MaxMeritCoeffIncreases  int     `json:"max_merit_coeff_increases"`

	// Subproblem solver, "admm" or "nlopt".
	QPSolver          string `json:"qp_solver"`
	ADMMMaxIterations int    `json:"admm_max_iterations"`

	// Number of goroutines evaluating terms. Zero uses utils.ParallelFactor.
	NumThreads int `json:"num_threads"`
}

// NewOptionsFromMap returns default settings updated by the given overrides, typically the "solver" block of a
// request. Unknown keys are rejected.
func NewOptionsFromMap(extra map[string]interface{}) (*Options, error) {
	opt := NewDefaultOptions()
	if len(extra) == 0 {
		return opt, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           opt,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(extra); err != nil {
		return nil, err
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return opt, nil
}

// Validate checks that the settings describe a terminating solver.
func (o *Options) Validate() error {
	var err error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			err = multierr.Append(err, errors.Errorf(format, args...))
		}
	}
	check(o.MaxIter > 0, "max_iter must be positive, got %d", o.MaxIter)
	check(o.ImproveRatioThreshold > 0 && o.ImproveRatioThreshold < 1,
		"improve_ratio_threshold must be in (0, 1), got %v", o.ImproveRatioThreshold)
	check(o.MinTrustBoxSize > 0, "min_trust_box_size must be positive, got %v", o.MinTrustBoxSize)
	check(o.MinApproxImprove >= 0, "min_approx_improve can't be negative, got %v", o.MinApproxImprove)
	check(o.MinApproxImproveFrac >= 0, "min_approx_improve_frac can't be negative, got %v", o.MinApproxImproveFrac)
	check(o.TrustShrinkRatio > 0 && o.TrustShrinkRatio < 1,
		"trust_shrink_ratio must be in (0, 1), got %v", o.TrustShrinkRatio)
	check(o.TrustExpandRatio >= 1, "trust_expand_ratio must be at least 1, got %v", o.TrustExpandRatio)
	check(o.TrustBoxSize >= o.MinTrustBoxSize, "trust_box_size must be at least min_trust_box_size, got %v", o.TrustBoxSize)
	check(o.CntTolerance > 0, "cnt_tolerance must be positive, got %v", o.CntTolerance)
	check(o.MeritErrorCoeff > 0, "merit_error_coeff must be positive, got %v", o.MeritErrorCoeff)
	check(o.MeritCoeffIncreaseRatio > 1, "merit_coeff_increase_ratio must exceed 1, got %v", o.MeritCoeffIncreaseRatio)
	check(o.MaxMeritCoeffIncreases >= 0, "max_merit_coeff_increases can't be negative, got %d", o.MaxMeritCoeffIncreases)
	check(o.QPSolver == QPSolverADMM || o.QPSolver == QPSolverNlopt, "unknown qp_solver %q", o.QPSolver)
	check(o.ADMMMaxIterations > 0, "admm_max_iterations must be positive, got %d", o.ADMMMaxIterations)
	check(o.NumThreads >= 0, "num_threads can't be negative, got %d", o.NumThreads)
	return err
}

func (o *Options) newQPSolver() (qp.Solver, error) {
	switch o.QPSolver {
	case QPSolverNlopt:
		return qp.NewNloptSolver()
	case QPSolverADMM:
		admm := qp.NewADMM()
		admm.MaxIterations = o.ADMMMaxIterations
		return admm, nil
	}
	return nil, errors.Errorf("unknown qp_solver %q", o.QPSolver)
}

func (o *Options) numThreads() int {
	if o.NumThreads > 0 {
		return o.NumThreads
	}
	return utils.ParallelFactor
}
