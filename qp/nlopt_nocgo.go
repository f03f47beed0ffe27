//go:build windows || no_cgo

package qp

import "github.com/pkg/errors"

// NloptSolver mimics the type in the cgo compiled code.
type NloptSolver struct {
	MaxEval int
	Tol     float64
}

// NewNloptSolver is not supported on no_cgo builds.
func NewNloptSolver() (*NloptSolver, error) {
	return nil, errors.New("nlopt is not supported on this build")
}

// Solve refuses to solve problems without cgo.
func (ns *NloptSolver) Solve(p *Problem) (*Solution, error) {
	return nil, errors.New("cannot solve without cgo")
}
