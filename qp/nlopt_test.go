//go:build !windows && !no_cgo

package qp

import (
	"testing"

	"go.viam.com/test"
)

func TestNloptClosedForm(t *testing.T) {
	solver, err := NewNloptSolver()
	test.That(t, err, test.ShouldBeNil)
	for _, tc := range closedFormProblems() {
		t.Run(tc.name, func(t *testing.T) {
			sol, err := solver.Solve(tc.p)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, tc.p.InBox(sol.X), test.ShouldBeTrue)
			for i, v := range tc.want {
				test.That(t, sol.X[i], test.ShouldAlmostEqual, v, 1e-4)
			}
		})
	}
}
