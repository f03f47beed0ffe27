package trajopt

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/trajopt/referenceframe"
	"go.viam.com/trajopt/spatialmath"
	"go.viam.com/trajopt/trajectory"
	"go.viam.com/trajopt/utils"
)

func loadTestRobot(t *testing.T) *referenceframe.Robot {
	t.Helper()
	robot, err := referenceframe.ParseRobotJSONFile(utils.ResolveFile("data/three_links.json"))
	test.That(t, err, test.ShouldBeNil)
	return robot
}

func loadManipulator(t *testing.T, name string) referenceframe.Model {
	t.Helper()
	m, err := loadTestRobot(t).Manipulator(name)
	test.That(t, err, test.ShouldBeNil)
	return m
}

// randomTrajectory draws every joint uniformly in [-spread, spread].
func randomTrajectory(t *testing.T, rng *rand.Rand, nSteps, dof int, spread float64) *trajectory.Trajectory {
	t.Helper()
	vec := make([]float64, nSteps*dof)
	for i := range vec {
		vec[i] = spread * (2*rng.Float64() - 1)
	}
	traj, err := trajectory.Unflatten(vec, nSteps, dof, false)
	test.That(t, err, test.ShouldBeNil)
	return traj
}

func numericJacobian(t *testing.T, term ResidualTerm, traj *trajectory.Trajectory) *mat.Dense {
	t.Helper()
	x := traj.Flatten()
	r, err := term.Residual(traj)
	test.That(t, err, test.ShouldBeNil)
	jac := mat.NewDense(len(r), len(x), nil)
	fd.Jacobian(jac, func(y, x []float64) {
		tr, err := trajectory.Unflatten(x, traj.NSteps(), traj.DoF(), false)
		if err != nil {
			panic(err)
		}
		res, err := term.Residual(tr)
		if err != nil {
			panic(err)
		}
		copy(y, res)
	}, x, &fd.JacobianSettings{Formula: fd.Central, Step: 1e-6})
	return jac
}

func checkLinearization(t *testing.T, term ResidualTerm, traj *trajectory.Trajectory) {
	t.Helper()
	r, jac, err := term.Linearize(traj)
	test.That(t, err, test.ShouldBeNil)
	r2, err := term.Residual(traj)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, r2)
	test.That(t, mat.EqualApprox(jac, numericJacobian(t, term, traj), 1e-5), test.ShouldBeTrue)
}

func TestJointVelocityHessian(t *testing.T) {
	const nSteps, dof = 5, 3
	coeffs := []float64{1, 2, 0.5}
	jv, err := NewJointVelocity("smooth", coeffs, nSteps, dof)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, jv.Kind(), test.ShouldEqual, KindCost)

	n, k := jv.Hessian().SymBand()
	test.That(t, n, test.ShouldEqual, nSteps*dof)
	test.That(t, k, test.ShouldEqual, dof)

	//nolint:gosec
	rng := rand.New(rand.NewSource(1))
	traj := randomTrajectory(t, rng, nSteps, dof, 1)
	direct := 0.
	for s := 0; s+1 < nSteps; s++ {
		for j := 0; j < dof; j++ {
			d := traj.Value(s+1, j) - traj.Value(s, j)
			direct += coeffs[j] * d * d
		}
	}
	val, err := Value(jv, traj)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, val, test.ShouldAlmostEqual, direct, 1e-9)

	// a stationary trajectory costs nothing
	still, err := trajectory.Stationary(referenceframe.FloatsToInputs([]float64{0.3, -1, 2}), nSteps, true)
	test.That(t, err, test.ShouldBeNil)
	val, err = Value(jv, still)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, val, test.ShouldAlmostEqual, 0, 1e-12)

	single, err := NewJointVelocity("smooth", []float64{1}, 1, dof)
	test.That(t, err, test.ShouldBeNil)
	_, k = single.Hessian().SymBand()
	test.That(t, k, test.ShouldEqual, dof-1)
}

func TestCoefficients(t *testing.T) {
	jv, err := NewJointVelocity("smooth", []float64{2}, 3, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, jv.Coefficients(), test.ShouldResemble, []float64{2, 2, 2, 2})

	_, err = NewJointVelocity("smooth", []float64{1, 2}, 3, 4)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewJointVelocity("smooth", []float64{1, -2, 1, 1}, 3, 4)
	var coeffErr *InvalidCoefficientError
	test.That(t, errors.As(err, &coeffErr), test.ShouldBeTrue)
	test.That(t, coeffErr.Term, test.ShouldEqual, "smooth")
	test.That(t, coeffErr.Index, test.ShouldEqual, 1)
	test.That(t, coeffErr.Value, test.ShouldEqual, -2.)

	_, err = NewJointVelocity("smooth", []float64{math.NaN()}, 3, 4)
	test.That(t, errors.As(err, &coeffErr), test.ShouldBeTrue)
}

func TestJointTerms(t *testing.T) {
	const nSteps, dof = 4, 3
	//nolint:gosec
	rng := rand.New(rand.NewSource(2))
	traj := randomTrajectory(t, rng, nSteps, dof, 1)

	jp, err := NewJointPosition("home", []float64{0.1, 0.2, 0.3}, []float64{4}, 2, nSteps, dof)
	test.That(t, err, test.ShouldBeNil)
	checkLinearization(t, jp, traj)
	val, err := Value(jp, traj)
	test.That(t, err, test.ShouldBeNil)
	expected := 0.
	for j, v := range []float64{0.1, 0.2, 0.3} {
		d := traj.Value(2, j) - v
		expected += 4 * d * d
	}
	test.That(t, val, test.ShouldAlmostEqual, expected, 1e-9)

	jt, err := NewJointTarget("goal", []float64{0, 0, 0}, []float64{1}, nSteps-1, nSteps, dof)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, jt.Kind(), test.ShouldEqual, KindEquality)
	checkLinearization(t, jt, traj)

	_, err = NewJointTarget("goal", []float64{0, 0}, []float64{1}, 0, nSteps, dof)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewJointTarget("goal", []float64{0, 0, 0}, []float64{1}, nSteps, nSteps, dof)
	test.That(t, err, test.ShouldNotBeNil)

	fixed, err := NewFixedDoF("fixed", []int{0, 2}, nSteps, dof)
	test.That(t, err, test.ShouldBeNil)
	checkLinearization(t, fixed, traj)
	r, err := fixed.Residual(traj)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(r), test.ShouldEqual, (nSteps-1)*2)
	test.That(t, r[0], test.ShouldAlmostEqual, traj.Value(1, 0)-traj.Value(0, 0))

	_, err = NewFixedDoF("fixed", []int{3}, nSteps, dof)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewFixedDoF("fixed", []int{1, 1}, nSteps, dof)
	test.That(t, err, test.ShouldNotBeNil)

	wrongShape := randomTrajectory(t, rng, nSteps+1, dof, 1)
	_, err = jp.Residual(wrongShape)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPoseMatch(t *testing.T) {
	arm := loadManipulator(t, "arm")
	target, err := spatialmath.NewPoseFromXYZWXYZ([]float64{1.8, 0.2, 0}, []float64{math.Sqrt2 / 2, 0, 0, math.Sqrt2 / 2})
	test.That(t, err, test.ShouldBeNil)

	pm, err := NewPoseMatch("final_pose", KindEquality, arm, "Finger", target, []float64{1}, []float64{1}, 2, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pm.Coefficients(), test.ShouldResemble, []float64{1, 1, 1, 1, 1, 1})

	// at zero the finger is at (2.3, 0, 0) pointing along +X
	zero, err := trajectory.Stationary(referenceframe.FloatsToInputs([]float64{0, 0, 0}), 3, true)
	test.That(t, err, test.ShouldBeNil)
	r, err := pm.Residual(zero)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r[0], test.ShouldAlmostEqual, -0.5, 1e-9)
	test.That(t, r[1], test.ShouldAlmostEqual, 0.2, 1e-9)
	test.That(t, r[2], test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, r[5], test.ShouldAlmostEqual, math.Pi/2, 1e-9)

	//nolint:gosec
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 5; trial++ {
		checkLinearization(t, pm, randomTrajectory(t, rng, 3, 3, 0.3))
	}

	weighted, err := NewPoseMatch("weighted", KindCost, arm, "Finger", target, []float64{1, 2, 3}, []float64{0.5}, 1, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, weighted.Penalty(), test.ShouldEqual, Abs)
	checkLinearization(t, weighted, randomTrajectory(t, rng, 3, 3, 0.3))

	slider := loadManipulator(t, "slider")
	toolTarget, err := spatialmath.NewPoseFromXYZWXYZ([]float64{0.1, 0.3, 0.4}, []float64{1, 0, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	toolMatch, err := NewPoseMatch("tool", KindEquality, slider, "tool", toolTarget, []float64{1}, []float64{1}, 0, 2)
	test.That(t, err, test.ShouldBeNil)
	for trial := 0; trial < 3; trial++ {
		checkLinearization(t, toolMatch, randomTrajectory(t, rng, 2, 2, 0.3))
	}

	_, err = NewPoseMatch("bad", KindEquality, arm, "Thumb", target, []float64{1}, []float64{1}, 0, 3)
	var linkErr *referenceframe.UnknownLinkError
	test.That(t, errors.As(err, &linkErr), test.ShouldBeTrue)

	_, err = NewPoseMatch("bad", KindEquality, arm, "Finger", target, []float64{1, -1, 1}, []float64{1}, 0, 3)
	var coeffErr *InvalidCoefficientError
	test.That(t, errors.As(err, &coeffErr), test.ShouldBeTrue)

	_, err = NewPoseMatch("bad", KindInequality, arm, "Finger", target, []float64{1}, []float64{1}, 0, 3)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCartesianVelocity(t *testing.T) {
	arm := loadManipulator(t, "arm")
	cv, err := NewCartesianVelocity("speed", arm, "Finger", 1, 3, 0.05, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cv.Kind(), test.ShouldEqual, KindInequality)

	//nolint:gosec
	rng := rand.New(rand.NewSource(4))
	traj := randomTrajectory(t, rng, 4, 3, 0.5)
	checkLinearization(t, cv, traj)

	r, err := cv.Residual(traj)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(r), test.ShouldEqual, 2*3*2)
	// both signs of each displacement are bounded
	test.That(t, r[0]+r[1], test.ShouldAlmostEqual, -0.1, 1e-12)

	still, err := trajectory.Stationary(referenceframe.FloatsToInputs([]float64{0.2, 0.1, 0}), 4, true)
	test.That(t, err, test.ShouldBeNil)
	val, err := Value(cv, still)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, val, test.ShouldEqual, 0.)

	empty, err := NewCartesianVelocity("none", arm, "Finger", 2, 2, 0.05, 4)
	test.That(t, err, test.ShouldBeNil)
	r, jac, err := empty.Linearize(traj)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldBeEmpty)
	test.That(t, jac.IsEmpty(), test.ShouldBeTrue)

	_, err = NewCartesianVelocity("bad", arm, "Finger", 3, 1, 0.05, 4)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewCartesianVelocity("bad", arm, "Finger", 0, 1, -1, 4)
	var coeffErr *InvalidCoefficientError
	test.That(t, errors.As(err, &coeffErr), test.ShouldBeTrue)
}
