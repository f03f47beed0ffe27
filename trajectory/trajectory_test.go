package trajectory

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"go.viam.com/trajopt/referenceframe"
	"go.viam.com/trajopt/spatialmath"
	"go.viam.com/trajopt/utils"
)

func inputs(vals ...float64) []referenceframe.Input {
	return referenceframe.FloatsToInputs(vals)
}

func TestFlattenRoundTrip(t *testing.T) {
	for _, fixed := range []bool{true, false} {
		traj, err := StraightLine(inputs(0, 1, -2), inputs(3, -1, 2), 7, fixed)
		test.That(t, err, test.ShouldBeNil)

		back, err := Unflatten(traj.Flatten(), traj.NSteps(), traj.DoF(), traj.StartFixed())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Equal(traj), test.ShouldBeTrue)
		test.That(t, cmp.Diff(back.Waypoints(), traj.Waypoints()), test.ShouldBeEmpty)
	}

	_, err := Unflatten([]float64{1, 2, 3}, 2, 2, false)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Unflatten(nil, 0, 2, false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestInitPolicies(t *testing.T) {
	start := inputs(0.5, -0.5)
	stationary, err := Stationary(start, 4, true)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 4; i++ {
		test.That(t, stationary.Waypoint(i), test.ShouldResemble, start)
	}
	test.That(t, stationary.MaxJointStep(), test.ShouldEqual, 0.)

	line, err := StraightLine(inputs(0, 0), inputs(3, -6), 4, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line.Waypoint(0), test.ShouldResemble, inputs(0, 0))
	test.That(t, line.Value(1, 0), test.ShouldAlmostEqual, 1.)
	test.That(t, line.Value(1, 1), test.ShouldAlmostEqual, -2.)
	test.That(t, line.Waypoint(3), test.ShouldResemble, inputs(3, -6))
	test.That(t, line.MaxJointStep(), test.ShouldAlmostEqual, 2.)
	test.That(t, line.EvaluateCost(referenceframe.InputsL2Distance), test.ShouldAlmostEqual, 3*math.Sqrt(5))

	_, err = StraightLine(inputs(0, 0), inputs(1), 4, false)
	test.That(t, err, test.ShouldNotBeNil)

	single, err := StraightLine(inputs(1), inputs(2), 1, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, single.Waypoint(0), test.ShouldResemble, inputs(1))

	given, err := FromWaypoints([][]referenceframe.Input{inputs(1, 2), inputs(3, 4)}, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, given.NSteps(), test.ShouldEqual, 2)
	test.That(t, given.Index(1, 1), test.ShouldEqual, 3)
	test.That(t, given.Value(1, 0), test.ShouldEqual, 3.)

	_, err = FromWaypoints([][]referenceframe.Input{inputs(1, 2), inputs(3)}, true)
	var dimErr *referenceframe.DimensionMismatchError
	test.That(t, errors.As(err, &dimErr), test.ShouldBeTrue)
	_, err = FromWaypoints(nil, true)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFixedWaypoint(t *testing.T) {
	traj, err := Stationary(inputs(1, 2), 3, true)
	test.That(t, err, test.ShouldBeNil)

	err = traj.SetWaypoint(0, inputs(0, 0))
	var fixedErr *FixedWaypointError
	test.That(t, errors.As(err, &fixedErr), test.ShouldBeTrue)
	test.That(t, fixedErr.Step, test.ShouldEqual, 0)

	test.That(t, traj.SetWaypoint(2, inputs(5, 6)), test.ShouldBeNil)
	test.That(t, traj.Waypoint(2), test.ShouldResemble, inputs(5, 6))
	test.That(t, traj.SetWaypoint(3, inputs(5, 6)), test.ShouldNotBeNil)
	test.That(t, traj.SetWaypoint(1, inputs(5)), test.ShouldNotBeNil)

	vec := traj.Flatten()
	vec[0] = 9
	test.That(t, errors.As(traj.Update(vec), &fixedErr), test.ShouldBeTrue)
	test.That(t, traj.Waypoint(0), test.ShouldResemble, inputs(1, 2))

	vec[0] = 1
	vec[5] = -1
	test.That(t, traj.Update(vec), test.ShouldBeNil)
	test.That(t, traj.Value(2, 1), test.ShouldEqual, -1.)

	// handed out waypoints never alias the trajectory
	wp := traj.Waypoint(0)
	wp[0].Value = 100
	test.That(t, traj.Value(0, 0), test.ShouldEqual, 1.)

	free, err := Stationary(inputs(1, 2), 3, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, free.SetWaypoint(0, inputs(0, 0)), test.ShouldBeNil)
}

func TestInterpolate(t *testing.T) {
	from, err := Stationary(inputs(0, 0), 3, true)
	test.That(t, err, test.ShouldBeNil)
	to, err := Stationary(inputs(2, 4), 3, false)
	test.That(t, err, test.ShouldBeNil)

	mid, err := Interpolate(from, to, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mid.StartFixed(), test.ShouldBeTrue)
	test.That(t, mid.Waypoint(0), test.ShouldResemble, inputs(0, 0))
	test.That(t, mid.Waypoint(2), test.ShouldResemble, inputs(1, 2))

	other, err := Stationary(inputs(2, 4), 4, false)
	test.That(t, err, test.ShouldBeNil)
	_, err = Interpolate(from, other, 0.5)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPath(t *testing.T) {
	robot, err := referenceframe.ParseRobotJSONFile(utils.ResolveFile("data/three_links.json"))
	test.That(t, err, test.ShouldBeNil)
	arm, err := robot.Manipulator("arm")
	test.That(t, err, test.ShouldBeNil)

	traj, err := StraightLine(inputs(0, 0, 0), inputs(math.Pi/2, 0, 0), 3, true)
	test.That(t, err, test.ShouldBeNil)
	path, err := traj.Path(arm, "Finger")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldHaveLength, 3)
	test.That(t, spatialmath.R3VectorAlmostEqual(path[2].Point(), r3.Vector{Y: 2.3}, 1e-9), test.ShouldBeTrue)

	_, err = traj.Path(arm, "Thumb")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, traj.String(), test.ShouldContainSubstring, "2: [")
}
