package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestAngleConversion(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90.)
	test.That(t, RadToDeg(DegToRad(-37.5)), test.ShouldAlmostEqual, -37.5)
}

func TestFloat64AlmostEqual(t *testing.T) {
	test.That(t, Float64AlmostEqual(1, 1+1e-9, 1e-6), test.ShouldBeTrue)
	test.That(t, Float64AlmostEqual(1, 1.1, 1e-6), test.ShouldBeFalse)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(5, -1, 1), test.ShouldEqual, 1.)
	test.That(t, Clamp(-5, -1, 1), test.ShouldEqual, -1.)
	test.That(t, Clamp(0.25, -1, 1), test.ShouldEqual, 0.25)
}

func TestGetenvInt(t *testing.T) {
	t.Setenv("TRAJOPT_TEST_INT", "12")
	test.That(t, GetenvInt("TRAJOPT_TEST_INT", 3), test.ShouldEqual, 12)
	t.Setenv("TRAJOPT_TEST_INT", "twelve")
	test.That(t, GetenvInt("TRAJOPT_TEST_INT", 3), test.ShouldEqual, 3)
	test.That(t, GetenvInt("TRAJOPT_TEST_UNSET_INT", 4), test.ShouldEqual, 4)
}
