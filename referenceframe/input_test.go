package referenceframe

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestInterpolateValues(t *testing.T) {
	jp1 := FloatsToInputs([]float64{0, 4})
	jp2 := FloatsToInputs([]float64{8, -8})
	jpHalf := FloatsToInputs([]float64{4, -2})
	jpQuarter := FloatsToInputs([]float64{2, 1})

	interp1 := InterpolateInputs(jp1, jp2, 0.5)
	interp2 := InterpolateInputs(jp1, jp2, 0.25)
	test.That(t, interp1, test.ShouldResemble, jpHalf)
	test.That(t, interp2, test.ShouldResemble, jpQuarter)
}

func TestInputDistances(t *testing.T) {
	a := FloatsToInputs([]float64{0, 0, 0})
	b := FloatsToInputs([]float64{3, -4, 1})
	test.That(t, InputsL2Distance(a, b), test.ShouldAlmostEqual, math.Sqrt(26))
	test.That(t, InputsLinfDistance(a, b), test.ShouldEqual, 4.)
	test.That(t, math.IsInf(InputsL2Distance(a, b[:2]), 1), test.ShouldBeTrue)

	c := CopyInputs(b)
	c[0].Value = 100
	test.That(t, b[0].Value, test.ShouldEqual, 3.)
	test.That(t, InputsToFloats(b), test.ShouldResemble, []float64{3, -4, 1})
}
