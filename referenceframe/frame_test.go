package referenceframe

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	spatial "go.viam.com/trajopt/spatialmath"
)

func TestStaticFrame(t *testing.T) {
	pose := spatial.NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, &spatial.R4AA{Theta: math.Pi / 2, RX: 0., RY: 0., RZ: 1.})
	frame, err := NewStaticFrame("test", pose)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Name(), test.ShouldEqual, "test")
	test.That(t, frame.DoF(), test.ShouldResemble, []Limit{})

	got, err := frame.Transform([]Input{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, pose)

	_, err = frame.Transform([]Input{{0}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewStaticFrame("nil", nil)
	test.That(t, err, test.ShouldNotBeNil)

	same, err := NewStaticFrame("test", pose)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.AlmostEquals(same), test.ShouldBeTrue)
	test.That(t, frame.AlmostEquals(NewZeroStaticFrame("test")), test.ShouldBeFalse)
}

func TestPrismaticFrame(t *testing.T) {
	limit := Limit{Min: -30, Max: 30}
	frame, err := NewTranslationalFrame("test", r3.Vector{Y: 3}, limit)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.DoF(), test.ShouldResemble, []Limit{limit})

	pose, err := frame.Transform([]Input{{-7}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatial.PoseAlmostEqual(pose, spatial.NewPoseFromPoint(r3.Vector{Y: -7})), test.ShouldBeTrue)

	// out of bounds inputs are still transformed
	pose, err = frame.Transform([]Input{{45}})
	test.That(t, pose, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, OOBErrString)

	_, err = frame.Transform([]Input{{1}, {2}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRevoluteFrame(t *testing.T) {
	axis := r3.Vector{X: 1}
	frame, err := NewRotationalFrame("test", *spatial.R3ToR4(axis), Limit{Min: -math.Pi / 2, Max: math.Pi / 2})
	test.That(t, err, test.ShouldBeNil)

	pose, err := frame.Transform([]Input{{math.Pi / 4}})
	test.That(t, err, test.ShouldBeNil)
	expected := spatial.NewPoseFromOrientation(&spatial.R4AA{Theta: math.Pi / 4, RX: 1})
	test.That(t, spatial.PoseAlmostEqual(pose, expected), test.ShouldBeTrue)

	pose, err = frame.Transform([]Input{{math.Pi}})
	test.That(t, pose, test.ShouldNotBeNil)
	test.That(t, err, test.ShouldNotBeNil)

	other, err := NewRotationalFrame("test", spatial.R4AA{RX: 2}, Limit{Min: -math.Pi / 2, Max: math.Pi / 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.AlmostEquals(other), test.ShouldBeTrue)
}
