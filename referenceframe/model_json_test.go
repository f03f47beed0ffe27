package referenceframe

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	spatial "go.viam.com/trajopt/spatialmath"
)

func TestParseBadModels(t *testing.T) {
	for _, tc := range []struct {
		name    string
		json    string
		errText string
		sentry  error
	}{
		{
			name: "loop",
			json: `{"name":"loop","links":[{"id":"a","parent":"j"},{"id":"tip","parent":"a"}],
				"joints":[{"id":"j","type":"revolute","parent":"a","axis":{"z":1},"min":-90,"max":90}]}`,
			sentry: ErrCircularReference,
		},
		{
			name:    "world link",
			json:    `{"name":"w","links":[{"id":"world","parent":""}]}`,
			errText: NewReservedWordError("link", World).Error(),
		},
		{
			name:    "world joint",
			json:    `{"name":"w","joints":[{"id":"world","type":"revolute","parent":"","axis":{"z":1}}]}`,
			errText: NewReservedWordError("joint", World).Error(),
		},
		{
			name:    "two end effectors",
			json:    `{"name":"y","links":[{"id":"a","parent":"world"},{"id":"b","parent":"world"}]}`,
			sentry:  ErrNeedOneEndEffector,
			errText: "have [a b]",
		},
		{
			name:    "missing parent",
			json:    `{"name":"m","links":[{"id":"mid","parent":"elbow"},{"id":"tip","parent":"mid"}]}`,
			errText: NewFrameNotInListOfTransformsError("elbow").Error(),
		},
		{
			name:    "bad joint type",
			json:    `{"name":"b","joints":[{"id":"j","type":"spherical","parent":"world","axis":{"z":1}}]}`,
			errText: "unsupported joint type",
		},
		{
			name:    "inverted limits",
			json:    `{"name":"b","joints":[{"id":"j","type":"revolute","parent":"world","axis":{"z":1},"min":10,"max":-10}]}`,
			errText: "greater than max",
		},
		{
			name:    "unknown param type",
			json:    `{"name":"d","kinematic_param_type":"DH"}`,
			errText: "unsupported param type",
		},
		{
			name:    "bad orientation",
			json:    `{"name":"o","links":[{"id":"a","parent":"world","orientation":{"type":"euler","value":{}}}]}`,
			errText: "not recognized",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalModelJSON([]byte(tc.json), "")
			test.That(t, err, test.ShouldNotBeNil)
			if tc.sentry != nil {
				test.That(t, errors.Is(err, tc.sentry), test.ShouldBeTrue)
			}
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errText)
		})
	}

	_, err := UnmarshalModelJSON(nil, "")
	test.That(t, err, test.ShouldBeError, ErrNoModelInformation)
}

func TestParseOrientationsAndNames(t *testing.T) {
	data := []byte(`{
		"name": "tilted",
		"links": [
			{"id": "q", "parent": "world", "translation": {"x": 1},
			 "orientation": {"type": "quaternion", "value": {"w": 0.7071067811865476, "z": 0.7071067811865476}}},
			{"id": "tip", "parent": "q", "translation": {"x": 1}}
		]
	}`)
	m, err := UnmarshalModelJSON(data, "renamed")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Name(), test.ShouldEqual, "renamed")
	test.That(t, m.DoF(), test.ShouldBeEmpty)

	tip, err := m.ForwardKinematics("tip", nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatial.R3VectorAlmostEqual(tip.Point(), r3.Vector{X: 1, Y: 1}, 1e-9), test.ShouldBeTrue)

	jac, err := m.Jacobian("tip", nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, jac.IsEmpty(), test.ShouldBeTrue)
}

func TestRobotJSON(t *testing.T) {
	// a bare chain is a robot with one manipulator of the same name
	single := []byte(`{"name":"pendulum","joints":[{"id":"pivot","type":"revolute","parent":"world","axis":{"y":1},"min":-45,"max":45}],
		"links":[{"id":"bob","parent":"pivot","translation":{"z":-1}}]}`)
	robot, err := UnmarshalRobotJSON(single)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, robot.ManipulatorNames(), test.ShouldResemble, []string{"pendulum"})
	m, err := robot.Manipulator("pendulum")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.DoF()[0].Min, test.ShouldAlmostEqual, -math.Pi/4)

	dup := []byte(`{"name":"r","manipulators":[
		{"name":"a","links":[{"id":"l","parent":"world"}]},
		{"name":"a","links":[{"id":"l","parent":"world"}]}]}`)
	_, err = UnmarshalRobotJSON(dup)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = UnmarshalRobotJSON([]byte(`{"name":"r","manipulators":[{"name":"a","links":[{"id":"world"}]}]}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `manipulator "a"`)

	_, err = ParseRobotJSONFile("/does/not/exist.json")
	test.That(t, err, test.ShouldNotBeNil)
}
