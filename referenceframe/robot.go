package referenceframe

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// KinematicsProvider resolves manipulator names to kinematic models.
type KinematicsProvider interface {
	Manipulator(name string) (Model, error)
}

// Robot is a named set of manipulators. A Robot is immutable once built and can be shared between concurrent solves.
type Robot struct {
	name         string
	manipulators map[string]Model
}

// NewRobot builds a robot from its manipulators. Manipulator names must be unique.
func NewRobot(name string, manipulators ...Model) (*Robot, error) {
	r := &Robot{name: name, manipulators: make(map[string]Model, len(manipulators))}
	for _, m := range manipulators {
		if _, dup := r.manipulators[m.Name()]; dup {
			return nil, errors.Errorf("robot %q has two manipulators named %q", name, m.Name())
		}
		r.manipulators[m.Name()] = m
	}
	return r, nil
}

// Name returns the name of the robot.
func (r *Robot) Name() string {
	return r.name
}

// Manipulator returns the model of the named manipulator.
func (r *Robot) Manipulator(name string) (Model, error) {
	m, ok := r.manipulators[name]
	if !ok {
		return nil, NewManipulatorMissingError(r.name, name)
	}
	return m, nil
}

// ManipulatorNames returns the sorted names of the robot's manipulators.
func (r *Robot) ManipulatorNames() []string {
	names := lo.Keys(r.manipulators)
	sort.Strings(names)
	return names
}

// RobotConfigJSON is the JSON description of a robot: a name and one kinematic chain per manipulator.
type RobotConfigJSON struct {
	Name         string            `json:"name"`
	Manipulators []ModelConfigJSON `json:"manipulators"`
}

// UnmarshalRobotJSON parses a robot description. A description holding a single chain at the top level (no
// "manipulators" list) is read as a robot with one manipulator of the same name.
func UnmarshalRobotJSON(jsonData []byte) (*Robot, error) {
	if len(jsonData) == 0 {
		return nil, ErrNoModelInformation
	}
	cfg := &RobotConfigJSON{}
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal robot json")
	}
	if len(cfg.Manipulators) == 0 {
		single := ModelConfigJSON{}
		if err := json.Unmarshal(jsonData, &single); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal robot json")
		}
		cfg.Manipulators = []ModelConfigJSON{single}
	}

	models := make([]Model, 0, len(cfg.Manipulators))
	for i := range cfg.Manipulators {
		m, err := cfg.Manipulators[i].ParseConfig("")
		if err != nil {
			return nil, errors.Wrapf(err, "manipulator %q", cfg.Manipulators[i].Name)
		}
		models = append(models, m)
	}
	return NewRobot(cfg.Name, models...)
}

// ParseRobotJSONFile reads a robot description from a file.
func ParseRobotJSONFile(filename string) (*Robot, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalRobotJSON(jsonData)
}
