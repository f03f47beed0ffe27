// Package trajectory holds the discretized joint-space trajectories optimized by trajopt: a fixed number of
// waypoints stacked into one decision vector.
package trajectory

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/trajopt/referenceframe"
	"go.viam.com/trajopt/spatialmath"
)

// FixedWaypointError is returned by any attempt to change a pinned waypoint.
type FixedWaypointError struct {
	Step int
}

func (e *FixedWaypointError) Error() string {
	return fmt.Sprintf("waypoint %d is fixed and cannot be modified", e.Step)
}

// Trajectory is a sequence of nSteps joint configurations of dof values each, stored row-major in a single vector.
// If the start is fixed, waypoint 0 can never be changed after construction.
type Trajectory struct {
	nSteps     int
	dof        int
	startFixed bool
	data       []float64
}

func checkShape(nSteps, dof int) error {
	if nSteps < 1 {
		return errors.Errorf("trajectory needs at least one waypoint, got %d", nSteps)
	}
	if dof < 1 {
		return errors.Errorf("trajectory needs at least one degree of freedom, got %d", dof)
	}
	return nil
}

// New builds a trajectory from explicit waypoints. Every waypoint must have dof values.
func New(nSteps, dof int, startFixed bool, waypoints [][]referenceframe.Input) (*Trajectory, error) {
	if err := checkShape(nSteps, dof); err != nil {
		return nil, err
	}
	if len(waypoints) != nSteps {
		return nil, errors.Errorf("expected %d waypoints, got %d", nSteps, len(waypoints))
	}
	t := &Trajectory{nSteps: nSteps, dof: dof, startFixed: startFixed, data: make([]float64, nSteps*dof)}
	for i, wp := range waypoints {
		if len(wp) != dof {
			return nil, referenceframe.NewIncorrectDoFError(len(wp), dof)
		}
		for j, in := range wp {
			t.data[t.Index(i, j)] = in.Value
		}
	}
	return t, nil
}

// FromWaypoints builds a trajectory with one waypoint per given configuration.
func FromWaypoints(waypoints [][]referenceframe.Input, startFixed bool) (*Trajectory, error) {
	if len(waypoints) == 0 {
		return nil, errors.New("trajectory needs at least one waypoint")
	}
	return New(len(waypoints), len(waypoints[0]), startFixed, waypoints)
}

// Stationary replicates the start configuration at every waypoint.
func Stationary(start []referenceframe.Input, nSteps int, startFixed bool) (*Trajectory, error) {
	return StraightLine(start, start, nSteps, startFixed)
}

// StraightLine interpolates linearly in joint space from start (waypoint 0) to goal (the last waypoint).
func StraightLine(start, goal []referenceframe.Input, nSteps int, startFixed bool) (*Trajectory, error) {
	if len(goal) != len(start) {
		return nil, referenceframe.NewIncorrectDoFError(len(goal), len(start))
	}
	waypoints := make([][]referenceframe.Input, nSteps)
	for i := range waypoints {
		by := 0.
		if nSteps > 1 {
			by = float64(i) / float64(nSteps-1)
		}
		waypoints[i] = referenceframe.InterpolateInputs(start, goal, by)
	}
	return New(nSteps, len(start), startFixed, waypoints)
}

// Unflatten builds a trajectory from a decision vector of length nSteps*dof. The vector is copied.
func Unflatten(vec []float64, nSteps, dof int, startFixed bool) (*Trajectory, error) {
	if err := checkShape(nSteps, dof); err != nil {
		return nil, err
	}
	if len(vec) != nSteps*dof {
		return nil, errors.Errorf("vector of length %d cannot hold %d waypoints of %d values", len(vec), nSteps, dof)
	}
	data := make([]float64, len(vec))
	copy(data, vec)
	return &Trajectory{nSteps: nSteps, dof: dof, startFixed: startFixed, data: data}, nil
}

// Interpolate returns the trajectory the fraction by of the way from one trajectory to another, waypoint by
// waypoint. The result takes its fixed start from "from".
func Interpolate(from, to *Trajectory, by float64) (*Trajectory, error) {
	if from.nSteps != to.nSteps || from.dof != to.dof {
		return nil, errors.Errorf("cannot interpolate a %dx%d trajectory with a %dx%d one",
			from.nSteps, from.dof, to.nSteps, to.dof)
	}
	out := from.Clone()
	start := 0
	if from.startFixed {
		start = from.dof
	}
	for i := start; i < len(out.data); i++ {
		out.data[i] += (to.data[i] - from.data[i]) * by
	}
	return out, nil
}

// NSteps returns the number of waypoints.
func (t *Trajectory) NSteps() int {
	return t.nSteps
}

// DoF returns the number of values per waypoint.
func (t *Trajectory) DoF() int {
	return t.dof
}

// StartFixed reports whether waypoint 0 is pinned.
func (t *Trajectory) StartFixed() bool {
	return t.startFixed
}

// Index returns the position of a joint of a waypoint within the flattened decision vector.
func (t *Trajectory) Index(step, joint int) int {
	return step*t.dof + joint
}

// Flatten returns a copy of the decision vector.
func (t *Trajectory) Flatten() []float64 {
	out := make([]float64, len(t.data))
	copy(out, t.data)
	return out
}

// Value returns a single joint value without copying the waypoint.
func (t *Trajectory) Value(step, joint int) float64 {
	return t.data[t.Index(step, joint)]
}

// Waypoint returns a copy of the configuration at the given step.
func (t *Trajectory) Waypoint(step int) []referenceframe.Input {
	return referenceframe.FloatsToInputs(t.data[t.Index(step, 0):t.Index(step+1, 0)])
}

// Waypoints returns copies of every configuration in order.
func (t *Trajectory) Waypoints() [][]referenceframe.Input {
	out := make([][]referenceframe.Input, t.nSteps)
	for i := range out {
		out[i] = t.Waypoint(i)
	}
	return out
}

// SetWaypoint replaces the configuration at the given step.
func (t *Trajectory) SetWaypoint(step int, cfg []referenceframe.Input) error {
	if step < 0 || step >= t.nSteps {
		return errors.Errorf("waypoint %d out of range [0, %d)", step, t.nSteps)
	}
	if len(cfg) != t.dof {
		return referenceframe.NewIncorrectDoFError(len(cfg), t.dof)
	}
	if step == 0 && t.startFixed {
		return &FixedWaypointError{Step: 0}
	}
	for j, in := range cfg {
		t.data[t.Index(step, j)] = in.Value
	}
	return nil
}

// Update replaces the whole decision vector. When the start is fixed the vector must carry waypoint 0 unchanged.
func (t *Trajectory) Update(vec []float64) error {
	if len(vec) != len(t.data) {
		return errors.Errorf("vector of length %d does not match trajectory of length %d", len(vec), len(t.data))
	}
	if t.startFixed {
		for j := 0; j < t.dof; j++ {
			if vec[j] != t.data[j] {
				return &FixedWaypointError{Step: 0}
			}
		}
	}
	copy(t.data, vec)
	return nil
}

// Clone returns a deep copy.
func (t *Trajectory) Clone() *Trajectory {
	out := *t
	out.data = t.Flatten()
	return &out
}

// Equal reports whether both trajectories have the same shape, the same fixed start and identical values.
func (t *Trajectory) Equal(other *Trajectory) bool {
	if t.nSteps != other.nSteps || t.dof != other.dof || t.startFixed != other.startFixed {
		return false
	}
	for i, v := range t.data {
		if other.data[i] != v {
			return false
		}
	}
	return true
}

// MaxJointStep returns the largest change of any single joint between consecutive waypoints.
func (t *Trajectory) MaxJointStep() float64 {
	largest := 0.
	for i := 1; i < t.nSteps; i++ {
		for j := 0; j < t.dof; j++ {
			largest = math.Max(largest, math.Abs(t.Value(i, j)-t.Value(i-1, j)))
		}
	}
	return largest
}

// EvaluateCost sums a segment metric over consecutive waypoint pairs.
func (t *Trajectory) EvaluateCost(distFunc func(from, to []referenceframe.Input) float64) float64 {
	var totalCost float64
	for i := 1; i < t.nSteps; i++ {
		totalCost += distFunc(t.Waypoint(i-1), t.Waypoint(i))
	}
	return totalCost
}

// Path returns the world pose of a link of the model at every waypoint.
func (t *Trajectory) Path(model referenceframe.Model, link string) ([]spatialmath.Pose, error) {
	path := make([]spatialmath.Pose, 0, t.nSteps)
	for i := 0; i < t.nSteps; i++ {
		pose, err := model.ForwardKinematics(link, t.Waypoint(i))
		if err != nil {
			return nil, errors.Wrapf(err, "waypoint %d", i)
		}
		path = append(path, pose)
	}
	return path, nil
}

// String returns a human-readable version of the trajectory, suitable for debugging.
func (t *Trajectory) String() string {
	var sb strings.Builder
	for i := 0; i < t.nSteps; i++ {
		fmt.Fprintf(&sb, "\n%d: %v", i, t.data[t.Index(i, 0):t.Index(i+1, 0)])
	}
	return sb.String()
}
