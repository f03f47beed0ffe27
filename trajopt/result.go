package trajopt

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/trajopt/referenceframe"
	"go.viam.com/trajopt/trajectory"
)

// TermValue is the value of one named term.
type TermValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Result is the outcome of a solve.
type Result struct {
	ID         uuid.UUID
	Trajectory *trajectory.Trajectory
	Status     Status
	// ConstraintViolation is the largest violation of any single constraint at the final trajectory.
	ConstraintViolation  float64
	CostValues           []TermValue
	ConstraintViolations []TermValue
	Iterations           int
	Penalty              float64
	Message              string
	History              []IterationRecord
	Meta                 *SolveMeta
}

func newResult(id uuid.UUID, prob *Problem, st *solverState, final *evaluation) *Result {
	res := &Result{
		ID:                  id,
		Trajectory:          st.x.Clone(),
		Status:              st.status,
		ConstraintViolation: final.maxViolation(),
		Iterations:          st.iteration,
		Penalty:             st.mu,
		History:             st.history,
	}
	for i, c := range prob.costs {
		res.CostValues = append(res.CostValues, TermValue{Name: c.Name(), Value: final.costs[i].value})
	}
	for i, c := range prob.constraints {
		res.ConstraintViolations = append(res.ConstraintViolations, TermValue{Name: c.Name(), Value: final.constraints[i].value})
	}
	switch st.status {
	case StatusConverged:
		res.Message = fmt.Sprintf("converged after %d iterations", st.iteration)
	case StatusMaxIterExceeded:
		res.Message = fmt.Sprintf("stopped after %d iterations with constraint violation %g", st.iteration,
			res.ConstraintViolation)
	case StatusDiverged:
		res.Message = fmt.Sprintf("trust region collapsed with constraint violation %g after %d penalty increases",
			res.ConstraintViolation, st.meritIncreases)
	case StatusInitializing, StatusIterating:
		res.Message = "solve did not finish"
	}
	return res
}

// Waypoints returns the optimized joint configurations in order.
func (r *Result) Waypoints() [][]referenceframe.Input {
	return r.Trajectory.Waypoints()
}

type resultJSON struct {
	ID                   string            `json:"id,omitempty"`
	Traj                 [][]float64       `json:"traj"`
	Status               Status            `json:"status"`
	ConstraintViolation  float64           `json:"constraint_violation"`
	CostValues           []TermValue       `json:"cost_vals"`
	ConstraintViolations []TermValue       `json:"cnt_viols"`
	Iterations           int               `json:"iterations"`
	Penalty              float64           `json:"penalty"`
	Message              string            `json:"message"`
	MaxJointStep         float64           `json:"max_joint_step"`
	History              []IterationRecord `json:"history,omitempty"`
}

// MarshalJSON writes the trajectory as rows of joint values, the same layout requests use for given_traj data.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Status:               r.Status,
		ConstraintViolation:  r.ConstraintViolation,
		CostValues:           r.CostValues,
		ConstraintViolations: r.ConstraintViolations,
		Iterations:           r.Iterations,
		Penalty:              r.Penalty,
		Message:              r.Message,
		History:              r.History,
	}
	if r.ID != uuid.Nil {
		out.ID = r.ID.String()
	}
	if r.Trajectory != nil {
		for _, wp := range r.Trajectory.Waypoints() {
			out.Traj = append(out.Traj, referenceframe.InputsToFloats(wp))
		}
		out.MaxJointStep = r.Trajectory.MaxJointStep()
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a result written by MarshalJSON. The trajectory start is marked fixed.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Status:               in.Status,
		ConstraintViolation:  in.ConstraintViolation,
		CostValues:           in.CostValues,
		ConstraintViolations: in.ConstraintViolations,
		Iterations:           in.Iterations,
		Penalty:              in.Penalty,
		Message:              in.Message,
		History:              in.History,
	}
	if in.ID != "" {
		id, err := uuid.Parse(in.ID)
		if err != nil {
			return errors.Wrap(err, "result id")
		}
		r.ID = id
	}
	if len(in.Traj) > 0 {
		waypoints := make([][]referenceframe.Input, 0, len(in.Traj))
		for _, row := range in.Traj {
			waypoints = append(waypoints, referenceframe.FloatsToInputs(row))
		}
		traj, err := trajectory.FromWaypoints(waypoints, true)
		if err != nil {
			return errors.Wrap(err, "result traj")
		}
		r.Trajectory = traj
	}
	return nil
}
