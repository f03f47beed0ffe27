package referenceframe

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Input is the value of one joint: radians for revolute joints, robot length units for prismatic ones.
type Input struct {
	Value float64
}

// FloatsToInputs wraps raw joint values.
func FloatsToInputs(values []float64) []Input {
	inputs := make([]Input, len(values))
	for i, v := range values {
		inputs[i].Value = v
	}
	return inputs
}

// InputsToFloats unwraps joint values.
func InputsToFloats(inputs []Input) []float64 {
	values := make([]float64, len(inputs))
	for i, in := range inputs {
		values[i] = in.Value
	}
	return values
}

// CopyInputs returns a copy sharing no memory with inputs.
func CopyInputs(inputs []Input) []Input {
	return append([]Input(nil), inputs...)
}

// InterpolateInputs returns the configuration a fraction by of the way from from to to. by is not clamped.
func InterpolateInputs(from, to []Input, by float64) []Input {
	out := make([]Input, len(from))
	for i := range from {
		out[i].Value = from[i].Value + by*(to[i].Value-from[i].Value)
	}
	return out
}

// InputsL2Distance is the Euclidean distance between two configurations, +Inf when their lengths differ.
func InputsL2Distance(from, to []Input) float64 {
	if len(from) != len(to) {
		return math.Inf(1)
	}
	return floats.Distance(InputsToFloats(from), InputsToFloats(to), 2)
}

// InputsLinfDistance is the largest per-joint difference between two configurations, +Inf when their lengths
// differ.
func InputsLinfDistance(from, to []Input) float64 {
	if len(from) != len(to) {
		return math.Inf(1)
	}
	return floats.Distance(InputsToFloats(from), InputsToFloats(to), math.Inf(1))
}
