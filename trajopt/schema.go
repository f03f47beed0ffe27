package trajopt

import (
	"github.com/invopop/jsonschema"
)

// paramSchemas documents the params object of each term type.
var (
	costParamSchemas = map[CostType]*jsonschema.Schema{
		CostJointVelocity: jsonschema.Reflect(&JointVelocityParams{}),
		CostJointPosition: jsonschema.Reflect(&JointParams{}),
		CostPose:          jsonschema.Reflect(&PoseParams{}),
	}
	constraintParamSchemas = map[ConstraintType]*jsonschema.Schema{
		ConstraintPose:              jsonschema.Reflect(&PoseParams{}),
		ConstraintJoint:             jsonschema.Reflect(&JointParams{}),
		ConstraintCartesianVelocity: jsonschema.Reflect(&CartesianVelocityParams{}),
	}
)

// RequestSchema returns the JSON schema of a request.
func RequestSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Request{})
}

// OptionsSchema returns the JSON schema of the solver block of a request.
func OptionsSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Options{})
}

// CostParamsSchema returns the JSON schema of the params of a cost type, nil for unknown types.
func CostParamsSchema(t CostType) *jsonschema.Schema {
	return costParamSchemas[t]
}

// ConstraintParamsSchema returns the JSON schema of the params of a constraint type, nil for unknown types.
func ConstraintParamsSchema(t ConstraintType) *jsonschema.Schema {
	return constraintParamSchemas[t]
}
