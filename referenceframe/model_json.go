package referenceframe

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ModelConfigJSON is one manipulator of a robot description in SVA form: links are static offsets and joints
// are single-axis revolute or prismatic frames, each naming its parent.
type ModelConfigJSON struct {
	Name         string        `json:"name"`
	KinParamType string        `json:"kinematic_param_type,omitempty"`
	Links        []LinkConfig  `json:"links,omitempty"`
	Joints       []JointConfig `json:"joints,omitempty"`
}

// UnmarshalModelJSON parses a single manipulator. A non-empty modelName overrides the name in the data.
func UnmarshalModelJSON(jsonData []byte, modelName string) (Model, error) {
	if len(jsonData) == 0 {
		return nil, ErrNoModelInformation
	}
	cfg := &ModelConfigJSON{}
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return cfg.ParseConfig(modelName)
}

// ParseModelJSONFile reads and parses a single manipulator from a file.
func ParseModelJSONFile(filename, modelName string) (Model, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalModelJSON(jsonData, modelName)
}

// ParseConfig builds the chain. Links and joints may be listed in any order; the chain is recovered from the
// parent names and must run from the world to a single end effector.
func (cfg *ModelConfigJSON) ParseConfig(modelName string) (Model, error) {
	if cfg.KinParamType != "" && cfg.KinParamType != "SVA" {
		return nil, errors.Errorf("unsupported param type: %s, supported params are SVA", cfg.KinParamType)
	}
	if modelName == "" {
		modelName = cfg.Name
	}

	frames := map[string]Frame{}
	parents := map[string]string{}
	add := func(kind, id, parent string, build func() (Frame, error)) error {
		if id == World {
			return NewReservedWordError(kind, World)
		}
		if _, dup := frames[id]; dup {
			return errors.Errorf("duplicate frame name %q", id)
		}
		f, err := build()
		if err != nil {
			return err
		}
		frames[id] = f
		parents[id] = parent
		if parent == "" {
			parents[id] = World
		}
		return nil
	}
	for _, link := range cfg.Links {
		if err := add("link", link.ID, link.Parent, link.ParseConfig); err != nil {
			return nil, err
		}
	}
	for _, joint := range cfg.Joints {
		if err := add("joint", joint.ID, joint.Parent, joint.ToFrame); err != nil {
			return nil, err
		}
	}

	chain, err := sortTransforms(frames, parents)
	if err != nil {
		return nil, err
	}
	model := NewSimpleModel(modelName)
	model.setOrdTransforms(chain)
	return model, nil
}

// sortTransforms walks from the only frame that is nobody's parent back to the world and returns the frames
// ordered from base to end effector.
func sortTransforms(frames map[string]Frame, parents map[string]string) ([]Frame, error) {
	if len(parents) == 0 {
		return nil, ErrNoModelInformation
	}
	tips := lo.OmitByKeys(parents, lo.Values(parents))
	if len(tips) != 1 {
		names := lo.Keys(tips)
		sort.Strings(names)
		return nil, errors.Wrapf(ErrNeedOneEndEffector, "have %v", names)
	}

	chain := make([]Frame, 0, len(frames))
	visited := map[string]bool{}
	for curr := lo.Keys(tips)[0]; curr != World; {
		if visited[curr] {
			return nil, ErrCircularReference
		}
		visited[curr] = true
		frame, ok := frames[curr]
		if !ok {
			return nil, NewFrameNotInListOfTransformsError(curr)
		}
		chain = append(chain, frame)
		curr = parents[curr]
	}
	return lo.Reverse(chain), nil
}
