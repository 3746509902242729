package version

import (
	"encoding/json"
	"errors"
)

// Step is the engine's structural view of one workflow step. The
// document is otherwise opaque; only the fields needed for diffing and
// classification are pulled out.
type Step struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name,omitempty"`
	Type           string                 `json:"type,omitempty"`
	Category       string                 `json:"category,omitempty"`
	RequiredInputs []string               `json:"required_inputs,omitempty"`
	Outputs        []string               `json:"outputs,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	ExecutionLogic map[string]interface{} `json:"execution_logic,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Document is a parsed workflow document: typed steps and dependencies
// plus every other top-level field kept raw for metadata diffing.
type Document struct {
	Steps        []Step
	Dependencies []string
	Fields       map[string]json.RawMessage
}

// ParseDocument parses a raw workflow document. Top-level keys other
// than "steps" and "dependencies" land in Fields.
func ParseDocument(data json.RawMessage) (*Document, error) {
	if len(data) == 0 {
		return nil, errors.New("workflow document is empty")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	doc := &Document{Fields: make(map[string]json.RawMessage)}
	for key, raw := range top {
		switch key {
		case "steps":
			if err := json.Unmarshal(raw, &doc.Steps); err != nil {
				return nil, err
			}
		case "dependencies":
			if err := json.Unmarshal(raw, &doc.Dependencies); err != nil {
				return nil, err
			}
		default:
			doc.Fields[key] = raw
		}
	}
	return doc, nil
}

// StepsByID keys the document's steps by step id.
func (d *Document) StepsByID() map[string]Step {
	steps := make(map[string]Step, len(d.Steps))
	for _, s := range d.Steps {
		steps[s.ID] = s
	}
	return steps
}

// IsEmpty reports whether the document carries no steps and no fields,
// which is how a missing base document presents on a first commit.
func (d *Document) IsEmpty() bool {
	return d == nil || (len(d.Steps) == 0 && len(d.Dependencies) == 0 && len(d.Fields) == 0)
}
