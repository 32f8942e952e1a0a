package schemas

import (
	"bytes"
	"encoding/json"
)

// StepKind is the discriminator of a step directive exchanged with the model.
type StepKind string

const (
	StepStart   StepKind = "START"
	StepThink   StepKind = "THINK"
	StepTool    StepKind = "TOOL"
	StepObserve StepKind = "OBSERVE"
	StepOutput  StepKind = "OUTPUT"
)

// StepKinds lists every recognized kind in protocol order.
var StepKinds = []StepKind{StepStart, StepThink, StepTool, StepObserve, StepOutput}

// IsValid reports whether k is one of the recognized kinds.
func (k StepKind) IsValid() bool {
	switch k {
	case StepStart, StepThink, StepTool, StepObserve, StepOutput:
		return true
	}
	return false
}

// StepDirective is one unit of the agent protocol. Content is used by every
// kind except TOOL, which instead names a tool and carries its raw input.
type StepDirective struct {
	Kind     StepKind        `json:"step"`
	Content  string          `json:"content,omitempty"`
	ToolName string          `json:"tool_name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
}

// NewObservation builds the OBSERVE directive the loop uses to report back.
func NewObservation(content string) StepDirective {
	return StepDirective{Kind: StepObserve, Content: content}
}

// stepWire fixes the field order of the serialized form.
type stepWire struct {
	Step     StepKind        `json:"step"`
	Content  *string         `json:"content,omitempty"`
	ToolName string          `json:"tool_name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
}

// MarshalJSON renders the directive in the wire shape the model is taught:
// content is always present for non-TOOL kinds, and a TOOL step always
// carries tool_name and input (null when absent).
func (d StepDirective) MarshalJSON() ([]byte, error) {
	w := stepWire{Step: d.Kind}
	if d.Kind == StepTool {
		if d.Content != "" {
			content := d.Content
			w.Content = &content
		}
		w.ToolName = d.ToolName
		w.Input = d.Input
		if len(w.Input) == 0 {
			w.Input = json.RawMessage("null")
		}
	} else {
		content := d.Content
		w.Content = &content
	}

	// Page markup travels inside content, so HTML escaping stays off to keep
	// it readable for the model.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// String returns the serialized directive, which is what gets appended to
// the conversation.
func (d StepDirective) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return string(d.Kind)
	}
	return string(b)
}
