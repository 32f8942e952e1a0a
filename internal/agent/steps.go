package agent

import (
	"bytes"
	encodingjson "encoding/json"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/llmutil"
)

// jsonAPI matches encoding/json semantics but leaves markup unescaped, since
// tool results routinely carry HTML and URLs.
var jsonAPI = json.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// ParseStep turns one raw model reply into a StepDirective. It tolerates
// markdown fences and prose around the JSON object, but rejects replies that
// carry more than one step. It always returns either a directive or a
// *ParseError.
func ParseStep(raw string) (schemas.StepDirective, error) {
	objects := llmutil.ExtractObjects(raw)
	if len(objects) == 0 {
		return schemas.StepDirective{}, &ParseError{Reason: ReasonInvalidJSON, Detail: "no JSON object found in reply", Raw: raw}
	}

	var (
		chosen     map[string]encodingjson.RawMessage
		stepCount  int
		decodeErr  error
		firstValid map[string]encodingjson.RawMessage
	)
	for _, obj := range objects {
		var fields map[string]encodingjson.RawMessage
		if err := jsonAPI.UnmarshalFromString(obj, &fields); err != nil {
			if decodeErr == nil {
				decodeErr = err
			}
			continue
		}
		if firstValid == nil {
			firstValid = fields
		}
		if _, ok := fields["step"]; ok {
			stepCount++
			if chosen == nil {
				chosen = fields
			}
		}
	}

	switch {
	case stepCount > 1:
		return schemas.StepDirective{}, &ParseError{Reason: ReasonMultipleSteps, Detail: fmt.Sprintf("reply contains %d steps; send exactly one per turn", stepCount), Raw: raw}
	case chosen == nil && firstValid == nil:
		return schemas.StepDirective{}, &ParseError{Reason: ReasonInvalidJSON, Detail: decodeErr.Error(), Raw: raw}
	case chosen == nil:
		chosen = firstValid
	}

	d, perr := decodeStep(chosen)
	if perr != nil {
		perr.Raw = raw
		return schemas.StepDirective{}, perr
	}
	return d, nil
}

func decodeStep(fields map[string]encodingjson.RawMessage) (schemas.StepDirective, *ParseError) {
	stepRaw, ok := fields["step"]
	if !ok {
		return schemas.StepDirective{}, &ParseError{Reason: ReasonUnknownStep, Detail: `missing "step" field`}
	}
	var name string
	if err := jsonAPI.Unmarshal(stepRaw, &name); err != nil {
		return schemas.StepDirective{}, &ParseError{Reason: ReasonUnknownStep, Detail: `"step" must be a string`}
	}
	kind := schemas.StepKind(strings.ToUpper(strings.TrimSpace(name)))
	if !kind.IsValid() {
		return schemas.StepDirective{}, &ParseError{Reason: ReasonUnknownStep, Detail: fmt.Sprintf("unrecognized step %q", name)}
	}

	d := schemas.StepDirective{Kind: kind}
	contentRaw, hasContent := fields["content"]
	hasContent = hasContent && !isNull(contentRaw)
	if hasContent {
		d.Content = contentText(contentRaw)
	}

	if kind != schemas.StepTool {
		if !hasContent {
			return schemas.StepDirective{}, &ParseError{Reason: ReasonMissingContent, Detail: fmt.Sprintf("%s step requires \"content\"", kind)}
		}
		return d, nil
	}

	toolRaw, ok := fields["tool_name"]
	if !ok || isNull(toolRaw) {
		return schemas.StepDirective{}, &ParseError{Reason: ReasonMalformedToolCall, Detail: `TOOL step requires "tool_name"`}
	}
	if err := jsonAPI.Unmarshal(toolRaw, &d.ToolName); err != nil || strings.TrimSpace(d.ToolName) == "" {
		return schemas.StepDirective{}, &ParseError{Reason: ReasonMalformedToolCall, Detail: `"tool_name" must be a non-empty string`}
	}
	d.ToolName = strings.TrimSpace(d.ToolName)

	input, ok := fields["input"]
	if !ok || isNull(input) {
		return schemas.StepDirective{}, &ParseError{Reason: ReasonMalformedToolCall, Detail: `TOOL step requires "input"`}
	}
	d.Input = append(encodingjson.RawMessage(nil), input...)
	return d, nil
}

func isNull(raw encodingjson.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// contentText keeps string content verbatim and any other JSON value as its
// compact text, since content is opaque to the loop.
func contentText(raw encodingjson.RawMessage) string {
	var s string
	if err := jsonAPI.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := encodingjson.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
