// internal/agent/registry.go
package agent

import (
	"bytes"
	"context"
	encodingjson "encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ToolName is the closed set of tools the agent can dispatch.
type ToolName string

const (
	ToolFetchPage      ToolName = "fetchPage"
	ToolRewriteHTML    ToolName = "rewriteHtmlForLocal"
	ToolDownloadAssets ToolName = "downloadAssets"
	ToolDiscoverLinks  ToolName = "discoverLinks"
)

// ToolNames lists every tool in the order they are advertised to the model.
var ToolNames = []ToolName{ToolFetchPage, ToolRewriteHTML, ToolDownloadAssets, ToolDiscoverLinks}

// IsValid reports whether n belongs to the closed tool set.
func (n ToolName) IsValid() bool {
	for _, known := range ToolNames {
		if n == known {
			return true
		}
	}
	return false
}

// Tool is one invocable operation. Invoke receives the raw "input" value of a
// TOOL step and returns a result that is reported back verbatim when it is a
// string, or JSON-encoded otherwise.
type Tool interface {
	Name() ToolName
	// Description is the one-line summary shown in the system prompt.
	Description() string
	// Signature describes the expected input shape for the model.
	Signature() string
	Invoke(ctx context.Context, input encodingjson.RawMessage) (any, error)
}

// ToolFunc is a strongly typed tool handler.
type ToolFunc[In any] func(ctx context.Context, in In) (any, error)

type typedTool[In any] struct {
	name        ToolName
	description string
	signature   string
	handler     ToolFunc[In]
}

// NewTool adapts a typed handler into a Tool. Input that does not decode into
// In is reported as an INVALID_INPUT failure before the handler runs.
func NewTool[In any](name ToolName, description, signature string, handler ToolFunc[In]) Tool {
	return &typedTool[In]{name: name, description: description, signature: signature, handler: handler}
}

func (t *typedTool[In]) Name() ToolName      { return t.name }
func (t *typedTool[In]) Description() string { return t.description }
func (t *typedTool[In]) Signature() string   { return t.signature }

func (t *typedTool[In]) Invoke(ctx context.Context, input encodingjson.RawMessage) (any, error) {
	in, err := decodeInput[In](input)
	if err != nil {
		return nil, NewToolError(ErrCodeInvalidInput, fmt.Errorf("input for %s does not match %s: %w", t.name, t.signature, err))
	}
	return t.handler(ctx, in)
}

// decodeInput decodes raw into In. Models often send structured input as a
// JSON string holding the document, so a string that fails to decode
// directly is unwrapped once and retried.
func decodeInput[In any](raw encodingjson.RawMessage) (In, error) {
	var in In
	err := jsonAPI.Unmarshal(raw, &in)
	if err == nil {
		return in, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return in, err
	}
	var inner string
	if jsonAPI.Unmarshal(trimmed, &inner) != nil {
		return in, err
	}
	inner = strings.TrimSpace(inner)
	if !strings.HasPrefix(inner, "{") && !strings.HasPrefix(inner, "[") {
		return in, err
	}
	var retry In
	if jsonAPI.UnmarshalFromString(inner, &retry) != nil {
		return in, err
	}
	return retry, nil
}

// ToolRegistry maps tool names to implementations. It is immutable after
// construction and safe for concurrent lookups.
type ToolRegistry struct {
	tools map[ToolName]Tool
}

// NewToolRegistry builds the registry and checks it is total: every name in
// ToolNames must be provided exactly once and nothing else may be.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[ToolName]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("tool registry: nil tool")
		}
		name := t.Name()
		if !name.IsValid() {
			return nil, fmt.Errorf("tool registry: %q is not a known tool", name)
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("tool registry: duplicate tool %q", name)
		}
		r.tools[name] = t
	}
	var missing []string
	for _, name := range ToolNames {
		if _, ok := r.tools[name]; !ok {
			missing = append(missing, string(name))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("tool registry: missing implementations for %s", strings.Join(missing, ", "))
	}
	return r, nil
}

// Lookup resolves a tool by the name the model used.
func (r *ToolRegistry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[ToolName(name)]
	return t, ok
}

// Tools returns the registered tools in advertised order.
func (r *ToolRegistry) Tools() []Tool {
	out := make([]Tool, 0, len(ToolNames))
	for _, name := range ToolNames {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the advertised tool names.
func (r *ToolRegistry) Names() []string {
	out := make([]string, 0, len(ToolNames))
	for _, name := range ToolNames {
		out = append(out, string(name))
	}
	return out
}
