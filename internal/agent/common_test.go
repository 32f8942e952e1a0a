package agent

import (
	"context"
	encodingjson "encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
)

// scriptedReply is one canned model answer.
type scriptedReply struct {
	text string
	err  error
	// wait blocks the reply until the request context is done.
	wait bool
}

// scriptedModel replays replies in order and records every request.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []schemas.GenerationRequest
}

func newScriptedModel(replies ...string) *scriptedModel {
	m := &scriptedModel{}
	for _, r := range replies {
		m.replies = append(m.replies, scriptedReply{text: r})
	}
	return m
}

func (m *scriptedModel) then(r scriptedReply) *scriptedModel {
	m.replies = append(m.replies, r)
	return m
}

var errScriptExhausted = errors.New("scripted model has no replies left")

func (m *scriptedModel) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		m.mu.Unlock()
		return "", errScriptExhausted
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	m.mu.Unlock()

	if next.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return next.text, next.err
}

func (m *scriptedModel) Close() error { return nil }

func (m *scriptedModel) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// toolCall records one invocation seen by a fake tool.
type toolCall struct {
	name  ToolName
	input string
}

// fakeTools builds a total registry whose tools record their calls. Handlers
// in overrides replace the default "ok" behaviour for specific tools.
type fakeTools struct {
	mu    sync.Mutex
	calls []toolCall
}

func (f *fakeTools) registry(t *testing.T, overrides map[ToolName]ToolFunc[encodingjson.RawMessage]) *ToolRegistry {
	t.Helper()
	var tools []Tool
	for _, name := range ToolNames {
		name := name
		handler := overrides[name]
		tools = append(tools, NewTool[encodingjson.RawMessage](name, "fake "+string(name), "any", func(ctx context.Context, in encodingjson.RawMessage) (any, error) {
			f.mu.Lock()
			f.calls = append(f.calls, toolCall{name: name, input: string(in)})
			f.mu.Unlock()
			if handler != nil {
				return handler(ctx, in)
			}
			return "ok", nil
		}))
	}
	reg, err := NewToolRegistry(tools...)
	require.NoError(t, err)
	return reg
}

func (f *fakeTools) recorded() []toolCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]toolCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		MaxIterations:        20,
		MaxConsecutiveErrors: 4,
		ModelTimeout:         2 * time.Second,
		ToolTimeout:          2 * time.Second,
	}
}

// stepJSON renders a directive the way a well-behaved model would.
func stepJSON(d schemas.StepDirective) string {
	return d.String()
}

func think(content string) string {
	return stepJSON(schemas.StepDirective{Kind: schemas.StepThink, Content: content})
}

func toolStep(name ToolName, input string) string {
	return stepJSON(schemas.StepDirective{Kind: schemas.StepTool, ToolName: string(name), Input: encodingjson.RawMessage(input)})
}

func output(content string) string {
	return stepJSON(schemas.StepDirective{Kind: schemas.StepOutput, Content: content})
}

// decodeObservation extracts the content of a developer OBSERVE message.
func decodeObservation(t *testing.T, msg schemas.Message) string {
	t.Helper()
	require.Equal(t, schemas.RoleDeveloper, msg.Role)
	step, err := ParseStep(msg.Content)
	require.NoError(t, err)
	require.Equal(t, schemas.StepObserve, step.Kind)
	return step.Content
}
