package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
)

func TestStepDirective_MarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		directive schemas.StepDirective
		expected  string
	}{
		{
			name:      "think keeps content",
			directive: schemas.StepDirective{Kind: schemas.StepThink, Content: "fetch the page first"},
			expected:  `{"step":"THINK","content":"fetch the page first"}`,
		},
		{
			name:      "output with empty content still emits the field",
			directive: schemas.StepDirective{Kind: schemas.StepOutput},
			expected:  `{"step":"OUTPUT","content":""}`,
		},
		{
			name: "tool with string input",
			directive: schemas.StepDirective{
				Kind:     schemas.StepTool,
				ToolName: "fetchPage",
				Input:    json.RawMessage(`"https://example.com"`),
			},
			expected: `{"step":"TOOL","tool_name":"fetchPage","input":"https://example.com"}`,
		},
		{
			name: "tool with object input and content",
			directive: schemas.StepDirective{
				Kind:     schemas.StepTool,
				Content:  "saving",
				ToolName: "rewriteHtmlForLocal",
				Input:    json.RawMessage(`{"html":"<p>","outDir":"out"}`),
			},
			expected: `{"step":"TOOL","content":"saving","tool_name":"rewriteHtmlForLocal","input":{"html":"<p>","outDir":"out"}}`,
		},
		{
			name:      "tool without input serializes null",
			directive: schemas.StepDirective{Kind: schemas.StepTool, ToolName: "discoverLinks"},
			expected:  `{"step":"TOOL","tool_name":"discoverLinks","input":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.directive)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(b))
		})
	}
}

func TestStepDirective_StringDoesNotEscapeMarkup(t *testing.T) {
	obs := schemas.NewObservation(`<a href="x">&</a>`)
	assert.Equal(t, `{"step":"OBSERVE","content":"<a href=\"x\">&</a>"}`, obs.String())
}

func TestGenerationRequest_SystemPromptAndTurns(t *testing.T) {
	req := schemas.GenerationRequest{Messages: []schemas.Message{
		{Role: schemas.RoleSystem, Content: "rules"},
		{Role: schemas.RoleUser, Content: "goal"},
	}}
	assert.Equal(t, "rules", req.SystemPrompt())
	require.Len(t, req.Turns(), 1)
	assert.Equal(t, schemas.RoleUser, req.Turns()[0].Role)

	noSystem := schemas.GenerationRequest{Messages: []schemas.Message{{Role: schemas.RoleUser, Content: "goal"}}}
	assert.Empty(t, noSystem.SystemPrompt())
	assert.Len(t, noSystem.Turns(), 1)
}
