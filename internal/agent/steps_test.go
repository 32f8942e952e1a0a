package agent

import (
	encodingjson "encoding/json"
	"errors"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
)

func TestParseStep_ValidKinds(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected schemas.StepDirective
	}{
		{
			name:     "start",
			raw:      `{"step":"START","content":"clone example.com"}`,
			expected: schemas.StepDirective{Kind: schemas.StepStart, Content: "clone example.com"},
		},
		{
			name:     "lower case kind is normalized",
			raw:      `{"step":"think","content":"hmm"}`,
			expected: schemas.StepDirective{Kind: schemas.StepThink, Content: "hmm"},
		},
		{
			name:     "empty content is still content",
			raw:      `{"step":"OUTPUT","content":""}`,
			expected: schemas.StepDirective{Kind: schemas.StepOutput, Content: ""},
		},
		{
			name:     "structured content is kept as compact text",
			raw:      `{"step":"OUTPUT","content":{"saved": [ "index.html" ]}}`,
			expected: schemas.StepDirective{Kind: schemas.StepOutput, Content: `{"saved":["index.html"]}`},
		},
		{
			name: "tool with string input",
			raw:  `{"step":"TOOL","tool_name":"fetchPage","input":"https://example.com"}`,
			expected: schemas.StepDirective{
				Kind: schemas.StepTool, ToolName: "fetchPage", Input: encodingjson.RawMessage(`"https://example.com"`),
			},
		},
		{
			name: "tool with object input and content",
			raw:  `{"step":"TOOL","content":"rewrite","tool_name":" rewriteHtmlForLocal ","input":{"html":"<p>","outDir":"out"}}`,
			expected: schemas.StepDirective{
				Kind: schemas.StepTool, Content: "rewrite", ToolName: "rewriteHtmlForLocal",
				Input: encodingjson.RawMessage(`{"html":"<p>","outDir":"out"}`),
			},
		},
		{
			name:     "fenced reply with prose",
			raw:      "Here is my next step:\n```json\n{\"step\":\"THINK\",\"content\":\"fetch first\"}\n```",
			expected: schemas.StepDirective{Kind: schemas.StepThink, Content: "fetch first"},
		},
		{
			name:     "observe parses so the loop can flag it",
			raw:      `{"step":"OBSERVE","content":"<html></html>"}`,
			expected: schemas.StepDirective{Kind: schemas.StepObserve, Content: "<html></html>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStep(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected.Kind, got.Kind)
			assert.Equal(t, tt.expected.Content, got.Content)
			assert.Equal(t, tt.expected.ToolName, got.ToolName)
			if tt.expected.Input != nil {
				assert.JSONEq(t, string(tt.expected.Input), string(got.Input))
			} else {
				assert.Nil(t, got.Input)
			}
		})
	}
}

func TestParseStep_Failures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason ParseReason
	}{
		{"plain prose", "I will now fetch the page.", ReasonInvalidJSON},
		{"empty reply", "", ReasonInvalidJSON},
		{"single quotes", `{'step':'THINK'}`, ReasonInvalidJSON},
		{"missing step", `{"content":"hi"}`, ReasonUnknownStep},
		{"unknown step", `{"step":"PLAN","content":"x"}`, ReasonUnknownStep},
		{"non string step", `{"step":3,"content":"x"}`, ReasonUnknownStep},
		{"tool without name", `{"step":"TOOL","input":"x"}`, ReasonMalformedToolCall},
		{"tool with blank name", `{"step":"TOOL","tool_name":"  ","input":"x"}`, ReasonMalformedToolCall},
		{"tool with numeric name", `{"step":"TOOL","tool_name":7,"input":"x"}`, ReasonMalformedToolCall},
		{"tool without input", `{"step":"TOOL","tool_name":"fetchPage"}`, ReasonMalformedToolCall},
		{"tool with null input", `{"step":"TOOL","tool_name":"fetchPage","input":null}`, ReasonMalformedToolCall},
		{"think without content", `{"step":"THINK"}`, ReasonMissingContent},
		{"output with null content", `{"step":"OUTPUT","content":null}`, ReasonMissingContent},
		{"two steps", "{\"step\":\"THINK\",\"content\":\"a\"}\n{\"step\":\"TOOL\",\"tool_name\":\"fetchPage\",\"input\":\"u\"}", ReasonMultipleSteps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStep(tt.raw)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
			assert.Equal(t, tt.reason, perr.Reason)
			assert.Equal(t, tt.raw, perr.Raw)
		})
	}
}

func TestParseStep_IgnoresNonStepObjects(t *testing.T) {
	raw := `Context: {"note":"ignore me"} then {"step":"THINK","content":"ok"}`
	got, err := ParseStep(raw)
	require.NoError(t, err)
	assert.Equal(t, schemas.StepThink, got.Kind)
}

// Every well-formed directive survives a serialize/parse cycle unchanged.
func TestParseStep_RoundTrip(t *testing.T) {
	directives := []schemas.StepDirective{
		{Kind: schemas.StepStart, Content: "goal"},
		{Kind: schemas.StepThink, Content: `quotes " and braces { }`},
		{Kind: schemas.StepTool, ToolName: "downloadAssets", Input: encodingjson.RawMessage(`{"assets":["https://a/b.png"],"outDir":"x"}`)},
		{Kind: schemas.StepObserve, Content: "<html><body>&amp;</body></html>"},
		{Kind: schemas.StepOutput, Content: "done"},
	}
	for _, d := range directives {
		t.Run(string(d.Kind), func(t *testing.T) {
			got, err := ParseStep(d.String())
			require.NoError(t, err)
			assert.Equal(t, d.Kind, got.Kind)
			assert.Equal(t, d.Content, got.Content)
			assert.Equal(t, d.ToolName, got.ToolName)
			if d.Input != nil {
				assert.JSONEq(t, string(d.Input), string(got.Input))
			}
		})
	}
}

// FuzzParseStep checks that arbitrary replies never panic and that every
// outcome is either a valid directive or a *ParseError.
func FuzzParseStep(f *testing.F) {
	f.Add([]byte(`{"step":"THINK","content":"x"}`))
	f.Add([]byte(`{"step":"TOOL","tool_name":"fetchPage","input":{"url":"u"}}`))
	f.Add([]byte("```json\n{\"step\":\"OUTPUT\"}\n```"))
	f.Add([]byte(`{{{"step"`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var reply struct {
			Prefix   string
			Step     string
			Content  string
			ToolName string
			Suffix   string
		}
		consumer := fuzz.NewConsumer(data)
		if err := consumer.GenerateStruct(&reply); err != nil {
			reply.Prefix = string(data)
		}

		candidates := []string{string(data)}
		if b, err := encodingjson.Marshal(map[string]string{
			"step": reply.Step, "content": reply.Content, "tool_name": reply.ToolName, "input": reply.Content,
		}); err == nil {
			candidates = append(candidates, reply.Prefix+string(b)+reply.Suffix)
		}

		for _, raw := range candidates {
			d, err := ParseStep(raw)
			if err != nil {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("unexpected error type %T", err)
				}
				continue
			}
			if !d.Kind.IsValid() {
				t.Fatalf("parsed invalid kind %q", d.Kind)
			}
			if d.Kind == schemas.StepTool && (d.ToolName == "" || len(d.Input) == 0) {
				t.Fatalf("tool step without name or input: %+v", d)
			}
		}
	})
}
