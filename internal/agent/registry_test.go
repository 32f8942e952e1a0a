package agent

import (
	"context"
	encodingjson "encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type urlInput struct {
	URL string `json:"url"`
}

func echoURL(_ context.Context, in urlInput) (any, error) { return in.URL, nil }

func allTools(skip ToolName) []Tool {
	var tools []Tool
	for _, name := range ToolNames {
		if name == skip {
			continue
		}
		tools = append(tools, NewTool[urlInput](name, "desc", "{url}", echoURL))
	}
	return tools
}

func TestNewToolRegistry_Total(t *testing.T) {
	reg, err := NewToolRegistry(allTools("")...)
	require.NoError(t, err)

	assert.Equal(t, []string{"fetchPage", "rewriteHtmlForLocal", "downloadAssets", "discoverLinks"}, reg.Names())
	require.Len(t, reg.Tools(), len(ToolNames))
	for i, tool := range reg.Tools() {
		assert.Equal(t, ToolNames[i], tool.Name())
	}

	tool, ok := reg.Lookup("discoverLinks")
	require.True(t, ok)
	assert.Equal(t, ToolDiscoverLinks, tool.Name())

	_, ok = reg.Lookup("DiscoverLinks")
	assert.False(t, ok, "lookup is exact")
	_, ok = reg.Lookup("deleteEverything")
	assert.False(t, ok)
}

func TestNewToolRegistry_Rejects(t *testing.T) {
	t.Run("missing tool", func(t *testing.T) {
		_, err := NewToolRegistry(allTools(ToolDownloadAssets)...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing implementations for downloadAssets")
	})

	t.Run("duplicate tool", func(t *testing.T) {
		tools := append(allTools(""), NewTool[urlInput](ToolFetchPage, "again", "{url}", echoURL))
		_, err := NewToolRegistry(tools...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate tool "fetchPage"`)
	})

	t.Run("unknown tool", func(t *testing.T) {
		tools := append(allTools(""), NewTool[urlInput]("screenshot", "x", "{url}", echoURL))
		_, err := NewToolRegistry(tools...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"screenshot" is not a known tool`)
	})

	t.Run("nil tool", func(t *testing.T) {
		tools := append(allTools(""), nil)
		_, err := NewToolRegistry(tools...)
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewToolRegistry()
		require.Error(t, err)
		for _, name := range ToolNames {
			assert.Contains(t, err.Error(), string(name))
		}
	})
}

func TestNewTool_DecodesInput(t *testing.T) {
	tool := NewTool[urlInput](ToolFetchPage, "fetch", "{url}", echoURL)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"object", `{"url":"https://example.com"}`, "https://example.com"},
		{"stringified object", `"{\"url\":\"https://example.com/a\"}"`, "https://example.com/a"},
		{"stringified object with padding", `"  {\"url\":\"https://b.example\"}  "`, "https://b.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tool.Invoke(context.Background(), encodingjson.RawMessage(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTool_InvalidInput(t *testing.T) {
	called := false
	tool := NewTool[urlInput](ToolFetchPage, "fetch", "{url}", func(ctx context.Context, in urlInput) (any, error) {
		called = true
		return nil, nil
	})

	for _, input := range []string{`42`, `["a"]`, `"just words"`, `"[1,2"`} {
		_, err := tool.Invoke(context.Background(), encodingjson.RawMessage(input))
		require.Error(t, err, input)

		var terr *ToolError
		require.True(t, errors.As(err, &terr), input)
		assert.Equal(t, ErrCodeInvalidInput, terr.Code)
		assert.Contains(t, err.Error(), "fetchPage")
	}
	assert.False(t, called, "handler must not run on undecodable input")
}

func TestNewTool_HandlerErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	tool := NewTool[urlInput](ToolFetchPage, "fetch", "{url}", func(ctx context.Context, in urlInput) (any, error) {
		return nil, boom
	})
	_, err := tool.Invoke(context.Background(), encodingjson.RawMessage(`{"url":"u"}`))
	assert.ErrorIs(t, err, boom)
}

func TestBuildSystemPrompt_ListsEveryTool(t *testing.T) {
	reg, err := NewToolRegistry(allTools("")...)
	require.NoError(t, err)

	prompt := BuildSystemPrompt(reg)
	for _, name := range ToolNames {
		assert.Contains(t, prompt, "- "+string(name)+"({url}): desc")
	}
	for _, kind := range []string{"START", "THINK", "TOOL", "OBSERVE", "OUTPUT"} {
		assert.Contains(t, prompt, kind)
	}
	// Tools appear in advertised order.
	last := -1
	for _, name := range ToolNames {
		idx := strings.Index(prompt, "- "+string(name)+"(")
		assert.Greater(t, idx, last)
		last = idx
	}
}
