package llmclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
)

// MockLLMClient is a mock implementation of the LLMClient interface for testing.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// setupTestLogger returns a logger whose output can be inspected.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func getValidLLMConfig(provider config.LLMProvider) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:    provider,
		APIKey:      "test-api-key",
		Model:       "test-model",
		Temperature: 0.2,
		MaxTokens:   512,
		MaxRetries:  2,
		ForceJSON:   true,
	}
}

// createTestRequest is a short conversation in the shape the agent sends.
func createTestRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		Messages: []schemas.Message{
			{Role: schemas.RoleSystem, Content: "System prompt instructions."},
			{Role: schemas.RoleUser, Content: "Clone https://example.com"},
			{Role: schemas.RoleAssistant, Content: `{"step":"THINK","content":"fetch it"}`},
			{Role: schemas.RoleDeveloper, Content: `{"step":"OBSERVE","content":"<html></html>"}`},
		},
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
			MaxTokens:       512,
		},
	}
}

// capturedRequest holds the last request a provider stub received.
type capturedRequest struct {
	Path string
	Body map[string]any
}

// providerStub answers every request with status and body, recording what it saw.
func providerStub(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &captured.Body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, captured
}
