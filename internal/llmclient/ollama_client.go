// internal/llmclient/ollama_client.go
package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient implements schemas.LLMClient for a local Ollama server. No API
// key is needed.
type OllamaClient struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

func NewOllamaClient(cfg config.LLMModelConfig, httpClient *http.Client, logger *zap.Logger) (*OllamaClient, error) {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaClient{
		client: api.NewClient(parsed, httpClient),
		model:  cfg.Model,
		logger: logger.Named("llm_client.ollama"),
	}, nil
}

func buildOllamaMessages(messages []schemas.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, m := range messages {
		role := string(m.Role)
		// Ollama has no developer role.
		if m.Role == schemas.RoleDeveloper {
			role = string(schemas.RoleUser)
		}
		result[i] = api.Message{Role: role, Content: m.Content}
	}
	return result
}

// Generate runs a single non-streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: buildOllamaMessages(req.Messages),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Options.Temperature,
		},
	}
	if req.Options.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.Options.MaxTokens
	}
	if req.Options.ForceJSONFormat {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	start := time.Now()
	var (
		b    strings.Builder
		last api.ChatResponse
	)
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		last = resp
		return nil
	})
	if err != nil {
		return "", wrapOllamaError(err)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Info("LLM generation complete (Ollama)",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", last.PromptEvalCount),
		zap.Int("completion_tokens", last.EvalCount),
	)
	return text, nil
}

func wrapOllamaError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &StatusError{Provider: "ollama", StatusCode: statusErr.StatusCode, Err: err}
	}
	var statusErrPtr *api.StatusError
	if errors.As(err, &statusErrPtr) {
		return &StatusError{Provider: "ollama", StatusCode: statusErrPtr.StatusCode, Err: err}
	}
	return &StatusError{Provider: "ollama", Err: err}
}

func (c *OllamaClient) Close() error { return nil }
