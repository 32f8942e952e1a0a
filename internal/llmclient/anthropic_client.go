// internal/llmclient/anthropic_client.go
package llmclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
)

const (
	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicClient implements schemas.LLMClient for the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
	logger *zap.Logger
}

// NewAnthropicClient creates the client with SDK retries disabled.
func NewAnthropicClient(cfg config.LLMModelConfig, httpClient *http.Client, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(cfg.Model),
		logger: logger.Named("llm_client.anthropic"),
	}, nil
}

// buildAnthropicMessages maps the conversation onto user/assistant turns.
// Developer messages become user turns, and consecutive turns with the same
// role are merged because the API expects them to alternate.
func buildAnthropicMessages(req schemas.GenerationRequest) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	if prompt := req.SystemPrompt(); prompt != "" {
		system = []anthropic.TextBlockParam{{Text: prompt}}
	}

	var (
		messages []anthropic.MessageParam
		lastRole anthropic.MessageParamRole
	)
	for _, m := range req.Turns() {
		role := anthropic.MessageParamRoleUser
		if m.Role == schemas.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		block := anthropic.NewTextBlock(m.Content)
		if len(messages) > 0 && role == lastRole {
			last := &messages[len(messages)-1]
			last.Content = append(last.Content, block)
			continue
		}
		if role == anthropic.MessageParamRoleUser {
			messages = append(messages, anthropic.NewUserMessage(block))
		} else {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		}
		lastRole = role
	}
	return system, messages
}

// Generate sends the conversation and concatenates the text blocks of the reply.
func (c *AnthropicClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	system, messages := buildAnthropicMessages(req)
	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Messages:    messages,
		System:      system,
		Temperature: anthropic.Float(req.Options.Temperature),
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrapAnthropicError(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Info("LLM generation complete (Anthropic)",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", msg.Usage.InputTokens),
		zap.Int64("completion_tokens", msg.Usage.OutputTokens),
		zap.String("stop_reason", string(msg.StopReason)),
	)
	return text, nil
}

func wrapAnthropicError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Err: err}
	}
	return &StatusError{Provider: "anthropic", Err: err}
}

func (c *AnthropicClient) Close() error { return nil }
