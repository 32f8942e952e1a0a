// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements schemas.LLMClient for OpenAI-compatible chat
// completion APIs.
type OpenAIClient struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClient creates the client. The SDK's own retries are disabled so
// RetryingClient stays the single retry policy.
func NewOpenAIClient(cfg config.LLMModelConfig, httpClient *http.Client, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger.Named("llm_client.openai"),
	}, nil
}

func buildOpenAIMessages(messages []schemas.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case schemas.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case schemas.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		case schemas.RoleDeveloper:
			result[i] = openai.DeveloperMessage(msg.Content)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

func (c *OpenAIClient) buildParams(req schemas.GenerationRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    buildOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Options.Temperature),
	}
	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Options.MaxTokens))
	}
	if req.Options.ForceJSONFormat {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// Generate sends the conversation and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Info("LLM generation complete (OpenAI)",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int64("completion_tokens", completion.Usage.CompletionTokens),
		zap.Int64("total_tokens", completion.Usage.TotalTokens),
	)
	return completion.Choices[0].Message.Content, nil
}

func wrapOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "openai", StatusCode: apiErr.StatusCode, Err: err}
	}
	return &StatusError{Provider: "openai", Err: err}
}

func (c *OpenAIClient) Close() error { return nil }
