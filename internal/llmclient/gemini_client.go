// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
)

// GeminiClient implements schemas.LLMClient for the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiClient initializes the client. SDK-level retries are left to
// RetryingClient.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, httpClient *http.Client, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model, logger: logger.Named("llm_client.gemini")}, nil
}

// buildGeminiContents maps the conversation onto Gemini's two roles. The
// system message becomes the system instruction; developer messages are
// sent as user turns.
func buildGeminiContents(req schemas.GenerationRequest) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	if prompt := req.SystemPrompt(); prompt != "" {
		system = genai.NewContentFromText(prompt, genai.RoleUser)
	}
	turns := req.Turns()
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == schemas.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return system, contents
}

func (c *GeminiClient) buildConfig(req schemas.GenerationRequest, system *genai.Content) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(req.Options.Temperature)),
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if req.Options.ForceJSONFormat {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// Generate sends the conversation and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	system, contents := buildGeminiContents(req)

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.buildConfig(req, system))
	if err != nil {
		return "", wrapGeminiError(err)
	}
	if len(resp.Candidates) > 0 {
		switch resp.Candidates[0].FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
			return "", &StatusError{Provider: "gemini", StatusCode: http.StatusBadRequest,
				Err: fmt.Errorf("response blocked (reason: %s)", resp.Candidates[0].FinishReason)}
		}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	fields := []zap.Field{zap.Duration("duration", time.Since(start))}
	if u := resp.UsageMetadata; u != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", u.PromptTokenCount),
			zap.Int32("completion_tokens", u.CandidatesTokenCount),
			zap.Int32("total_tokens", u.TotalTokenCount),
		)
	}
	c.logger.Info("LLM generation complete (Gemini)", fields...)
	return text, nil
}

func wrapGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "gemini", StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Provider: "gemini", StatusCode: apiErrPtr.Code, Err: err}
	}
	return &StatusError{Provider: "gemini", Err: err}
}

// Close is a no-op; the SDK holds no resources beyond its HTTP client.
func (c *GeminiClient) Close() error { return nil }
