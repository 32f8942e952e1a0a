// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
)

// NewClient builds the provider client named by cfg.Provider and wraps it in
// a RetryingClient. The provider SDKs never retry on their own.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	return newClientWithHTTP(ctx, cfg, nil, logger)
}

func newClientWithHTTP(ctx context.Context, cfg config.LLMModelConfig, httpClient *http.Client, logger *zap.Logger) (schemas.LLMClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider != config.ProviderOllama && cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q: set MIRROR_LLM_API_KEY or the provider's own key variable", cfg.Provider)
	}

	var (
		client schemas.LLMClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err = NewGeminiClient(ctx, cfg, httpClient, logger)
	case config.ProviderOpenAI:
		client, err = NewOpenAIClient(cfg, httpClient, logger)
	case config.ProviderAnthropic:
		client, err = NewAnthropicClient(cfg, httpClient, logger)
	case config.ProviderOllama:
		client, err = NewOllamaClient(cfg, httpClient, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s, %s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderOllama)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("LLM client ready",
		zap.String("provider", string(cfg.Provider)),
		zap.String("model", cfg.Model),
		zap.Int("max_retries", cfg.MaxRetries),
	)
	return NewRetryingClient(client, cfg.MaxRetries, logger), nil
}
