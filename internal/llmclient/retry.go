// internal/llmclient/retry.go
package llmclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
)

// RetryingClient owns the retry contract for every provider: transient
// failures are retried with exponential backoff up to maxRetries extra
// attempts, everything else is returned at once. The caller's context
// bounds the total time spent, retries included.
type RetryingClient struct {
	next       schemas.LLMClient
	maxRetries int
	logger     *zap.Logger
	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

// NewRetryingClient wraps next. A negative maxRetries is treated as zero.
func NewRetryingClient(next schemas.LLMClient, maxRetries int, logger *zap.Logger) *RetryingClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingClient{
		next:       next,
		maxRetries: maxRetries,
		logger:     logger.Named("llm_retry"),
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	// The context deadline is the real bound.
	b.MaxElapsedTime = 0
	return b
}

// Generate calls the wrapped client, retrying transient failures.
func (c *RetryingClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	var reply string
	attempt := 0
	operation := func() error {
		attempt++
		out, err := c.next.Generate(ctx, req)
		if err != nil {
			if !IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		reply = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Transient model error, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.maxRetries),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return "", err
	}
	return reply, nil
}

// Close releases the wrapped client.
func (c *RetryingClient) Close() error {
	return c.next.Close()
}
