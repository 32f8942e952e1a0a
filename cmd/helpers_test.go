package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/config"
	"github.com/xkilldash9x/mirror-cli/internal/scraper"
)

// scriptedClient replays canned replies and records each request.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []string
	requests []schemas.GenerationRequest
	closed   bool
}

func (c *scriptedClient) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	return next, nil
}

func (c *scriptedClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// staticFetcher serves one fixed document for every URL.
type staticFetcher struct {
	doc     string
	fetched []string
}

func (f *staticFetcher) Fetch(_ context.Context, rawURL string) (string, error) {
	f.fetched = append(f.fetched, rawURL)
	return f.doc, nil
}

// useFakes swaps the construction hooks for the duration of the test.
func useFakes(t *testing.T, client *scriptedClient, fetcher scraper.PageFetcher) {
	t.Helper()
	origClient, origFetcher := newLLMClient, newPageFetcher
	newLLMClient = func(context.Context, config.LLMModelConfig, *zap.Logger) (schemas.LLMClient, error) {
		return client, nil
	}
	newPageFetcher = func(config.BrowserConfig, *zap.Logger) scraper.PageFetcher {
		return fetcher
	}
	t.Cleanup(func() {
		newLLMClient, newPageFetcher = origClient, origFetcher
	})
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// executeCommand runs a fresh command tree and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
