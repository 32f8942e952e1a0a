package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/api/schemas"
	"github.com/xkilldash9x/mirror-cli/internal/agent"
	"github.com/xkilldash9x/mirror-cli/internal/config"
	"github.com/xkilldash9x/mirror-cli/internal/llmclient"
	"github.com/xkilldash9x/mirror-cli/internal/network"
	"github.com/xkilldash9x/mirror-cli/internal/observability"
	"github.com/xkilldash9x/mirror-cli/internal/scraper"
)

// Construction hooks, replaced in tests.
var (
	newLLMClient   = llmclient.NewClient
	newPageFetcher = func(cfg config.BrowserConfig, logger *zap.Logger) scraper.PageFetcher {
		return scraper.NewChromeFetcher(cfg, logger)
	}
)

// session holds everything one agent run needs.
type session struct {
	agent      *agent.Agent
	client     schemas.LLMClient
	httpClient *network.Client
	logger     *zap.Logger
}

func newSession(ctx context.Context, cfg config.Interface, outDir string, logger *zap.Logger) (*session, error) {
	httpClient := network.NewClient(network.ClientConfigFromNetwork(cfg.Network(), logger))
	toolbox := &scraper.Toolbox{
		Fetcher:    newPageFetcher(cfg.Browser(), logger),
		Writer:     scraper.NewSiteWriter(logger),
		Downloader: scraper.NewDownloader(cfg.Network(), httpClient, logger),
		OutputDir:  outDir,
		Logger:     logger,
	}
	registry, err := toolbox.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}

	client, err := newLLMClient(ctx, cfg.Agent().LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	var opts []agent.Option
	if mc := cfg.Metrics(); mc.Enabled {
		metrics := observability.NewMetrics()
		if _, err := observability.ServeMetrics(ctx, mc.Address, metrics, logger); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		opts = append(opts, agent.WithMetrics(metrics))
	}

	a, err := agent.New(cfg.Agent(), client, registry, logger, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &session{agent: a, client: client, httpClient: httpClient, logger: logger}, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Warn("Failed to close LLM client", zap.Error(err))
	}
	s.httpClient.CloseIdleConnections()
}

// runGoal executes one agent run and prints its output to the command's
// stdout.
func runGoal(cmd *cobra.Command, goal, outDir string) error {
	ctx := cmd.Context()
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()

	s, err := newSession(ctx, cfg, outDir, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.agent.Run(ctx, goal)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	logger.Info("Run complete", zap.String("run_id", result.RunID), zap.Int("iterations", result.Iterations))
	fmt.Fprintln(cmd.OutOrStdout(), result.Output)
	return nil
}
