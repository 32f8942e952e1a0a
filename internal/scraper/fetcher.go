// File: internal/scraper/fetcher.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/internal/agent"
	"github.com/xkilldash9x/mirror-cli/internal/config"
)

// PageFetcher returns the rendered HTML of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// ChromeFetcher renders pages in a fresh headless Chrome per call, so no
// cookies or storage leak between fetches.
type ChromeFetcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewChromeFetcher creates a fetcher for the given browser settings.
func NewChromeFetcher(cfg config.BrowserConfig, logger *zap.Logger) *ChromeFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeFetcher{cfg: cfg, logger: logger.Named("fetcher")}
}

// getBrowserExecOptions builds the allocator options from config.
func getBrowserExecOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	// Required on hardened hosts and inside containers.
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	// DefaultExecAllocatorOptions is headless; only override when asked not to be.
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if key == "" {
			continue
		}
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// validatePageURL accepts absolute http and https URLs only.
func validatePageURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url %q: only http and https pages can be fetched", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", raw)
	}
	return u, nil
}

// serializeDocumentJS returns the doctype followed by the root element.
// documentElement.outerHTML alone drops the doctype, and a saved page
// without one renders in quirks mode.
const serializeDocumentJS = `(document.doctype ? new XMLSerializer().serializeToString(document.doctype) + "\n" : "") + document.documentElement.outerHTML`

// Fetch navigates to rawURL, waits for the page to settle and returns the
// serialized DOM. The result reflects script-driven changes, unlike a plain
// HTTP GET.
func (f *ChromeFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := validatePageURL(rawURL)
	if err != nil {
		return "", agent.NewToolError(agent.ErrCodeInvalidInput, err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, getBrowserExecOptions(f.cfg)...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(f.logger.Sugar().Debugf),
		chromedp.WithErrorf(f.logger.Sugar().Debugf),
	)
	defer cancelBrowser()

	selector := f.cfg.WaitSelector
	if selector == "" {
		selector = "body"
	}

	actions := []chromedp.Action{network.Enable()}
	if len(f.cfg.Headers) > 0 {
		headers := make(network.Headers, len(f.cfg.Headers))
		for k, v := range f.cfg.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	actions = append(actions,
		chromedp.Navigate(u.String()),
		chromedp.WaitReady(selector, chromedp.ByQuery),
	)
	if f.cfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(f.cfg.PostLoadWait))
	}

	var html string
	actions = append(actions, chromedp.Evaluate(serializeDocumentJS, &html))

	start := time.Now()
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("navigation to %s failed: %w", u, err)
	}

	f.logger.Debug("Page rendered",
		zap.String("url", u.String()),
		zap.Int("bytes", len(html)),
		zap.Duration("duration", time.Since(start)),
	)
	return html, nil
}
