// File: internal/scraper/assets.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/mirror-cli/internal/config"
	"github.com/xkilldash9x/mirror-cli/internal/network"
)

// AssetFailure describes one asset that could not be saved.
type AssetFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// AssetReport summarizes a download batch. Saved and Failed follow the order
// of the requested assets.
type AssetReport struct {
	Dir    string         `json:"dir"`
	Saved  []string       `json:"saved"`
	Failed []AssetFailure `json:"failed,omitempty"`
}

// String is the observation the model sees.
func (r *AssetReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assets saved in %s (%d saved, %d failed)", r.Dir, len(r.Saved), len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "\n- failed %s: %s", f.URL, f.Error)
	}
	return b.String()
}

// Downloader fetches static assets with bounded concurrency and a shared
// rate limit. It is safe for concurrent use.
type Downloader struct {
	client      *network.Client
	limiter     *rate.Limiter
	concurrency int
	userAgent   string
	maxBody     int64
	logger      *zap.Logger
}

// NewDownloader creates a Downloader. A nil client gets one built from cfg.
func NewDownloader(cfg config.NetworkConfig, client *network.Client, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = network.NewClient(network.ClientConfigFromNetwork(cfg, logger))
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Downloader{
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: concurrency,
		userAgent:   cfg.UserAgent,
		maxBody:     cfg.MaxBodyBytes,
		logger:      logger.Named("downloader"),
	}
}

type assetOutcome struct {
	url  string
	path string
	err  error
}

// Download saves each asset under outDir by its base name. A failing asset
// is logged and reported but never stops the rest of the batch. The only
// errors returned are for an unusable outDir or a canceled context.
func (d *Downloader) Download(ctx context.Context, assets []string, outDir string) (*AssetReport, error) {
	dir, err := resolveDir(outDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}

	unique := dedupe(assets)
	outcomes := make([]assetOutcome, len(unique))
	// Two URLs with the same base name would race on one file.
	var fileLocks sync.Map

	start := time.Now()
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i, assetURL := range unique {
		i, assetURL := i, assetURL
		g.Go(func() error {
			name := AssetFileName(assetURL)
			mu, _ := fileLocks.LoadOrStore(name, &sync.Mutex{})
			mu.(*sync.Mutex).Lock()
			defer mu.(*sync.Mutex).Unlock()

			path, err := d.fetchOne(ctx, assetURL, filepath.Join(dir, name))
			outcomes[i] = assetOutcome{url: assetURL, path: path, err: err}
			if err != nil {
				d.logger.Warn("Asset download failed", zap.String("url", assetURL), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &AssetReport{Dir: dir, Saved: []string{}}
	for _, o := range outcomes {
		if o.err != nil {
			report.Failed = append(report.Failed, AssetFailure{URL: o.url, Error: o.err.Error()})
			continue
		}
		report.Saved = append(report.Saved, o.path)
	}
	d.logger.Info("Asset batch finished",
		zap.String("dir", dir),
		zap.Int("saved", len(report.Saved)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (d *Downloader) fetchOne(ctx context.Context, assetURL, target string) (string, error) {
	if !isAbsoluteHTTP(assetURL) {
		return "", fmt.Errorf("not an absolute http(s) url")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(assetURL), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Encoding", network.AcceptEncoding)
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := network.DecompressBody(resp)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := d.writeLimited(target, body); err != nil {
		return "", err
	}
	return target, nil
}

var errTooLarge = errors.New("asset exceeds the maximum body size")

// writeLimited streams r into path through a temp file, enforcing maxBody.
func (d *Downloader) writeLimited(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if d.maxBody > 0 {
		src = io.LimitReader(r, d.maxBody+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if d.maxBody > 0 && n > d.maxBody {
		return fmt.Errorf("%w (%d bytes)", errTooLarge, d.maxBody)
	}
	return os.Rename(tmp.Name(), path)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
