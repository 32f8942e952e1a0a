// File: internal/scraper/tools.go
package scraper

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mirror-cli/internal/agent"
)

// FetchPageInput accepts either a bare URL string or {"url": "..."}.
type FetchPageInput struct {
	URL string `json:"url"`
}

func (in *FetchPageInput) UnmarshalJSON(b []byte) error {
	var obj struct {
		URL string `json:"url"`
	}
	if err := unmarshalStringOrObject(b, &in.URL, &obj); err != nil {
		return err
	}
	if obj.URL != "" {
		in.URL = obj.URL
	}
	return nil
}

// DiscoverLinksInput accepts either raw HTML or {"html": "..."}.
type DiscoverLinksInput struct {
	HTML string `json:"html"`
}

func (in *DiscoverLinksInput) UnmarshalJSON(b []byte) error {
	var obj struct {
		HTML string `json:"html"`
	}
	if err := unmarshalStringOrObject(b, &in.HTML, &obj); err != nil {
		return err
	}
	if obj.HTML != "" {
		in.HTML = obj.HTML
	}
	return nil
}

// RewriteHTMLInput is the argument of rewriteHtmlForLocal.
type RewriteHTMLInput struct {
	HTML   string `json:"html"`
	OutDir string `json:"outDir"`
}

// DownloadAssetsInput is the argument of downloadAssets.
type DownloadAssetsInput struct {
	Assets []string `json:"assets"`
	OutDir string   `json:"outDir"`
}

// unmarshalStringOrObject decodes b into str when it is a JSON string, or
// into obj when it is an object. A string that itself holds a JSON object is
// decoded into obj.
func unmarshalStringOrObject(b []byte, str *string, obj any) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if trimmed := strings.TrimSpace(s); strings.HasPrefix(trimmed, "{") {
			if err := json.UnmarshalFromString(trimmed, obj); err == nil {
				return nil
			}
		}
		*str = s
		return nil
	}
	if len(b) > 0 && b[0] == '{' {
		return json.Unmarshal(b, obj)
	}
	return errors.New("expected a string or an object")
}

// Toolbox binds the scraper components to the agent's tool set.
type Toolbox struct {
	Fetcher    PageFetcher
	Writer     *SiteWriter
	Downloader *Downloader
	// OutputDir is used when a call omits outDir.
	OutputDir string
	Logger    *zap.Logger
}

// Tools returns one agent.Tool per registry name.
func (tb *Toolbox) Tools() []agent.Tool {
	return []agent.Tool{
		agent.NewTool[FetchPageInput](agent.ToolFetchPage,
			"Returns the rendered HTML of the page at the given URL.",
			"url: string",
			tb.fetchPage),
		agent.NewTool[RewriteHTMLInput](agent.ToolRewriteHTML,
			"Rewrites links and asset references in the HTML for offline use and saves it as index.html in outDir.",
			`{"html": string, "outDir": string}`,
			tb.rewriteHTML),
		agent.NewTool[DownloadAssetsInput](agent.ToolDownloadAssets,
			"Downloads assets (CSS, JS, images, fonts) by absolute URL and saves them in outDir.",
			`{"assets": string[], "outDir": string}`,
			tb.downloadAssets),
		agent.NewTool[DiscoverLinksInput](agent.ToolDiscoverLinks,
			"Extracts the absolute http(s) links in the HTML for further crawling.",
			"html: string",
			tb.discoverLinks),
	}
}

// Registry builds the total tool registry over this toolbox.
func (tb *Toolbox) Registry() (*agent.ToolRegistry, error) {
	return agent.NewToolRegistry(tb.Tools()...)
}

func (tb *Toolbox) fetchPage(ctx context.Context, in FetchPageInput) (any, error) {
	return tb.Fetcher.Fetch(ctx, in.URL)
}

func (tb *Toolbox) rewriteHTML(_ context.Context, in RewriteHTMLInput) (any, error) {
	if strings.TrimSpace(in.HTML) == "" {
		return nil, agent.NewToolError(agent.ErrCodeInvalidInput, errors.New("html is empty"))
	}
	outDir := in.OutDir
	if strings.TrimSpace(outDir) == "" {
		outDir = tb.OutputDir
	}
	path, err := tb.Writer.Save(in.HTML, outDir)
	if err != nil {
		return nil, err
	}
	return "HTML saved at " + path, nil
}

func (tb *Toolbox) downloadAssets(ctx context.Context, in DownloadAssetsInput) (any, error) {
	outDir := in.OutDir
	if strings.TrimSpace(outDir) == "" {
		outDir = filepath.Join(tb.OutputDir, "assets")
	}
	report, err := tb.Downloader.Download(ctx, in.Assets, outDir)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (tb *Toolbox) discoverLinks(_ context.Context, in DiscoverLinksInput) (any, error) {
	return DiscoverLinks(in.HTML), nil
}
