// File: internal/scraper/rewriter.go
package scraper

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RewriteStats counts the references changed by RewriteHTML.
type RewriteStats struct {
	Links  int
	Assets int
}

// assetAttr names the attribute that holds an asset URL for each element.
var assetAttr = map[atom.Atom]string{
	atom.Img:    "src",
	atom.Script: "src",
	atom.Link:   "href",
}

// RewriteHTML points absolute http(s) hyperlinks at local page files and
// absolute asset references at ./assets/. Relative references are left alone.
func RewriteHTML(doc string) (string, RewriteStats, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", RewriteStats{}, fmt.Errorf("parse html: %w", err)
	}

	var stats RewriteStats
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.A:
				if rewriteAttr(n, "href", PageFileName) {
					stats.Links++
				}
			case assetAttr[n.DataAtom] != "":
				if rewriteAttr(n, assetAttr[n.DataAtom], func(u string) string { return "./assets/" + AssetFileName(u) }) {
					stats.Assets++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", stats, fmt.Errorf("render html: %w", err)
	}
	return buf.String(), stats, nil
}

func rewriteAttr(n *html.Node, key string, local func(string) string) bool {
	for i, attr := range n.Attr {
		if attr.Namespace != "" || attr.Key != key {
			continue
		}
		if !isAbsoluteHTTP(attr.Val) {
			return false
		}
		n.Attr[i].Val = local(strings.TrimSpace(attr.Val))
		return true
	}
	return false
}

// SiteWriter saves rewritten pages to disk.
type SiteWriter struct {
	logger *zap.Logger
}

// NewSiteWriter creates a SiteWriter.
func NewSiteWriter(logger *zap.Logger) *SiteWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteWriter{logger: logger.Named("rewriter")}
}

// Save rewrites doc and writes it to <outDir>/index.html, creating outDir
// as needed. It returns the path written.
func (w *SiteWriter) Save(doc, outDir string) (string, error) {
	dir, err := resolveDir(outDir)
	if err != nil {
		return "", err
	}
	rewritten, stats, err := RewriteHTML(doc)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	target := filepath.Join(dir, "index.html")
	if err := writeFileAtomic(target, []byte(rewritten)); err != nil {
		return "", err
	}
	w.logger.Info("Page saved",
		zap.String("path", target),
		zap.Int("links_rewritten", stats.Links),
		zap.Int("assets_rewritten", stats.Assets),
	)
	return target, nil
}

// writeFileAtomic writes data to a temp file beside path and renames it into
// place so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
