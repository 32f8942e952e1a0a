package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/mirror-cli/internal/agent"
)

// isAbsoluteHTTP reports whether ref is an absolute http or https URL.
func isAbsoluteHTTP(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// urlBaseName returns the last path segment of rawURL with the query string
// and fragment dropped. It returns "" when the path has no usable segment.
func urlBaseName(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	switch base {
	case ".", "/", "..":
		return ""
	}
	return base
}

// AssetFileName is the file name an asset URL is stored under. Rewritten
// pages reference assets by the same name, so the two must agree.
func AssetFileName(rawURL string) string {
	if base := urlBaseName(rawURL); base != "" {
		return base
	}
	return "index"
}

// PageFileName is the local file name a hyperlink is rewritten to.
func PageFileName(rawURL string) string {
	base := urlBaseName(rawURL)
	if base == "" {
		return "index.html"
	}
	ext := strings.ToLower(path.Ext(base))
	if ext == ".html" || ext == ".htm" {
		return base
	}
	return base + ".html"
}

// resolveDir expands a leading ~ and cleans dir. Paths with parent
// references are refused since the directory comes from model output.
func resolveDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", agent.NewToolError(agent.ErrCodeInvalidInput, errors.New("output directory is empty"))
	}
	for _, part := range strings.FieldsFunc(filepath.ToSlash(dir), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return "", agent.NewToolError(agent.ErrCodeInvalidInput, fmt.Errorf("output directory %q must not contain '..'", dir))
		}
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", agent.NewToolError(agent.ErrCodeInvalidInput, fmt.Errorf("expand output directory %q: %w", dir, err))
	}
	return filepath.Clean(expanded), nil
}
