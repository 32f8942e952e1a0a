package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func newCloneCmd() *cobra.Command {
	var (
		outDir string
		extra  string
	)
	cloneCmd := &cobra.Command{
		Use:   "clone <url>",
		Short: "Clone a web page and its assets into a local folder",
		Long: `Asks the model to fetch the page at <url>, rewrite it for offline use,
download its assets and report where everything was saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := normalizeTarget(args[0])
			if err != nil {
				return err
			}
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			// --out is bound to mirror.output_dir by the root command.
			dir := cfg.Mirror().OutputDir
			return runGoal(cmd, buildCloneGoal(target, dir, extra), dir)
		},
	}
	cloneCmd.Flags().StringVarP(&outDir, "out", "o", "", "output folder (default from mirror.output_dir)")
	cloneCmd.Flags().StringVar(&extra, "goal", "", "additional instructions appended to the clone goal")
	return cloneCmd
}

// normalizeTarget adds https:// to bare hosts and rejects anything that is
// not an http(s) URL with a host.
func normalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: expected an http(s) URL", raw)
	}
	return u.String(), nil
}

func buildCloneGoal(target, outDir, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clone the web page at %s into the local folder %q so it can be browsed offline. ", target, outDir)
	b.WriteString("Fetch the page, save the rewritten HTML with rewriteHtmlForLocal, ")
	b.WriteString("download its CSS, JS, images and fonts into the assets subfolder with downloadAssets, ")
	b.WriteString("then give a short OUTPUT summary of what was saved.")
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString("\nAdditional instructions: ")
		b.WriteString(extra)
	}
	return b.String()
}
