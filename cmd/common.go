package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andresmejia3/memento/internal/config"
	"github.com/andresmejia3/memento/internal/database"
	"github.com/andresmejia3/memento/internal/store"
	"github.com/spf13/cobra"
)

// bindOptions registers the recognition flags shared by live and replay.
func bindOptions(c *cobra.Command, opts *Options) {
	c.Flags().StringVarP(&opts.Scope, "scope", "u", "", "Scope (owner user ID) whose people are recognized; prompts when empty")
	c.Flags().Float64VarP(&opts.Threshold, "threshold", "t", 0.3, "Minimum cosine similarity for a match")
	c.Flags().IntVarP(&opts.SkipInterval, "skip", "n", 3, "Run face detection every Nth frame")
	c.Flags().StringVar(&opts.Style, "style", "box", "Overlay style: box, card")
	c.Flags().BoolVar(&opts.ShowFPS, "show-fps", true, "Draw FPS and face count")
	c.Flags().BoolVar(&opts.RefreshOnReload, "refresh-on-reload", true, "Re-run detection right after a reload")
	c.Flags().StringVar(&opts.DetectorCmd, "detector", "", "Face worker command (default: python3 -u python/face_worker.py)")
	c.Flags().IntVar(&opts.DetectorWidth, "detector-width", 0, "Downscale frames wider than this before detection (0 = never)")
}

// applyConfig fills every option whose flag was not set explicitly from cfg.
func applyConfig(c *cobra.Command, opts *Options, cfg *config.Config) {
	if cfg == nil {
		return
	}
	changed := func(name string) bool {
		f := c.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if !changed("threshold") {
		opts.Threshold = cfg.Live.Threshold
	}
	if !changed("skip") {
		opts.SkipInterval = cfg.Live.SkipInterval
	}
	if !changed("camera") {
		opts.Camera = cfg.Live.Camera
	}
	if !changed("style") {
		opts.Style = cfg.Live.Style
	}
	if !changed("show-fps") {
		opts.ShowFPS = cfg.Live.ShowFPS
	}
	if !changed("refresh-on-reload") {
		opts.RefreshOnReload = cfg.Live.RefreshOnReload
	}
	if !changed("detector") {
		opts.DetectorCmd = cfg.Detector.Command
	}
	if !changed("detector-width") {
		opts.DetectorWidth = cfg.Detector.MaxWidth
	}
}

// validateOptions checks the shared recognition flags.
func validateOptions(opts *Options) error {
	if opts.Threshold < -1.0 || opts.Threshold > 1.0 {
		return fmt.Errorf("threshold must be between -1.0 and 1.0, got %f", opts.Threshold)
	}
	if opts.SkipInterval < 1 {
		return fmt.Errorf("skip must be at least 1, got %d", opts.SkipInterval)
	}
	if opts.Style != "box" && opts.Style != "card" {
		return fmt.Errorf("invalid style '%s'. Must be 'box' or 'card'", opts.Style)
	}
	if opts.DetectorWidth < 0 {
		return fmt.Errorf("detector-width must not be negative, got %d", opts.DetectorWidth)
	}
	return nil
}

// pickScope lists the known scopes and asks for one by number.
func pickScope(ctx context.Context, repo database.Repository, in io.Reader, out io.Writer) (string, error) {
	scopes, err := repo.Scopes(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list scopes: %w", err)
	}
	if len(scopes) == 0 {
		return "", fmt.Errorf("no people found in the database")
	}

	fmt.Fprintln(out, "Available scopes:")
	for i, s := range scopes {
		fmt.Fprintf(out, "  %d. %s\n", i+1, s)
	}
	fmt.Fprintf(out, "Select scope (1-%d): ", len(scopes))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no scope selected")
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(scopes) {
		return "", fmt.Errorf("invalid selection %q", strings.TrimSpace(line))
	}
	return scopes[n-1], nil
}

func confirm(r *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (y/n): ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// printLoaded prints one status line per enrolled person and the total.
func printLoaded(out io.Writer, set *store.KnownFaceSet) {
	for _, p := range set.Records() {
		if p.Relation != "" {
			fmt.Fprintf(out, "  Loaded: %s (%s)\n", p.Name, p.Relation)
		} else {
			fmt.Fprintf(out, "  Loaded: %s\n", p.Name)
		}
	}
	fmt.Fprintf(out, "✅ Total faces loaded: %d\n", set.Len())
}
