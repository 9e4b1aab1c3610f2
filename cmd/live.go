package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/memento/internal/camera"
	"github.com/andresmejia3/memento/internal/engine"
	"github.com/andresmejia3/memento/internal/overlay"
	"github.com/andresmejia3/memento/internal/store"
	"github.com/andresmejia3/memento/internal/types"
	"github.com/andresmejia3/memento/internal/utils"
	"github.com/andresmejia3/memento/internal/worker"
	"github.com/spf13/cobra"
)

var liveOpts Options

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Recognize enrolled people on the webcam in real time",
	Long: `Opens the camera, detects faces every Nth frame and labels each one with the
closest enrolled person of the selected scope.

Keys: 'q' quits, 'r' reloads the people of the scope from the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyConfig(cmd, &liveOpts, Cfg)
		return runLive(cmd.Context(), liveOpts)
	},
}

func init() {
	bindOptions(liveCmd, &liveOpts)
	liveCmd.Flags().IntVarP(&liveOpts.Camera, "camera", "c", 0, "Camera device index")
	rootCmd.AddCommand(liveCmd)
}

func runLive(ctx context.Context, opts Options) error {
	if err := validateLiveFlags(&opts); err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}

	stdin := bufio.NewReader(os.Stdin)
	if opts.Scope == "" {
		scope, err := pickScope(ctx, DB, stdin, os.Stdout)
		if err != nil {
			utils.ShowError("No scope selected", err, nil)
			return err
		}
		opts.Scope = scope
	}

	renderer, err := overlay.New(opts.Style)
	if err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🚀 Starting AI Engine...")
	w, err := worker.NewPythonWorker(ctx, 0, worker.Config{
		Command:  opts.DetectorCmd,
		MaxWidth: opts.DetectorWidth,
	})
	if err != nil {
		utils.ShowError("Failed to start AI worker", err, nil)
		return err
	}
	defer w.Close()

	eng, err := engine.New(engine.Deps{
		Detector: w,
		Store:    store.New(DB, Log),
		Capture:  camera.NewWebcam(opts.Camera),
		Display:  camera.NewWindow("memento"),
		Renderer: renderer,
		Logger:   Log,
	}, engine.Options{
		ShowStats:       opts.ShowFPS,
		RefreshOnReload: opts.RefreshOnReload,
		OnLoad:          func(set *store.KnownFaceSet) { printLoaded(os.Stdout, set) },
		BeforeRun:       guardEmptyScope(opts.Scope, stdin, os.Stdout),
	})
	if err != nil {
		return err
	}

	fmt.Println("Press 'q' to quit / 'r' to reload")
	if err := eng.Start(ctx, opts.Scope, opts.Threshold, opts.SkipInterval); err != nil {
		utils.ShowError("Live recognition stopped", err, w.Cmd)
		return err
	}

	stats := eng.Stats()
	fmt.Fprintf(os.Stderr, "\n🏁 Stopped after %d frames (%d detections, %d reloads, %.1f FPS).\n",
		stats.Frames, stats.Detections, stats.Reloads, stats.FPS)
	return nil
}

// guardEmptyScope warns when the initially loaded set has nobody to match
// against (nothing enrolled, or the load failed) and asks whether to run anyway.
func guardEmptyScope(scope string, in *bufio.Reader, out io.Writer) func(*store.KnownFaceSet) bool {
	return func(set *store.KnownFaceSet) bool {
		if set.Len() > 0 {
			return true
		}
		fmt.Fprintf(out, "⚠️  No enrolled faces found for scope %q. Every face will be labeled %s.\n", scope, types.UnknownLabel)
		return confirm(in, out, "Continue anyway?")
	}
}

func validateLiveFlags(opts *Options) error {
	if opts.Camera < 0 {
		return fmt.Errorf("camera index must not be negative, got %d", opts.Camera)
	}
	return validateOptions(opts)
}
