package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/andresmejia3/memento/internal/engine"
	"github.com/andresmejia3/memento/internal/overlay"
	"github.com/andresmejia3/memento/internal/store"
	"github.com/andresmejia3/memento/internal/types"
	"github.com/andresmejia3/memento/internal/utils"
	"github.com/andresmejia3/memento/internal/video"
	"github.com/andresmejia3/memento/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	replayOpts   Options
	replayInput  string
	replayOutput string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run the recognition loop over a recorded video",
	Long: `Decodes a video with ffmpeg and feeds it through the same loop as 'live'.
Annotated frames are written as numbered JPEGs to --output when it is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyConfig(cmd, &replayOpts, Cfg)
		return runReplay(cmd.Context(), replayOpts)
	},
}

func init() {
	bindOptions(replayCmd, &replayOpts)
	replayCmd.Flags().StringVarP(&replayInput, "input", "i", "", "Path to video")
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "", "Directory for annotated frames (optional)")
	replayCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(replayCmd)
}

// sighting aggregates how often one person was recognized during a replay.
type sighting struct {
	Name     string
	Relation string
	Frames   int
	Best     float64
}

func runReplay(ctx context.Context, opts Options) error {
	if err := validateReplayFlags(replayInput, &opts); err != nil {
		return err
	}
	if opts.Scope == "" {
		scope, err := pickScope(ctx, DB, os.Stdin, os.Stdout)
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

	totalFrames := utils.GetTotalFrames(ctx, replayInput)
	if totalFrames <= 0 {
		// Unknown length, show a spinner
		totalFrames = -1
	}
	bar := progressbar.NewOptions(totalFrames,
		progressbar.OptionSetDescription("🎞️  Memento Replay"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	sink, err := video.NewDirSink(replayOutput, bar)
	if err != nil {
		utils.ShowError("Failed to create output directory", err, nil)
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

	seen := make(map[string]*sighting)
	src := video.NewFileSource(replayInput)
	eng, err := engine.New(engine.Deps{
		Detector: w,
		Store:    store.New(DB, Log),
		Capture:  src,
		Display:  sink,
		Renderer: renderer,
		Logger:   Log,
	}, engine.Options{
		ShowStats:       opts.ShowFPS,
		RefreshOnReload: opts.RefreshOnReload,
		OnLoad: func(set *store.KnownFaceSet) {
			fmt.Fprintf(os.Stderr, "✅ Total faces loaded: %d\n", set.Len())
		},
		OnFrame: func(_ types.FrameState, results []types.MatchResult) {
			recordSightings(seen, results)
		},
	})
	if err != nil {
		return err
	}

	if err := eng.Start(ctx, opts.Scope, opts.Threshold, opts.SkipInterval); err != nil {
		cmd := src.Command()
		if cmd == nil {
			cmd = w.Cmd
		}
		utils.ShowError("Replay failed", err, cmd)
		return err
	}

	stats := eng.Stats()
	fmt.Fprintf(os.Stderr, "\n🏁 Replay Complete. Detected on %d of %d frames.\n", stats.Detections, stats.Frames)
	if replayOutput != "" {
		fmt.Fprintf(os.Stderr, "📁 Wrote %d frames to %s\n", sink.Frames(), replayOutput)
	}
	printSightings(os.Stdout, seen)
	return nil
}

func recordSightings(seen map[string]*sighting, results []types.MatchResult) {
	for _, r := range results {
		if !r.Matched {
			continue
		}
		s, ok := seen[r.PersonID]
		if !ok {
			s = &sighting{Name: r.Name, Relation: r.Relation, Best: r.Score}
			seen[r.PersonID] = s
		}
		s.Frames++
		if r.Score > s.Best {
			s.Best = r.Score
		}
	}
}

// printSightings lists recognized people, most frequent first.
func printSightings(out io.Writer, seen map[string]*sighting) {
	if len(seen) == 0 {
		fmt.Fprintln(out, "❌ Nobody from this scope was recognized.")
		return
	}

	list := make([]*sighting, 0, len(seen))
	for _, s := range seen {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Frames != list[j].Frames {
			return list[i].Frames > list[j].Frames
		}
		return list[i].Name < list[j].Name
	})

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tRELATION\tFRAMES\tBEST SCORE")
	fmt.Fprintln(w, "----\t--------\t------\t----------")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", s.Name, s.Relation, s.Frames, s.Best)
	}
	w.Flush()
}

func validateReplayFlags(input string, opts *Options) error {
	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			utils.ShowError("Input file does not exist", err, nil)
			return err
		}
		utils.ShowError("Unable to access input file", err, nil)
		return err
	}
	if info.IsDir() {
		err := fmt.Errorf("is a directory")
		utils.ShowError("Input path is a directory, expected a video file", err, nil)
		return err
	}
	if err := validateOptions(opts); err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	return nil
}
