package cmd

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/memento/internal/match"
	"github.com/andresmejia3/memento/internal/store"
	"github.com/andresmejia3/memento/internal/types"
	"github.com/andresmejia3/memento/internal/utils"
	"github.com/andresmejia3/memento/internal/worker"
	"github.com/spf13/cobra"
)

var identifyOpts Options

var identifyCmd = &cobra.Command{
	Use:   "identify <image_path>",
	Short: "Identify the faces in a still image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyConfig(cmd, &identifyOpts, Cfg)
		return runIdentify(cmd.Context(), args[0], identifyOpts)
	},
}

func init() {
	identifyCmd.Flags().StringVarP(&identifyOpts.Scope, "scope", "u", "", "Scope whose people are matched")
	identifyCmd.Flags().Float64VarP(&identifyOpts.Threshold, "threshold", "t", 0.3, "Minimum cosine similarity for a match")
	identifyCmd.Flags().StringVar(&identifyOpts.DetectorCmd, "detector", "", "Face worker command")
	identifyCmd.MarkFlagRequired("scope")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(ctx context.Context, imagePath string, opts Options) error {
	if opts.Threshold < -1.0 || opts.Threshold > 1.0 {
		err := fmt.Errorf("threshold must be between -1.0 and 1.0, got %f", opts.Threshold)
		utils.ShowError("Configuration Error", err, nil)
		return err
	}

	frame, err := readImage(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	set, err := store.New(DB, Log).Load(ctx, opts.Scope)
	if err != nil {
		utils.ShowError("Failed to load people", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🚀 Starting AI Engine...")
	// We use ID 0 for this ad-hoc worker
	w, err := worker.NewPythonWorker(ctx, 0, worker.Config{Command: opts.DetectorCmd, MaxWidth: opts.DetectorWidth})
	if err != nil {
		utils.ShowError("Failed to start AI worker", err, nil)
		return err
	}
	defer w.Close()

	fmt.Fprintln(os.Stderr, "🔍 Analyzing faces...")
	faces, err := w.Detect(ctx, frame)
	if err != nil {
		utils.ShowError("AI processing failed", err, w.Cmd)
		return err
	}
	if len(faces) == 0 {
		fmt.Println("❌ No faces detected in the provided image.")
		return nil
	}

	printMatches(os.Stdout, faces, match.MatchAll(faces, set, opts.Threshold))
	return nil
}

func readImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return utils.ToRGBA(img), nil
}

func printMatches(out io.Writer, faces []types.DetectedFace, results []types.MatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FACE\tBOX\tNAME\tRELATION\tSCORE")
	fmt.Fprintln(w, "----\t---\t----\t--------\t-----")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%v\t%s\t%s\t%.2f\n", i+1, faces[i].Box, r.Name, r.Relation, r.Score)
	}
	w.Flush()
}
