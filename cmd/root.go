package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/memento/internal/config"
	"github.com/andresmejia3/memento/internal/database"
	"github.com/andresmejia3/memento/internal/utils"
	"github.com/spf13/cobra"
)

// Options holds shared configuration for the live and replay commands
type Options struct {
	Scope           string
	Threshold       float64
	SkipInterval    int
	Camera          int
	Style           string
	ShowFPS         bool
	RefreshOnReload bool
	DetectorCmd     string
	DetectorWidth   int
}

var (
	// DB is the people repository shared by subcommands
	DB database.Repository
	// Cfg is the resolved configuration (file, environment, then flags)
	Cfg *config.Config
	// Log is the structured logger of this run
	Log *slog.Logger

	dbURL      string
	configPath string
	logLevel   string
	logFormat  string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "memento",
	Short:   "Live face recognition for the people you should remember",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbURL != "" {
			Cfg.DatabaseURL = dbURL
		}
		if logLevel != "" {
			Cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			Cfg.LogFormat = logFormat
		}

		Log, err = utils.NewLogger(os.Stderr, Cfg.LogLevel, Cfg.LogFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(Log)

		// Use the command's context (which will be cancellable) for the connection
		DB, err = database.Open(cmd.Context(), Cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// The main context may already be cancelled by Ctrl+C
			DB.Close(context.Background())
		}
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "People database: PostgreSQL URL or sqlite://path (default: $MEMENTO_DATABASE_URL or postgres://localhost:5432/memento)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")
}
