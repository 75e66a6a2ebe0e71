// Package cli provides the command-line interface for docchat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raglab/docchat/internal/app"
	"github.com/raglab/docchat/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string
	sessionID  string

	// Global config and wired pipeline
	cfg      config.Config
	pipeline *app.App
	cleanup  func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your documents",
	Long: `Docchat answers natural-language questions strictly from documents
you upload. Documents are parsed, chunked, embedded, and indexed for
semantic retrieval; answers are generated from the retrieved passages
and carry citations back to their source chunks.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip pipeline wiring for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, loggerCleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		cleanup = loggerCleanup

		pipeline, err = app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("wire pipeline: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pipeline != nil {
			if err := pipeline.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close backends: %v\n", err)
			}
		}
		if cleanup != nil {
			_ = cleanup()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "default", "conversation session id")

	// Add subcommands
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(serveCmd)
}
