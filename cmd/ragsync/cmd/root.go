// Package cmd provides the CLI commands for ragsync.
package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/qiao-925/ragsync/internal/config"
	"github.com/qiao-925/ragsync/internal/logging"
	"github.com/qiao-925/ragsync/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ragsync CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragsync",
		Short: "Incremental document sync and vector indexing for repositories",
		Long: `ragsync keeps a local vector index in step with remote repositories.

It detects changed files with content hashing, re-indexes only what
changed, and journals vector IDs per file so partial runs resume
instead of starting over.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("ragsync version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ragsync.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupEnvironment
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupEnvironment loads .env and configures the default logger.
func setupEnvironment(_ *cobra.Command, _ []string) error {
	// Absent .env files are fine; real overrides come from the shell.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupDefault(logging.Config{
		Level:         level,
		FilePath:      cfg.Logging.FilePath,
		WriteToStderr: cfg.Logging.FilePath == "" || debugMode,
	})
	if err != nil {
		return err
	}
	loggingCleanup = cleanup

	slog.Debug("configuration loaded",
		slog.String("data_dir", cfg.DataDir),
		slog.String("config", configPath))
	return nil
}

// loadConfig reads the effective configuration for the current command.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = "ragsync.yaml"
	}
	return config.Load(path)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
