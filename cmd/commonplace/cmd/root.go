// Package cmd provides the maintenance CLI for the commonplace search
// engine. The engine itself is an in-process library; these commands
// are developer and maintenance tooling around it.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/commonplacehq/commonplace/internal/config"
	"github.com/commonplacehq/commonplace/internal/filestore"
	"github.com/commonplacehq/commonplace/internal/logging"
	"github.com/commonplacehq/commonplace/internal/search"
	"github.com/commonplacehq/commonplace/internal/store"
	"github.com/commonplacehq/commonplace/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the commonplace CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commonplace",
		Short: "Full-text search engine for personal quote and note collections",
		Long: `Commonplace indexes quotes and notes into an embedded full-text
search engine: short entries are indexed whole, long documents are
split into sentence-aligned chunks, and ranked search merges content
and author matches.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("commonplace version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSimilarCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// openEngine wires store, file store, and orchestrator from config and
// initializes the index. Callers own the returned orchestrator's Close.
func openEngine(ctx context.Context) (*search.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	files, err := filestore.New(cfg.FileStorePath())
	if err != nil {
		return nil, err
	}

	index := store.NewSQLiteIndex(cfg.DatabasePath(), slog.Default())
	orch := search.New(index, files, cfg, slog.Default())
	if err := orch.Initialize(ctx); err != nil {
		return nil, err
	}
	return orch, nil
}
