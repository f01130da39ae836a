package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/callscale/callscore/internal/checkpoint"
	"github.com/callscale/callscore/internal/config"
	"github.com/callscale/callscore/internal/evaluator"
	"github.com/callscale/callscore/internal/logging"
)

var version = "dev"

const defaultConfigFile = "callscore.yaml"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callscore",
		Short: "Callscore - scores call transcripts against fixed criterion sets",
		Long: `Callscore evaluates conversation transcripts with an LLM backend.

Every criterion of the selected profile is scored in parallel, progress is
checkpointed per run id, and complete runs assemble into a scorecard.
Rerunning a failed run id retries only the criteria that are still pending.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logging.Init(*debugLogging)
	}

	// Add subcommands
	cmd.AddCommand(newEvaluateCommand())
	cmd.AddCommand(newCriteriaCommand())
	cmd.AddCommand(newRunsCommand())
	cmd.AddCommand(newSummarizeCommand())
	cmd.AddCommand(newInitCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

// loadConfig reads the config named by the flag, falling back to
// ./callscore.yaml when present and plain defaults otherwise.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	return config.Load(path)
}

// openStore builds the configured checkpoint store. The returned close
// function is a no-op for stores without external resources.
func openStore(cfg *config.Config) (checkpoint.Store, func(), error) {
	switch cfg.Checkpoint.Kind {
	case "memory":
		return checkpoint.NewMemoryStore(), func() {}, nil
	case "file":
		return checkpoint.NewFileStore(cfg.Checkpoint.Path), func() {}, nil
	case "sqlite":
		store, err := checkpoint.NewSQLiteStore(cfg.Checkpoint.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint kind %q", cfg.Checkpoint.Kind)
	}
}

func buildClient(cfg *config.Config) (evaluator.Client, error) {
	client, err := evaluator.New(cfg.Backend.Kind, cfg.Backend.Params)
	if err != nil {
		return nil, fmt.Errorf("building %s backend: %w", cfg.Backend.Kind, err)
	}
	return client, nil
}
