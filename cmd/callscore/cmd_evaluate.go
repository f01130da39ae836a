package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/callscale/callscore/internal/criteria"
	"github.com/callscale/callscore/internal/models"
	"github.com/callscale/callscore/internal/orchestration"
	"github.com/callscale/callscore/internal/scorecard"
	"github.com/callscale/callscore/internal/transcript"
)

func newEvaluateCommand() *cobra.Command {
	var (
		profileFlag string
		runID       string
		configPath  string
		outputPath  string
		userID      string
		workers     int
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate <transcript>",
		Short: "Evaluate a transcript and produce a scorecard",
		Long: `Evaluate a conversation transcript against a profile's criterion set.

The transcript is a JSON or YAML file of role/content turns. Every criterion
is scored in parallel; pass --run-id to resume a previously interrupted run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return evaluateCommandE(cmd.Context(), args[0], profileFlag, runID, configPath, outputPath, userID, workers, verbose, cmd.Flags().Changed("workers"))
		},
	}

	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "Evaluation profile: customer or sales (required)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id for checkpointing and resumption (default: new UUID)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./callscore.yaml if present)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the scorecard")
	cmd.Flags().StringVar(&userID, "user-id", "", "User id recorded in the scorecard provenance")
	cmd.Flags().IntVar(&workers, "workers", 0, "Max concurrent backend calls (0 = one per criterion)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print per-criterion progress")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

func evaluateCommandE(ctx context.Context, transcriptPath, profileFlag, runID, configPath, outputPath, userID string, workers int, verbose, workersSet bool) error {
	profile, err := models.ParseProfile(profileFlag)
	if err != nil {
		return err
	}

	tr, err := transcript.Load(transcriptPath)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if workersSet {
		cfg.Run.Workers = workers
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if runID == "" {
		runID = uuid.NewString()
	}

	opts := []orchestration.Option{
		orchestration.WithWorkerLimit(cfg.Run.Workers),
		orchestration.WithTaskTimeout(cfg.Run.TaskTimeout.Std()),
		orchestration.WithMaxRetries(cfg.Run.MaxRetries),
		orchestration.WithRetryBase(cfg.Run.RetryBase.Std()),
	}
	if verbose {
		opts = append(opts, orchestration.WithProgressListener(printProgress))
	}

	orch := orchestration.New(criteria.NewRegistry(), client, store, opts...)

	fmt.Printf("Evaluating %s (profile: %s, run: %s)\n", transcriptPath, profile, runID)
	start := time.Now()

	sc, err := orch.Run(ctx, tr, profile, runID)
	if err != nil {
		return err
	}

	sc.Provenance = &models.Provenance{
		UserID:     userID,
		Timestamp:  start.UTC(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	printScorecard(os.Stdout, sc)

	if outputPath != "" {
		if err := saveScorecard(sc, outputPath); err != nil {
			return err
		}
		fmt.Printf("\nScorecard saved to: %s\n", outputPath)
	}

	return nil
}

func printProgress(e orchestration.ProgressEvent) {
	switch e.Type {
	case orchestration.EventRunResumed:
		fmt.Printf("Resuming run %s: %d/%d criteria already scored\n", e.RunID, e.Completed, e.Total)
	case orchestration.EventCriterionCompleted:
		fmt.Printf("  [%d/%d] %s\n", e.Completed, e.Total, e.CriterionID)
	case orchestration.EventCriterionRetried:
		fmt.Printf("  retrying %s (attempt %d)\n", e.CriterionID, e.Attempt)
	case orchestration.EventCriterionFailed:
		fmt.Printf("  FAILED %s: %v\n", e.CriterionID, e.Err)
	}
}

func saveScorecard(sc *scorecard.Scorecard, path string) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling scorecard: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing scorecard: %w", err)
	}
	return nil
}
