package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/callscale/callscore/internal/criteria"
	"github.com/callscale/callscore/internal/scorecard"
	"github.com/callscale/callscore/internal/summary"
)

func newSummarizeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "summarize <run-id> [<run-id>...]",
		Short: "Summarize feedback across completed runs into coaching tips",
		Long: `Summarize the feedback of one or more completed runs.

The feedback payloads of the named runs are condensed into three recurring
positives and three improvement areas with a single backend call.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
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

			var feedbacks []scorecard.FeedbackPayload
			for _, runID := range args {
				cp, err := store.Load(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if cp == nil {
					return fmt.Errorf("run %s not found", runID)
				}
				result, ok := cp.Completed[criteria.FeedbackCriterionID]
				if !ok {
					return fmt.Errorf("run %s has no feedback result yet", runID)
				}
				payload, err := scorecard.ParseFeedbackPayload(result.Payload)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
				feedbacks = append(feedbacks, *payload)
			}

			tips, err := summary.Summarize(cmd.Context(), client, feedbacks)
			if err != nil {
				return err
			}

			fmt.Printf("Summary of %d runs\n", len(feedbacks))
			fmt.Println("\nWhat went well:")
			for _, tip := range tips.PositiveTips {
				fmt.Printf("  + %s\n", tip)
			}
			fmt.Println("\nWhat to improve:")
			for _, tip := range tips.ImprovementTips {
				fmt.Printf("  - %s\n", tip)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./callscore.yaml if present)")
	return cmd
}
