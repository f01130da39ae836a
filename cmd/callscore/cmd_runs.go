package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted evaluation runs",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./callscore.yaml if present)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List checkpointed runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			summaries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			fmt.Printf("%-38s %-10s %-10s %-8s %s\n", "RUN", "PROFILE", "COMPLETED", "PENDING", "TERMINAL")
			for _, s := range summaries {
				fmt.Printf("%-38s %-10s %-10d %-8d %v\n", s.RunID, s.Profile, s.Completed, s.Pending, s.Terminal)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a checkpointed run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted run %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list)
	cmd.AddCommand(del)
	return cmd
}
