package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/callscale/callscore/internal/criteria"
	"github.com/callscale/callscore/internal/models"
)

func newCriteriaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "criteria <profile>",
		Short: "List the criterion set of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := models.ParseProfile(args[0])
			if err != nil {
				return err
			}

			ids, err := criteria.NewRegistry().IDs(profile)
			if err != nil {
				return err
			}

			fmt.Printf("Profile %s (%d criteria):\n", profile, len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
}
