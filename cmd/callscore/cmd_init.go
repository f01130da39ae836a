package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/callscale/callscore/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a starter callscore.yaml",
		Long: `Create a starter configuration through a guided wizard.

The wizard asks for the evaluation backend, model, and checkpoint store,
then writes a callscore.yaml into the target directory (default: current
directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return initCommandE(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing callscore.yaml")
	return cmd
}

func initCommandE(cmd *cobra.Command, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	target := filepath.Join(dir, defaultConfigFile)
	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", target)
	}

	spec, err := wizard.RunConfigWizard(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	content, err := wizard.GenerateConfigYAML(spec)
	if err != nil {
		return err
	}

	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	fmt.Printf("Created %s\n", target)
	return nil
}
