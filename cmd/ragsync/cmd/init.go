package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qiao-925/ragsync/configs"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an annotated ragsync.yaml to the current directory",
		Long: `Create a ragsync.yaml configuration template in the current
directory. The file documents every setting and its default; settings
left commented out keep their built-in values.`,
		Example: `  # Create ragsync.yaml here
  ragsync init

  # Overwrite an existing config
  ragsync init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "ragsync.yaml"
			if configPath != "" {
				path = configPath
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Edit it, then run: ragsync sync <owner/name>\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
