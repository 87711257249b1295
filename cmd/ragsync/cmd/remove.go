package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qiao-925/ragsync/internal/index"
	"github.com/qiao-925/ragsync/internal/journal"
	"github.com/qiao-925/ragsync/internal/repo"
	"github.com/qiao-925/ragsync/internal/source"
)

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <owner/name[@branch]>",
		Short: "Remove a repository's vectors and journal entry",
		Long: `Delete every vector indexed for the repository and drop its journal
entry. The local checkout is left in place and is reused if the
repository is synced again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := repo.Parse(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			j, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			if j.Get(ref) == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not tracked.\n", ref.Key())
				return nil
			}

			connector := source.NewGitConnector(cfg.Source.BaseURL, cfg.Source.Token, cfg.WorkDir())
			syncer := index.NewSyncer(cfg, j, connector)
			if err := syncer.RemoveRepository(cmd.Context(), ref); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the index.\n", ref.Key())
			return nil
		},
	}

	return cmd
}
