package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qiao-925/ragsync/internal/journal"
	"github.com/qiao-925/ragsync/internal/repo"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked repositories and their index state",
		Long: `Display the journal's view of every tracked repository: file count,
last indexed revision, and when the last sync completed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	keys := j.Refs()
	if len(keys) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No repositories tracked yet. Run 'ragsync sync owner/name' first.")
		return nil
	}

	entries := make(map[string]*journal.Entry, len(keys))
	for _, key := range keys {
		ref, err := repo.Parse(key)
		if err != nil {
			continue
		}
		entries[key] = j.Get(ref)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tFILES\tREVISION\tLAST INDEXED")
	for _, key := range keys {
		entry := entries[key]
		if entry == nil {
			continue
		}
		rev := entry.LastRevisionMarker
		if len(rev) > 12 {
			rev = rev[:12]
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			key, entry.FileCount, rev, entry.LastIndexedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
