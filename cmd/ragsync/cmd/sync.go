package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qiao-925/ragsync/internal/async"
	"github.com/qiao-925/ragsync/internal/index"
	"github.com/qiao-925/ragsync/internal/journal"
	"github.com/qiao-925/ragsync/internal/repo"
	"github.com/qiao-925/ragsync/internal/source"
)

func newSyncCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sync <owner/name[@branch]>",
		Short: "Sync a repository into the vector index",
		Long: `Fetch the repository, detect changed files against the journal, and
index only the changes. The branch defaults to main.

Progress is printed once per second. Ctrl-C requests cancellation; the
run stops at the next stage boundary and completed work stays indexed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cmd, args[0], quiet)
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress output, print only the result")

	return cmd
}

func runSync(ctx context.Context, cmd *cobra.Command, refArg string, quiet bool) error {
	ref, err := repo.Parse(refArg)
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

	if async.HasIncompleteLock(cfg.DataDir) {
		fmt.Fprintln(cmd.OutOrStdout(), "Previous run was interrupted; resuming from journal state.")
	}

	connector := source.NewGitConnector(cfg.Source.BaseURL, cfg.Source.Token, cfg.WorkDir())
	if cfg.Source.CloneDepth > 0 {
		connector.Depth = cfg.Source.CloneDepth
	}
	if cfg.Source.Timeout > 0 {
		connector.Timeout = cfg.Source.Timeout
	}
	syncer := index.NewSyncer(cfg, j, connector)

	runner := async.NewRunner(async.RunnerConfig{DataDir: cfg.DataDir})
	runner.SyncFunc = func(ctx context.Context, run *async.Run) error {
		return syncer.Sync(ctx, ref, run)
	}

	handle, err := runner.Start(ctx, ref.Key())
	if err != nil {
		return err
	}

	// Ctrl-C requests a graceful stop; a second Ctrl-C kills the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(cmd.OutOrStdout(), "\nCancelling, finishing current item...")
		handle.Cancel()
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		_ = handle.Wait()
		close(done)
	}()

poll:
	for {
		select {
		case <-ticker.C:
			if !quiet {
				printSnapshot(cmd, handle.Progress().Snapshot())
			}
		case <-done:
			break poll
		}
	}

	snap := handle.Progress().Snapshot()
	switch snap.CurrentStage {
	case async.StageComplete:
		fmt.Fprintf(cmd.OutOrStdout(), "Sync complete for %s in %ds.\n", ref.Key(), snap.ElapsedSeconds)
		return nil
	case async.StageCancelled:
		fmt.Fprintf(cmd.OutOrStdout(), "Sync cancelled for %s; completed work is kept.\n", ref.Key())
		return nil
	default:
		return fmt.Errorf("sync failed: %s", snap.ErrorMessage)
	}
}

// printSnapshot renders one progress line.
func printSnapshot(cmd *cobra.Command, snap async.Snapshot) {
	if snap.IsComplete {
		return
	}
	if snap.IsQuantifiable && snap.ProgressTotal > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s: %d/%d (%.0f%%)\n",
			snap.CurrentStageIdx, snap.TotalStages, snap.CurrentStage,
			snap.ProgressCurrent, snap.ProgressTotal, snap.ProgressPercent)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s...\n",
		snap.CurrentStageIdx, snap.TotalStages, snap.CurrentStage)
}
