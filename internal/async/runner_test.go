package async

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_StartRunsInBackground(t *testing.T) {
	// Given: a runner with a quick task
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})
	var ran atomic.Bool
	runner.SyncFunc = func(ctx context.Context, run *Run) error {
		ran.Store(true)
		return nil
	}

	// When: starting
	handle, err := runner.Start(context.Background(), "o/r@main")
	require.NoError(t, err)

	// Then: the work runs and the handle completes successfully
	require.NoError(t, handle.Wait())
	assert.True(t, ran.Load())
	assert.True(t, handle.IsComplete())
	assert.True(t, handle.IsSuccess())
	assert.Equal(t, StageComplete, handle.Progress().Stage())
}

func TestRunner_RequiresSyncFunc(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})
	_, err := runner.Start(context.Background(), "o/r@main")
	assert.Error(t, err)
}

func TestRunner_RejectsConcurrentRuns(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})
	release := make(chan struct{})
	runner.SyncFunc = func(ctx context.Context, run *Run) error {
		<-release
		return nil
	}

	first, err := runner.Start(context.Background(), "o/r@main")
	require.NoError(t, err)

	_, err = runner.Start(context.Background(), "o/r@main")
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, first.Wait())

	// A finished run frees the slot.
	second, err := runner.Start(context.Background(), "o/r@main")
	require.NoError(t, err)
	require.NoError(t, second.Wait())
}

func TestRunner_ErrorMovesRunToFailed(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})
	runner.SyncFunc = func(ctx context.Context, run *Run) error {
		return fmt.Errorf("boom")
	}

	handle, err := runner.Start(context.Background(), "o/r@main")
	require.NoError(t, err)

	assert.EqualError(t, handle.Wait(), "boom")
	assert.False(t, handle.IsSuccess())

	snap := handle.Progress().Snapshot()
	assert.Equal(t, StageFailed, snap.CurrentStage)
	assert.Equal(t, "boom", snap.ErrorMessage)
}

func TestRunner_CancelStopsAtStageBoundary(t *testing.T) {
	// Given: work that checks the cancel flag between stages
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})
	started := make(chan struct{})
	runner.SyncFunc = func(ctx context.Context, run *Run) error {
		run.StartStage(StageParse, 10)
		close(started)
		// Simulate a long stage that finishes its current item.
		for i := 0; i < 10; i++ {
			if run.CancelRequested() {
				run.MarkCancelled()
				return nil
			}
			time.Sleep(5 * time.Millisecond)
			run.UpdateProgress(i + 1)
		}
		return nil
	}

	handle, err := runner.Start(context.Background(), "o/r@main")
	require.NoError(t, err)

	// When: cancelling mid-run
	<-started
	handle.Cancel()

	// Then: the run lands in the cancelled state without error
	require.NoError(t, handle.Wait())
	assert.False(t, handle.IsSuccess())
	assert.Equal(t, StageCancelled, handle.Progress().Stage())
}

func TestRunner_CancelMidStageEndsCancelledNotFailed(t *testing.T) {
	// Given: work that is blocked inside a stage on the context
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	started := make(chan struct{})
	runner.SyncFunc = func(ctx context.Context, run *Run) error {
		run.StartStage(StageVectorize, 100)
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	handle, err := runner.Start(ctx, "o/r@main")
	require.NoError(t, err)

	// When: cancelling the run and tearing down its context
	<-started
	handle.Cancel()
	stop()

	// Then: the context error counts as the cancellation taking effect,
	// not as a failure
	require.NoError(t, handle.Wait())
	assert.Equal(t, StageCancelled, handle.Progress().Stage())
	assert.Empty(t, handle.Progress().Snapshot().ErrorMessage)
}

func TestRunner_ContextErrorWithoutCancelRequestFails(t *testing.T) {
	// A context torn down with no cancel request is a real failure.
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})
	ctx, stop := context.WithCancel(context.Background())
	stop()

	runner.SyncFunc = func(ctx context.Context, run *Run) error {
		return ctx.Err()
	}

	handle, err := runner.Start(ctx, "o/r@main")
	require.NoError(t, err)

	assert.Error(t, handle.Wait())
	assert.Equal(t, StageFailed, handle.Progress().Stage())
}

func TestRunner_CancelBeforeWorkStarts(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})
	gate := make(chan struct{})
	runner.SyncFunc = func(ctx context.Context, run *Run) error {
		<-gate
		if run.CancelRequested() {
			run.MarkCancelled()
			return nil
		}
		run.StartStage(StageParse, 1)
		return nil
	}

	handle, err := runner.Start(context.Background(), "o/r@main")
	require.NoError(t, err)

	handle.Progress().RequestCancel()
	close(gate)

	require.NoError(t, handle.Wait())
	assert.Equal(t, StageCancelled, handle.Progress().Stage())
}

func TestRunner_LockMarkerLifecycle(t *testing.T) {
	dataDir := t.TempDir()
	runner := NewRunner(RunnerConfig{DataDir: dataDir})

	inRun := make(chan struct{})
	release := make(chan struct{})
	runner.SyncFunc = func(ctx context.Context, run *Run) error {
		close(inRun)
		<-release
		return nil
	}

	handle, err := runner.Start(context.Background(), "o/r@main")
	require.NoError(t, err)

	// The marker exists while the run is active.
	<-inRun
	assert.True(t, HasIncompleteLock(dataDir))

	close(release)
	require.NoError(t, handle.Wait())

	// And is removed on completion.
	assert.False(t, HasIncompleteLock(dataDir))
}

func TestHasIncompleteLock_DetectsLeftoverMarker(t *testing.T) {
	dataDir := t.TempDir()
	assert.False(t, HasIncompleteLock(dataDir))

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "sync.lock"), []byte("t"), 0o644))
	assert.True(t, HasIncompleteLock(dataDir))
}
