package async

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SyncFunc is the signature of the work a runner executes. The function
// reports progress through the run and honors its cancel flag at stage
// boundaries.
type SyncFunc func(ctx context.Context, run *Run) error

// RunnerConfig configures the Runner.
type RunnerConfig struct {
	// DataDir is where the run lock marker is written.
	DataDir string
}

// Runner executes sync work in a background goroutine, one run at a
// time. The work function is injected so tests can substitute it.
type Runner struct {
	config RunnerConfig

	// SyncFunc is the work to run.
	SyncFunc SyncFunc

	mu     sync.Mutex
	active *Handle
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{config: cfg}
}

// Handle tracks one background run.
type Handle struct {
	run    *Run
	doneCh chan struct{}

	mu       sync.Mutex
	err      error
	finished bool
}

// ErrRunInProgress is returned by Start while a previous run is active.
var ErrRunInProgress = fmt.Errorf("a sync run is already in progress")

// Start begins a run for the given repository key. Non-blocking; poll
// the handle's Progress or call Wait. Only one run may be active.
func (r *Runner) Start(ctx context.Context, repository string) (*Handle, error) {
	if r.SyncFunc == nil {
		return nil, fmt.Errorf("runner has no sync function")
	}

	r.mu.Lock()
	if r.active != nil && !r.active.IsComplete() {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}

	h := &Handle{
		run:    NewRun(repository),
		doneCh: make(chan struct{}),
	}
	r.active = h
	r.mu.Unlock()

	go r.execute(ctx, h)
	return h, nil
}

// execute runs the sync function with the lock marker in place.
func (r *Runner) execute(ctx context.Context, h *Handle) {
	defer close(h.doneCh)
	defer func() {
		h.mu.Lock()
		h.finished = true
		h.mu.Unlock()
	}()

	lockPath := filepath.Join(r.config.DataDir, "sync.lock")
	if err := os.MkdirAll(r.config.DataDir, 0o755); err != nil {
		h.fail(err)
		return
	}
	if err := os.WriteFile(lockPath, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		h.fail(err)
		return
	}
	defer func() { _ = os.Remove(lockPath) }()

	if err := r.SyncFunc(ctx, h.run); err != nil {
		// A context error after a cancel request is the cancellation
		// taking effect, not a failure.
		if h.run.CancelRequested() && errors.Is(err, context.Canceled) {
			h.run.MarkCancelled()
			return
		}
		h.fail(err)
		return
	}

	if !h.run.Stage().Terminal() {
		h.run.Complete("")
	}
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	if !h.run.Stage().Terminal() {
		h.run.Fail(err.Error())
	}
}

// Progress returns the run's progress tracker.
func (h *Handle) Progress() *Run {
	return h.run
}

// IsComplete reports whether the run has reached a terminal state.
func (h *Handle) IsComplete() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished
}

// IsSuccess reports whether the run completed without error or
// cancellation.
func (h *Handle) IsSuccess() bool {
	return h.run.Stage() == StageComplete
}

// Cancel requests cancellation and returns immediately. The flag is
// observed at the next stage boundary; the run ends Cancelled, not
// Failed. Use Wait to block until it stops.
func (h *Handle) Cancel() {
	h.run.RequestCancel()
}

// Wait blocks until the run finishes and returns its error.
func (h *Handle) Wait() error {
	<-h.doneCh
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// HasIncompleteLock reports whether a previous run left its lock marker
// behind, meaning it was interrupted before finishing.
func HasIncompleteLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, "sync.lock"))
	return err == nil
}
