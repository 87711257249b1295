// Package async provides background sync execution with pollable
// progress tracking.
package async

import (
	"sync"
	"time"
)

// Stage represents one phase of a sync run.
type Stage string

const (
	// StageIdle is the state before a run starts.
	StageIdle Stage = "idle"
	// StagePreflight covers journal and store preparation.
	StagePreflight Stage = "preflight"
	// StageSourceSync covers fetching the remote source.
	StageSourceSync Stage = "source_sync"
	// StageDiscovery covers snapshotting and change detection.
	StageDiscovery Stage = "discovery"
	// StageParse covers reading changed files into documents.
	StageParse Stage = "parse"
	// StageVectorize covers chunking, embedding and index writes.
	StageVectorize Stage = "vectorize"
	// StageComplete is the terminal success state.
	StageComplete Stage = "complete"
	// StageFailed is the terminal error state.
	StageFailed Stage = "failed"
	// StageCancelled is the terminal state after a cancel request took
	// effect at a stage boundary.
	StageCancelled Stage = "cancelled"
)

// workStages lists the non-terminal stages in execution order.
var workStages = []Stage{StagePreflight, StageSourceSync, StageDiscovery, StageParse, StageVectorize}

// Quantifiable reports whether the stage has a meaningful item count.
// Only parse and vectorize do; the others are all-or-nothing.
func (s Stage) Quantifiable() bool {
	return s == StageParse || s == StageVectorize
}

// Terminal reports whether the stage is an end state.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed || s == StageCancelled
}

// index returns the 1-based position of a work stage, 0 for idle and
// terminal stages.
func (s Stage) index() int {
	for i, ws := range workStages {
		if s == ws {
			return i + 1
		}
	}
	return 0
}

// Log levels attached to run log entries.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogEntry is one line of run output kept for pollers.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// StageProgress is the counter and timing state of one stage.
type StageProgress struct {
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// maxLogEntries bounds the in-memory log ring.
const maxLogEntries = 200

// Snapshot is an immutable view of a run's progress.
type Snapshot struct {
	Repository      string     `json:"repository"`
	CurrentStage    Stage      `json:"current_stage"`
	CurrentStageIdx int        `json:"current_stage_index"`
	TotalStages     int        `json:"total_stages"`
	IsQuantifiable  bool       `json:"is_quantifiable"`
	ProgressCurrent int        `json:"progress_current"`
	ProgressTotal   int        `json:"progress_total"`
	ProgressPercent float64    `json:"progress_percent"`
	ElapsedSeconds  int        `json:"elapsed_seconds"`
	IsCancelled     bool       `json:"is_cancelled"`
	IsComplete      bool       `json:"is_complete"`
	Logs            []LogEntry `json:"logs"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// Run tracks one sync run. All methods are safe for concurrent use; a
// background goroutine writes while pollers read snapshots. Terminal
// states absorb every later transition.
type Run struct {
	mu sync.RWMutex

	repository string
	stage      Stage
	stages     map[Stage]*StageProgress
	startTime  time.Time

	cancelRequested bool
	errorMessage    string

	logs     []LogEntry
	logStart int // ring buffer head when full
}

// NewRun creates a progress tracker in the idle state.
func NewRun(repository string) *Run {
	return &Run{
		repository: repository,
		stage:      StageIdle,
		stages:     make(map[Stage]*StageProgress),
		startTime:  time.Now(),
	}
}

// StartStage enters a work stage, resetting its counters and recording
// a start time. The total is 0 for non-quantifiable stages. No-op once
// the run is terminal.
func (r *Run) StartStage(stage Stage, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	r.stage = stage
	r.stages[stage] = &StageProgress{Total: total, StartedAt: time.Now()}
	r.appendLog(LevelInfo, string(stage)+" started")
}

// UpdateProgress sets the processed item count for the current stage,
// optionally logging a message. No-op once the run is terminal.
func (r *Run) UpdateProgress(current int, message ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	if sp := r.stages[r.stage]; sp != nil {
		sp.Current = current
	}
	if len(message) > 0 && message[0] != "" {
		r.appendLog(LevelInfo, message[0])
	}
}

// SetTotal adjusts the item total once known mid-stage.
func (r *Run) SetTotal(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	if sp := r.stages[r.stage]; sp != nil {
		sp.Total = total
	}
}

// CompleteStage records the stage's end time. Quantifiable stages snap
// their counter to the total so pollers never see 99% on success.
// No-op once the run is terminal.
func (r *Run) CompleteStage(stage Stage, message ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	sp := r.stages[stage]
	if sp == nil {
		return
	}
	sp.EndedAt = time.Now()
	if stage.Quantifiable() {
		sp.Current = sp.Total
	}
	if len(message) > 0 && message[0] != "" {
		r.appendLog(LevelInfo, message[0])
	} else {
		r.appendLog(LevelInfo, string(stage)+" finished")
	}
}

// Log records an info message. No-op once the run is terminal: the
// closing message of Fail, Complete or MarkCancelled stays last.
func (r *Run) Log(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	r.appendLog(LevelInfo, message)
}

// Warn records a warning message. No-op once the run is terminal.
func (r *Run) Warn(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	r.appendLog(LevelWarn, message)
}

// appendLog adds to the ring buffer. Caller holds the lock.
func (r *Run) appendLog(level, message string) {
	entry := LogEntry{Time: time.Now(), Level: level, Message: message}
	if len(r.logs) < maxLogEntries {
		r.logs = append(r.logs, entry)
		return
	}
	r.logs[r.logStart] = entry
	r.logStart = (r.logStart + 1) % maxLogEntries
}

// RequestCancel flags the run for cancellation. The run stops at the
// next stage boundary; mid-stage work finishes its current item.
func (r *Run) RequestCancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelRequested = true
}

// CancelRequested reports whether a cancel has been requested.
func (r *Run) CancelRequested() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.cancelRequested
}

// MarkCancelled moves the run to the cancelled terminal state. No-op
// if the run already ended.
func (r *Run) MarkCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	r.stage = StageCancelled
	r.appendLog(LevelInfo, "run cancelled")
}

// Fail moves the run to the failed terminal state. No-op if the run
// already ended.
func (r *Run) Fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	r.stage = StageFailed
	r.errorMessage = message
	r.appendLog(LevelError, message)
}

// Complete moves the run to the success terminal state. No-op if the
// run already ended.
func (r *Run) Complete(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.Terminal() {
		return
	}
	r.stage = StageComplete
	if message == "" {
		message = "run complete"
	}
	r.appendLog(LevelInfo, message)
}

// Stage returns the current stage.
func (r *Run) Stage() Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.stage
}

// StageState returns a copy of one stage's counters and timings, and
// whether the stage has started.
func (r *Run) StageState(stage Stage) (StageProgress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sp := r.stages[stage]
	if sp == nil {
		return StageProgress{}, false
	}
	return *sp, true
}

// Snapshot returns an immutable copy of the current state. Percent is
// 0 for non-quantifiable stages and stages with an unknown total.
func (r *Run) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var current, total int
	if sp := r.stages[r.stage]; sp != nil {
		current, total = sp.Current, sp.Total
	}
	var pct float64
	if r.stage.Quantifiable() && total > 0 {
		pct = float64(current) / float64(total) * 100.0
	}

	logs := make([]LogEntry, 0, len(r.logs))
	for i := 0; i < len(r.logs); i++ {
		logs = append(logs, r.logs[(r.logStart+i)%len(r.logs)])
	}

	return Snapshot{
		Repository:      r.repository,
		CurrentStage:    r.stage,
		CurrentStageIdx: r.stage.index(),
		TotalStages:     len(workStages),
		IsQuantifiable:  r.stage.Quantifiable(),
		ProgressCurrent: current,
		ProgressTotal:   total,
		ProgressPercent: pct,
		ElapsedSeconds:  int(time.Since(r.startTime).Seconds()),
		IsCancelled:     r.cancelRequested || r.stage == StageCancelled,
		IsComplete:      r.stage.Terminal(),
		Logs:            logs,
		ErrorMessage:    r.errorMessage,
	}
}
