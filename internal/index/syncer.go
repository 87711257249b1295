package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/qiao-925/ragsync/internal/async"
	"github.com/qiao-925/ragsync/internal/chunk"
	"github.com/qiao-925/ragsync/internal/config"
	"github.com/qiao-925/ragsync/internal/detect"
	"github.com/qiao-925/ragsync/internal/embed"
	syncerr "github.com/qiao-925/ragsync/internal/errors"
	"github.com/qiao-925/ragsync/internal/journal"
	"github.com/qiao-925/ragsync/internal/parse"
	"github.com/qiao-925/ragsync/internal/preflight"
	"github.com/qiao-925/ragsync/internal/repo"
	"github.com/qiao-925/ragsync/internal/source"
	"github.com/qiao-925/ragsync/internal/vectorstore"
)

// Syncer runs the staged sync pipeline for tracked repositories:
// preflight, source sync, discovery, parse, vectorize. Cancellation is
// honored at stage boundaries; a cancelled run never skips the journal
// write for work already completed.
type Syncer struct {
	cfg       *config.Config
	journal   *journal.Store
	connector source.Connector
	embedder  embed.Embedder
	splitter  *chunk.Splitter
	retry     syncerr.RetryConfig
}

// NewSyncer builds a syncer from configuration.
func NewSyncer(cfg *config.Config, j *journal.Store, connector source.Connector) *Syncer {
	var embedder embed.Embedder = embed.NewStaticEmbedder(cfg.Embedding.Dimensions)
	embedder = embed.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	return &Syncer{
		cfg:       cfg,
		journal:   j,
		connector: connector,
		embedder:  embedder,
		splitter:  chunk.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap),
		retry: syncerr.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			Step:         cfg.Retry.Step,
		},
	}
}

// Sync runs the full pipeline for one repository, reporting progress
// through run. A nil return with a cancelled run means the cancel took
// effect at a stage boundary.
func (s *Syncer) Sync(ctx context.Context, ref repo.Ref, run *async.Run) error {
	// Preflight
	run.StartStage(async.StagePreflight, 0)
	if err := ref.Validate(); err != nil {
		return syncerr.New(syncerr.ErrCodeInvalidInput, err.Error(), err)
	}
	checks := preflight.New(s.cfg.DataDir).RunAll(ctx)
	for _, check := range checks {
		if check.IsCritical() {
			return syncerr.New(syncerr.ErrCodeInvalidInput,
				fmt.Sprintf("preflight %s: %s", check.Name, check.Message), nil)
		}
	}
	store, vectorPath, err := s.openStore(ref)
	if err != nil {
		return err
	}
	defer store.Close()
	run.CompleteStage(async.StagePreflight, fmt.Sprintf("vector store ready, %d vectors", store.Count()))

	if cancelled(run) {
		return nil
	}

	// Source sync: revision marker first, clone only when it moved.
	run.StartStage(async.StageSourceSync, 0)
	entry := s.journal.Get(ref)

	marker, err := s.connector.RevisionMarker(ctx, ref)
	if err != nil {
		return err
	}
	if detect.Unchanged(entry, marker) {
		slog.Info("sync fast path, no changes",
			slog.String("repository", ref.Key()),
			slog.String("revision", marker))
		run.CompleteStage(async.StageSourceSync, "revision marker unchanged, nothing to do")
		run.Complete("already up to date")
		return nil
	}

	localPath, revision, err := s.connector.CloneOrUpdate(ctx, ref)
	if err != nil {
		return err
	}
	run.CompleteStage(async.StageSourceSync, fmt.Sprintf("checkout at %s", revision))

	if cancelled(run) {
		return nil
	}

	// Discovery: snapshot the checkout and diff against the journal.
	run.StartStage(async.StageDiscovery, 0)
	snap, err := detect.BuildSnapshot(ctx, localPath, revision, detect.SnapshotOptions{
		IncludeExts: s.cfg.Paths.IncludeExts,
		Exclude:     s.cfg.Paths.Exclude,
		MaxFileSize: s.cfg.Paths.MaxFileSize,
	})
	if err != nil {
		return syncerr.New(syncerr.ErrCodeInternal, fmt.Sprintf("snapshot %s: %v", ref.Key(), err), err)
	}

	changes := detect.Diff(entry, snap)
	slog.Info("change detection complete",
		slog.String("repository", ref.Key()),
		slog.Int("files_in_snapshot", len(snap.Files)),
		slog.String("changes", changes.Summary()))
	run.CompleteStage(async.StageDiscovery, fmt.Sprintf("detected %s", changes.Summary()))

	coord := NewCoordinator(s.journal, store, s.embedder, s.splitter, s.retry)

	if !changes.HasChanges() {
		// Content identical even though the marker moved (e.g. a commit
		// touching only excluded paths). Record the new marker so the
		// fast path works next time.
		s.commit(ref, revision, run)
		run.Complete("content unchanged, marker updated")
		return nil
	}

	if cancelled(run) {
		return nil
	}

	// Parse: read candidates into documents. Files already indexed by a
	// previous interrupted run carry their IDs forward without work.
	candidates, carried := coord.Classify(ctx, ref, changes.Candidates(), snap)
	if len(carried) > 0 {
		run.Log(fmt.Sprintf("%d files already indexed, carried forward", len(carried)))
	}

	run.StartStage(async.StageParse, len(candidates))
	parsed := 0
	fileParser := &parse.FileParser{OnFile: func(path string, ok bool) {
		parsed++
		run.UpdateProgress(parsed)
	}}
	docs, err := fileParser.ParseFiles(ctx, localPath, candidates)
	if err != nil {
		return syncerr.New(syncerr.ErrCodeInternal, fmt.Sprintf("parse %s: %v", ref.Key(), err), err)
	}
	if len(docs) < len(candidates) {
		run.Warn(fmt.Sprintf("%d of %d files parsed, rest dropped", len(docs), len(candidates)))
	}
	run.CompleteStage(async.StageParse)

	if cancelled(run) {
		return nil
	}

	// Vectorize: deletions first, then chunk/embed/insert with per-file
	// journal checkpoints.
	total := len(docs) + len(changes.Deleted)
	run.StartStage(async.StageVectorize, total)

	if len(changes.Deleted) > 0 {
		if err := coord.Remove(ctx, ref, changes.Deleted, func(done int) {
			run.UpdateProgress(done)
		}); err != nil {
			return err
		}
	}
	indexed, err := coord.IndexDocuments(ctx, ref, docs, snap, func(done int) {
		run.UpdateProgress(len(changes.Deleted) + done)
	})
	if err != nil {
		return err
	}

	if err := s.saveStore(ctx, store, vectorPath); err != nil {
		return err
	}
	run.CompleteStage(async.StageVectorize,
		fmt.Sprintf("%d documents indexed, %d carried forward, %d deleted",
			len(indexed), len(carried), len(changes.Deleted)))

	s.commit(ref, revision, run)
	run.Complete(fmt.Sprintf("synced %s", changes.Summary()))
	return nil
}

// commit writes the entry-level journal record: current file map plus
// the new revision marker. The per-file checkpoints already persisted
// the expensive state, so a failure here costs only the fast path and
// is not worth failing the run over.
func (s *Syncer) commit(ref repo.Ref, revision string, run *async.Run) {
	files := make(map[string]*journal.FileRecord)
	if entry := s.journal.Get(ref); entry != nil {
		files = entry.Files
	}
	if err := s.journal.Update(ref, files, revision); err != nil {
		slog.Error("final journal update failed",
			slog.String("repository", ref.Key()),
			slog.String("error", err.Error()))
		run.Warn("revision marker not recorded, next run will re-check all files")
	}
}

// saveStore persists the vector store with bounded retries.
func (s *Syncer) saveStore(ctx context.Context, store vectorstore.Store, path string) error {
	return syncerr.Retry(ctx, s.retry, func() error {
		if err := store.Save(path); err != nil {
			return syncerr.IndexWriteError(fmt.Sprintf("save vector store %s", path), err)
		}
		return nil
	})
}

// RemoveRepository deletes all vectors and journal state for ref.
func (s *Syncer) RemoveRepository(ctx context.Context, ref repo.Ref) error {
	entry := s.journal.Get(ref)
	if entry == nil {
		return nil
	}

	store, vectorPath, err := s.openStore(ref)
	if err != nil {
		return err
	}
	defer store.Close()

	coord := NewCoordinator(s.journal, store, s.embedder, s.splitter, s.retry)
	paths := make([]string, 0, len(entry.Files))
	for path := range entry.Files {
		paths = append(paths, path)
	}
	if err := coord.Remove(ctx, ref, paths, nil); err != nil {
		return err
	}
	if err := s.saveStore(ctx, store, vectorPath); err != nil {
		return err
	}
	return s.journal.Remove(ref)
}

// openStore opens or creates the per-repository vector store, verifying
// that a persisted store matches the embedder's dimension.
func (s *Syncer) openStore(ref repo.Ref) (vectorstore.Store, string, error) {
	dir := filepath.Join(s.cfg.VectorDir(), ref.Owner, ref.Name+"@"+ref.Branch)
	path := filepath.Join(dir, "vectors.hnsw")

	stored, err := vectorstore.ReadStoredDimensions(path)
	if err != nil {
		return nil, "", syncerr.New(syncerr.ErrCodeInternal, fmt.Sprintf("read vector store metadata: %v", err), err)
	}
	if stored != 0 && stored != s.embedder.Dimensions() {
		mismatch := vectorstore.ErrDimensionMismatch{Expected: stored, Got: s.embedder.Dimensions()}
		return nil, "", syncerr.New(syncerr.ErrCodeIndexDimension, mismatch.Error(), mismatch)
	}

	store, err := vectorstore.NewHNSWStore(vectorstore.DefaultConfig(s.embedder.Dimensions()))
	if err != nil {
		return nil, "", syncerr.New(syncerr.ErrCodeInternal, err.Error(), err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := store.Load(path); err != nil {
			return nil, "", syncerr.New(syncerr.ErrCodeInternal, fmt.Sprintf("load vector store: %v", err), err)
		}
	}
	return store, path, nil
}

// cancelled checks the run's cancel flag at a stage boundary and moves
// it to the terminal state when set.
func cancelled(run *async.Run) bool {
	if run.CancelRequested() {
		run.MarkCancelled()
		return true
	}
	return false
}
