package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qiao-925/ragsync/internal/chunk"
	"github.com/qiao-925/ragsync/internal/detect"
	"github.com/qiao-925/ragsync/internal/embed"
	syncerr "github.com/qiao-925/ragsync/internal/errors"
	"github.com/qiao-925/ragsync/internal/journal"
	"github.com/qiao-925/ragsync/internal/parse"
	"github.com/qiao-925/ragsync/internal/repo"
	"github.com/qiao-925/ragsync/internal/vectorstore"
)

// Coordinator executes the vectorize and cleanup operations for one
// repository. Every vector-store mutation happens before the matching
// journal write, so an interrupted run can only leave extra vectors
// behind, never journal records pointing at missing vectors. The next
// run's cleanup removes the extras.
type Coordinator struct {
	Journal  *journal.Store
	Store    vectorstore.Store
	Embedder embed.Embedder
	Splitter *chunk.Splitter
	Resolver Resolver
	Retry    syncerr.RetryConfig
}

// NewCoordinator wires a coordinator with the standard resolver chain:
// journal record first, store query as fallback. The fallback gets a
// single attempt: pre-insert lookups are not read-after-write, so an
// empty result means the file was never indexed, not that the store is
// lagging.
func NewCoordinator(j *journal.Store, store vectorstore.Store, embedder embed.Embedder, splitter *chunk.Splitter, retry syncerr.RetryConfig) *Coordinator {
	return &Coordinator{
		Journal:  j,
		Store:    store,
		Embedder: embedder,
		Splitter: splitter,
		Resolver: &ChainResolver{Resolvers: []Resolver{
			&JournalResolver{Journal: j},
			&StoreResolver{Store: store, Retry: syncerr.RetryConfig{MaxAttempts: 1}},
		}},
		Retry: retry,
	}
}

// AlreadyIndexed reports whether a candidate file needs no work: its
// journal record matches the snapshot hash and has vectors behind it.
// This is what makes re-running after an interruption cheap. An empty
// store short-circuits to false since nothing can be indexed yet.
func (c *Coordinator) AlreadyIndexed(ref repo.Ref, path string, meta detect.FileMeta) bool {
	if c.Store.Count() == 0 {
		return false
	}
	rec := c.journalRecord(ref, path)
	return rec != nil && rec.Hash == meta.Hash && len(rec.VectorIDs) > 0
}

// Classify splits candidate paths into those needing work and those
// already indexed, whose vector IDs carry forward unchanged. An empty
// store classifies everything as pending without any lookups. A path
// with no journal record falls back to a store query: vectors that
// landed before a lost checkpoint are adopted and the journal record
// repaired instead of reprocessing the document.
func (c *Coordinator) Classify(ctx context.Context, ref repo.Ref, paths []string, snap *detect.Snapshot) (pending []string, carried map[string][]string) {
	carried = make(map[string][]string)
	if c.Store.Count() == 0 {
		return paths, carried
	}
	for _, path := range paths {
		if c.AlreadyIndexed(ref, path, snap.Files[path]) {
			carried[path] = c.Journal.FileVectorIDs(ref, path)
			continue
		}
		// A record with a stale hash is a genuine modification; only
		// record-less paths can be interrupted-run leftovers.
		if c.journalRecord(ref, path) == nil {
			ids, err := c.Resolver.Resolve(ctx, ref, path)
			if err == nil && len(ids) > 0 {
				_ = c.checkpoint(ctx, ref, path, snap, ids)
				carried[path] = ids
				continue
			}
		}
		pending = append(pending, path)
	}
	return pending, carried
}

// journalRecord returns the file's journal record, or nil.
func (c *Coordinator) journalRecord(ref repo.Ref, path string) *journal.FileRecord {
	entry := c.Journal.Get(ref)
	if entry == nil {
		return nil
	}
	return entry.Files[path]
}

// IndexDocuments chunks, embeds and stores each document, then records
// the file in the journal. A failure in one document is logged and
// skipped; a dimension mismatch aborts the whole batch. onDone is
// called after each document with the number completed. The returned
// map holds the vector IDs now backing each successfully indexed path.
func (c *Coordinator) IndexDocuments(ctx context.Context, ref repo.Ref, docs []parse.Document, snap *detect.Snapshot, onDone func(completed int)) (map[string][]string, error) {
	indexed := make(map[string][]string, len(docs))
	for i, doc := range docs {
		select {
		case <-ctx.Done():
			return indexed, ctx.Err()
		default:
		}

		ids, err := c.indexOne(ctx, ref, doc, snap)
		if err != nil {
			// Fatal errors (dimension mismatch, cancellation) abort the
			// batch; anything else costs only this document.
			if syncerr.IsFatal(err) {
				return indexed, err
			}
			slog.Warn("document skipped",
				slog.String("repository", ref.Key()),
				slog.String("path", doc.FilePath),
				slog.String("error", err.Error()))
		} else {
			indexed[doc.FilePath] = ids
		}
		if onDone != nil {
			onDone(i + 1)
		}
	}
	return indexed, nil
}

// indexOne runs the full write-then-record sequence for one document:
// replace old vectors, insert new ones, read the assigned IDs back,
// checkpoint the file in the journal. Returns the IDs now backing the
// document.
func (c *Coordinator) indexOne(ctx context.Context, ref repo.Ref, doc parse.Document, snap *detect.Snapshot) ([]string, error) {
	// Replace semantics for modified files: old vectors go first.
	if err := c.removeFileVectors(ctx, ref, doc.FilePath); err != nil {
		return nil, err
	}

	chunks := c.Splitter.Split(doc.Text)
	if len(chunks) == 0 {
		slog.Debug("document produced no chunks", slog.String("path", doc.FilePath))
		return nil, c.checkpoint(ctx, ref, doc.FilePath, snap, nil)
	}

	vectors, err := c.Embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, syncerr.New(syncerr.ErrCodeInternal, fmt.Sprintf("embed %s: %v", doc.FilePath, err), err)
	}

	nodes := make([]vectorstore.Node, len(chunks))
	for i := range chunks {
		md := map[string]string{
			"repository":  ref.Key(),
			"file_path":   doc.FilePath,
			"document_id": doc.ID,
			"chunk_index": fmt.Sprint(i),
		}
		for k, v := range doc.Metadata {
			md[k] = v
		}
		nodes[i] = vectorstore.Node{Vector: vectors[i], Metadata: md}
	}

	err = syncerr.Retry(ctx, c.Retry, func() error {
		if err := c.Store.Insert(ctx, nodes); err != nil {
			var dim vectorstore.ErrDimensionMismatch
			if errors.As(err, &dim) {
				// Systemic: every document would hit it, and Retry
				// returns fatal errors without further attempts.
				return syncerr.New(syncerr.ErrCodeIndexDimension, dim.Error(), dim)
			}
			return syncerr.IndexWriteError(fmt.Sprintf("insert vectors for %s", doc.FilePath), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The store assigns IDs on insert; read them back so the journal
	// can name exactly what to delete later.
	ids, err := (&StoreResolver{Store: c.Store, Retry: c.Retry}).Resolve(ctx, ref, doc.FilePath)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		slog.Warn("inserted vectors not resolvable, journal record will be id-less",
			slog.String("path", doc.FilePath))
	}

	return ids, c.checkpoint(ctx, ref, doc.FilePath, snap, ids)
}

// checkpoint writes the per-file journal record with bounded retries.
// Exhaustion is logged, not fatal: the vectors are in the store and the
// next run's re-check will repair the record.
func (c *Coordinator) checkpoint(ctx context.Context, ref repo.Ref, path string, snap *detect.Snapshot, ids []string) error {
	meta := snap.Files[path]
	rec := &journal.FileRecord{
		Hash:         meta.Hash,
		Size:         meta.Size,
		LastModified: time.Unix(meta.ModTime, 0).UTC(),
		VectorIDs:    ids,
	}

	err := syncerr.Retry(ctx, c.Retry, func() error {
		return c.Journal.SetFile(ref, path, rec)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("journal checkpoint failed after retries",
			slog.String("repository", ref.Key()),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return nil
}

// Remove deletes the vectors and journal records for the given paths.
// Used for files deleted upstream and for whole-repository removal. A
// path that fails is logged and the rest proceed. onDone is called
// after each path with the number completed.
func (c *Coordinator) Remove(ctx context.Context, ref repo.Ref, paths []string, onDone func(completed int)) error {
	for i, path := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.removeFileVectors(ctx, ref, path); err != nil {
			slog.Warn("vector cleanup failed",
				slog.String("repository", ref.Key()),
				slog.String("path", path),
				slog.String("error", err.Error()))
		} else if err := c.Journal.RemoveFile(ref, path); err != nil {
			slog.Warn("journal record removal failed",
				slog.String("repository", ref.Key()),
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		if onDone != nil {
			onDone(i + 1)
		}
	}
	return nil
}

// removeFileVectors deletes whatever vectors the resolver can find for
// the path. Resolving nothing is fine: a fresh file has no old vectors.
// An empty store cannot hold any, so first runs skip the lookup.
func (c *Coordinator) removeFileVectors(ctx context.Context, ref repo.Ref, path string) error {
	if c.Store.Count() == 0 {
		return nil
	}
	ids, err := c.Resolver.Resolve(ctx, ref, path)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := c.Store.Delete(ctx, ids); err != nil {
		return syncerr.New(syncerr.ErrCodeIndexDelete, fmt.Sprintf("delete vectors for %s", path), err)
	}
	return nil
}
