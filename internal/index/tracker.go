// Package index coordinates the sync pipeline: change detection,
// parsing, vectorization, and the journal bookkeeping that ties vector
// IDs back to source files.
package index

import (
	"context"
	"log/slog"

	syncerr "github.com/qiao-925/ragsync/internal/errors"
	"github.com/qiao-925/ragsync/internal/journal"
	"github.com/qiao-925/ragsync/internal/repo"
	"github.com/qiao-925/ragsync/internal/vectorstore"
)

// Resolver answers "which vector IDs belong to this file". Cleanup of
// stale vectors is only as good as this answer.
type Resolver interface {
	Resolve(ctx context.Context, ref repo.Ref, path string) ([]string, error)
}

// JournalResolver reads vector IDs from the file's journal record, the
// cheap primary source.
type JournalResolver struct {
	Journal *journal.Store
}

// Resolve returns the recorded IDs, nil when the file has no record.
func (r *JournalResolver) Resolve(ctx context.Context, ref repo.Ref, path string) ([]string, error) {
	return r.Journal.FileVectorIDs(ref, path), nil
}

// StoreResolver queries the vector store by file path metadata. It is
// the fallback when the journal record is missing or empty, and the
// read-back step right after an insert. The lookup retries with the
// configured policy because a query racing the write can come back
// empty; exhaustion yields an empty result, not an error, so a single
// unresolvable file never aborts a run.
type StoreResolver struct {
	Store vectorstore.Store
	Retry syncerr.RetryConfig
}

// Resolve returns the store's IDs for the file's path.
func (r *StoreResolver) Resolve(ctx context.Context, ref repo.Ref, path string) ([]string, error) {
	ids, err := syncerr.RetryWithResult(ctx, r.Retry, func() ([]string, error) {
		ids, err := r.Store.Query(ctx, vectorstore.Filter{"file_path": path})
		if err != nil {
			return nil, syncerr.IndexWriteError("query vector ids", err)
		}
		if len(ids) == 0 {
			return nil, syncerr.New(syncerr.ErrCodeIndexWrite, "no vectors found for "+path, nil)
		}
		return ids, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("vector id lookup exhausted retries",
			slog.String("repository", ref.Key()),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, nil
	}
	return ids, nil
}

// ChainResolver tries resolvers in order and returns the first
// non-empty answer.
type ChainResolver struct {
	Resolvers []Resolver
}

// Resolve walks the chain.
func (r *ChainResolver) Resolve(ctx context.Context, ref repo.Ref, path string) ([]string, error) {
	for _, resolver := range r.Resolvers {
		ids, err := resolver.Resolve(ctx, ref, path)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}
	return nil, nil
}
