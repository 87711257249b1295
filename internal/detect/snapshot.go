package detect

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FileMeta describes one file in a source snapshot.
type FileMeta struct {
	Path    string // repository-relative, forward slashes
	Hash    string // SHA-256 of content
	Size    int64
	ModTime int64 // unix seconds
}

// Snapshot is the hashed view of a checkout at one revision.
type Snapshot struct {
	Revision string
	Files    map[string]FileMeta
}

// SnapshotOptions filters which files enter a snapshot.
type SnapshotOptions struct {
	// IncludeExts lists accepted file extensions (lowercase, with dot).
	// Empty means all extensions.
	IncludeExts []string

	// Exclude lists glob patterns matched against relative paths and
	// individual path segments.
	Exclude []string

	// MaxFileSize skips files larger than this many bytes (0 = no limit).
	MaxFileSize int64

	// Workers bounds hashing parallelism (default: NumCPU).
	Workers int
}

// BuildSnapshot walks root, hashing every eligible file. Hashing runs in
// parallel; unreadable files are logged and skipped rather than failing
// the snapshot. The .git directory is always excluded.
func BuildSnapshot(ctx context.Context, root, revision string, opts SnapshotOptions) (*Snapshot, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var candidates []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("snapshot walk error", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" || excluded(rel, d.Name(), opts.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if excluded(rel, d.Name(), opts.Exclude) {
			return nil
		}
		if len(opts.IncludeExts) > 0 && !hasExt(rel, opts.IncludeExts) {
			return nil
		}
		if opts.MaxFileSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() > opts.MaxFileSize {
				slog.Warn("skipping oversized file",
					slog.String("path", rel),
					slog.Int64("size", info.Size()),
					slog.Int64("max", opts.MaxFileSize))
				return nil
			}
		}
		candidates = append(candidates, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Revision: revision,
		Files:    make(map[string]FileMeta, len(candidates)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rel := range candidates {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			abs := filepath.Join(root, filepath.FromSlash(rel))
			info, err := os.Stat(abs)
			if err != nil {
				slog.Warn("snapshot stat failed", slog.String("path", rel), slog.String("error", err.Error()))
				return nil
			}
			content, err := os.ReadFile(abs)
			if err != nil {
				slog.Warn("snapshot read failed", slog.String("path", rel), slog.String("error", err.Error()))
				return nil
			}
			if isBinary(content) {
				return nil
			}

			sum := sha256.Sum256(content)
			mu.Lock()
			snap.Files[rel] = FileMeta{
				Path:    rel,
				Hash:    hex.EncodeToString(sum[:]),
				Size:    info.Size(),
				ModTime: info.ModTime().Unix(),
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// excluded matches rel and its base name against the exclude patterns.
// Patterns ending in "/**" exclude whole subtrees; bare names exclude any
// path segment of that name.
func excluded(rel, base string, patterns []string) bool {
	for _, pattern := range patterns {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		for _, seg := range strings.Split(rel, "/") {
			if seg == pattern {
				return true
			}
		}
	}
	return false
}

func hasExt(rel string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// isBinary checks the first 512 bytes for null bytes.
func isBinary(content []byte) bool {
	n := len(content)
	if n > 512 {
		n = 512
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}
