package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio"

	syncerr "github.com/qiao-925/ragsync/internal/errors"
	"github.com/qiao-925/ragsync/internal/repo"
)

// Store is the serialized-access journal service. All access goes through
// an in-process mutex; an advisory file lock guards against a second
// process opening the same journal. Every update rewrites the whole file
// atomically (write to temp, rename).
type Store struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
	data *journalFile
}

// Open loads the journal at path, creating an empty one when the file does
// not exist. An unreadable or corrupt journal is logged and replaced by an
// empty in-memory journal: this forces a full resync but never fails and
// never touches vector-store data. Open fails if another process holds the
// journal lock.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire journal lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("journal %s is locked by another process", path)
	}

	s := &Store{
		path: path,
		lock: lock,
		data: newJournalFile(),
	}
	s.load()
	return s, nil
}

// load reads the journal file into memory. Never fatal.
func (s *Store) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("journal unreadable, starting with empty journal",
				slog.String("path", s.path),
				slog.String("error", err.Error()))
		}
		return
	}

	var jf journalFile
	if err := json.Unmarshal(raw, &jf); err != nil {
		slog.Warn("journal corrupt, starting with empty journal",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return
	}
	if jf.Repositories == nil {
		jf.Repositories = make(map[string]*Entry)
	}
	if jf.Version == "" {
		jf.Version = Version
	}
	s.data = &jf
}

// save persists the whole journal atomically. Callers hold s.mu.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return syncerr.JournalWriteError("encode journal", err)
	}
	if err := renameio.WriteFile(s.path, raw, 0o644); err != nil {
		return syncerr.JournalWriteError(fmt.Sprintf("write journal %s", s.path), err)
	}
	return nil
}

// Get returns a copy of the entry for ref, or nil when the repository has
// never been synced.
func (s *Store) Get(ref repo.Ref) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Repositories[ref.Key()].Clone()
}

// Refs returns the keys of all recorded repositories, sorted.
func (s *Store) Refs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data.Repositories))
	for k := range s.data.Repositories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Update replaces the entry's file map and revision marker in one write.
// This is the entry-level commit at the end of a successful sync.
func (s *Store) Update(ref repo.Ref, files map[string]*FileRecord, revision string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &Entry{
		Owner:              ref.Owner,
		Repo:               ref.Name,
		Branch:             ref.Branch,
		LastRevisionMarker: revision,
		LastIndexedAt:      time.Now().UTC(),
		FileCount:          len(files),
		Files:              make(map[string]*FileRecord, len(files)),
	}
	for path, rec := range files {
		entry.Files[path] = rec.Clone()
	}

	s.data.Repositories[ref.Key()] = entry
	return s.save()
}

// SetFile writes one file's record, creating the repository entry on first
// use. This is the per-document checkpoint: it runs after the file's
// vectors are confirmed in the store (write-then-record ordering).
func (s *Store) SetFile(ref repo.Ref, path string, rec *FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.ensureEntry(ref)
	entry.Files[path] = rec.Clone()
	entry.FileCount = len(entry.Files)
	return s.save()
}

// FileVectorIDs returns the recorded vector IDs for one file.
// A repository or file without a record yields nil.
func (s *Store) FileVectorIDs(ref repo.Ref, path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data.Repositories[ref.Key()]
	if !ok {
		return nil
	}
	rec, ok := entry.Files[path]
	if !ok {
		return nil
	}
	return append([]string(nil), rec.VectorIDs...)
}

// SetFileVectorIDs records the vector IDs for one file, preserving the rest
// of the record when it exists.
func (s *Store) SetFileVectorIDs(ref repo.Ref, path string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.ensureEntry(ref)
	rec, ok := entry.Files[path]
	if !ok {
		rec = &FileRecord{}
		entry.Files[path] = rec
		entry.FileCount = len(entry.Files)
	}
	rec.VectorIDs = append([]string(nil), ids...)
	return s.save()
}

// RemoveFile drops one file's record. Removing an absent file is a no-op.
func (s *Store) RemoveFile(ref repo.Ref, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data.Repositories[ref.Key()]
	if !ok {
		return nil
	}
	if _, ok := entry.Files[path]; !ok {
		return nil
	}
	delete(entry.Files, path)
	entry.FileCount = len(entry.Files)
	return s.save()
}

// Remove drops the whole repository entry.
func (s *Store) Remove(ref repo.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Repositories[ref.Key()]; !ok {
		return nil
	}
	delete(s.data.Repositories, ref.Key())
	return s.save()
}

// Close releases the journal lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// ensureEntry returns the live entry for ref, creating it when absent.
// Callers hold s.mu.
func (s *Store) ensureEntry(ref repo.Ref) *Entry {
	key := ref.Key()
	entry, ok := s.data.Repositories[key]
	if !ok {
		entry = &Entry{
			Owner:  ref.Owner,
			Repo:   ref.Name,
			Branch: ref.Branch,
			Files:  make(map[string]*FileRecord),
		}
		s.data.Repositories[key] = entry
	}
	if entry.Files == nil {
		entry.Files = make(map[string]*FileRecord)
	}
	return entry
}
