package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiao-925/ragsync/internal/repo"
)

func testRef() repo.Ref {
	return repo.Ref{Owner: "qiao-925", Name: "docs", Branch: "main"}
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.json")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpen_CreatesEmptyJournal(t *testing.T) {
	s, _ := openTestStore(t)

	assert.Empty(t, s.Refs())
	assert.Nil(t, s.Get(testRef()))
}

func TestStore_UpdateAndGet(t *testing.T) {
	// Given: an empty journal
	s, _ := openTestStore(t)
	ref := testRef()
	files := map[string]*FileRecord{
		"docs/intro.md": {Hash: "h1", Size: 10, VectorIDs: []string{"v1", "v2"}},
		"README.md":     {Hash: "h2", Size: 20, VectorIDs: []string{"v3"}},
	}

	// When: committing an entry
	require.NoError(t, s.Update(ref, files, "rev-abc"))

	// Then: the entry reads back complete
	entry := s.Get(ref)
	require.NotNil(t, entry)
	assert.Equal(t, "rev-abc", entry.LastRevisionMarker)
	assert.Equal(t, 2, entry.FileCount)
	assert.Equal(t, []string{"v1", "v2"}, entry.Files["docs/intro.md"].VectorIDs)
	assert.WithinDuration(t, time.Now().UTC(), entry.LastIndexedAt, time.Minute)
	assert.Equal(t, []string{ref.Key()}, s.Refs())
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s, _ := openTestStore(t)
	ref := testRef()
	require.NoError(t, s.Update(ref, map[string]*FileRecord{
		"a.md": {Hash: "h", VectorIDs: []string{"v1"}},
	}, "rev"))

	// Mutating the returned entry must not leak into the store.
	entry := s.Get(ref)
	entry.Files["a.md"].VectorIDs[0] = "mutated"
	entry.Files["b.md"] = &FileRecord{}

	fresh := s.Get(ref)
	assert.Equal(t, []string{"v1"}, fresh.Files["a.md"].VectorIDs)
	assert.Len(t, fresh.Files, 1)
}

func TestStore_SetFile_CheckpointsIncrementally(t *testing.T) {
	s, path := openTestStore(t)
	ref := testRef()

	require.NoError(t, s.SetFile(ref, "a.md", &FileRecord{Hash: "h1", VectorIDs: []string{"v1"}}))
	require.NoError(t, s.SetFile(ref, "b.md", &FileRecord{Hash: "h2", VectorIDs: []string{"v2"}}))

	entry := s.Get(ref)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.FileCount)

	// Each checkpoint is durable: a reopened store sees it.
	require.NoError(t, s.Close())
	s2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	entry = s2.Get(ref)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"v1"}, entry.Files["a.md"].VectorIDs)
	assert.Equal(t, []string{"v2"}, entry.Files["b.md"].VectorIDs)
}

func TestStore_VectorIDRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ref := testRef()

	assert.Nil(t, s.FileVectorIDs(ref, "a.md"))

	require.NoError(t, s.SetFileVectorIDs(ref, "a.md", []string{"v1", "v2"}))
	assert.Equal(t, []string{"v1", "v2"}, s.FileVectorIDs(ref, "a.md"))

	require.NoError(t, s.RemoveFile(ref, "a.md"))
	assert.Nil(t, s.FileVectorIDs(ref, "a.md"))
}

func TestStore_RemoveFile_AbsentIsNoop(t *testing.T) {
	s, _ := openTestStore(t)
	assert.NoError(t, s.RemoveFile(testRef(), "never-existed.md"))
}

func TestStore_Remove(t *testing.T) {
	s, _ := openTestStore(t)
	ref := testRef()
	require.NoError(t, s.Update(ref, map[string]*FileRecord{"a.md": {Hash: "h"}}, "rev"))

	require.NoError(t, s.Remove(ref))
	assert.Nil(t, s.Get(ref))
	assert.Empty(t, s.Refs())
}

func TestOpen_CorruptJournalFallsBackToEmpty(t *testing.T) {
	// Given: a corrupt journal file on disk
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	// When: opening
	s, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// Then: the store starts empty instead of failing
	assert.Empty(t, s.Refs())

	// And writes recover the file.
	require.NoError(t, s.Update(testRef(), nil, "rev"))
	s2Path := path
	require.NoError(t, s.Close())
	s2, err := Open(s2Path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()
	assert.Len(t, s2.Refs(), 1)
}

func TestOpen_SecondOpenFailsWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	s, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = Open(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}

func TestFileRecord_Clone(t *testing.T) {
	var nilRec *FileRecord
	assert.Nil(t, nilRec.Clone())

	rec := &FileRecord{Hash: "h", VectorIDs: []string{"v1"}}
	cp := rec.Clone()
	cp.VectorIDs[0] = "changed"
	assert.Equal(t, "v1", rec.VectorIDs[0])
}
