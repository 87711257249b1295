package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiao-925/ragsync/internal/journal"
)

func snapshotOf(files map[string]string) *Snapshot {
	snap := &Snapshot{Revision: "rev", Files: make(map[string]FileMeta)}
	for path, hash := range files {
		snap.Files[path] = FileMeta{Path: path, Hash: hash}
	}
	return snap
}

func entryOf(revision string, files map[string]string) *journal.Entry {
	entry := &journal.Entry{
		LastRevisionMarker: revision,
		Files:              make(map[string]*journal.FileRecord),
	}
	for path, hash := range files {
		entry.Files[path] = &journal.FileRecord{Hash: hash}
	}
	return entry
}

func TestUnchanged(t *testing.T) {
	entry := entryOf("rev-1", nil)

	assert.True(t, Unchanged(entry, "rev-1"))
	assert.False(t, Unchanged(entry, "rev-2"))
	assert.False(t, Unchanged(nil, "rev-1"), "never-synced repository always needs work")
	assert.False(t, Unchanged(entry, ""), "empty marker cannot prove anything")
}

func TestDiff_ClassifiesChanges(t *testing.T) {
	// Given: a journal with three files and a snapshot where one is
	// modified, one deleted and a new one appeared
	entry := entryOf("rev-1", map[string]string{
		"kept.md":     "h-kept",
		"modified.md": "h-old",
		"deleted.md":  "h-del",
	})
	snap := snapshotOf(map[string]string{
		"kept.md":     "h-kept",
		"modified.md": "h-new",
		"added.md":    "h-add",
	})

	// When: diffing
	cs := Diff(entry, snap)

	// Then: each file lands in exactly one set
	assert.Equal(t, []string{"added.md"}, cs.Added)
	assert.Equal(t, []string{"modified.md"}, cs.Modified)
	assert.Equal(t, []string{"deleted.md"}, cs.Deleted)
	assert.True(t, cs.HasChanges())
	assert.Equal(t, 3, cs.Total())
}

func TestDiff_SetsAreDisjoint(t *testing.T) {
	entry := entryOf("rev", map[string]string{"a.md": "1", "b.md": "2", "c.md": "3"})
	snap := snapshotOf(map[string]string{"b.md": "2x", "c.md": "3", "d.md": "4"})

	cs := Diff(entry, snap)

	seen := make(map[string]int)
	for _, p := range cs.Added {
		seen[p]++
	}
	for _, p := range cs.Modified {
		seen[p]++
	}
	for _, p := range cs.Deleted {
		seen[p]++
	}
	for path, count := range seen {
		assert.Equal(t, 1, count, "path %s appears in multiple sets", path)
	}
}

func TestDiff_NilEntryMeansAllAdded(t *testing.T) {
	snap := snapshotOf(map[string]string{"a.md": "1", "b.md": "2"})

	cs := Diff(nil, snap)

	assert.Equal(t, []string{"a.md", "b.md"}, cs.Added)
	assert.Empty(t, cs.Modified)
	assert.Empty(t, cs.Deleted)
}

func TestDiff_EmptySnapshotMeansAllDeleted(t *testing.T) {
	entry := entryOf("rev", map[string]string{"a.md": "1", "b.md": "2"})

	cs := Diff(entry, snapshotOf(nil))

	assert.Empty(t, cs.Added)
	assert.Empty(t, cs.Modified)
	assert.Equal(t, []string{"a.md", "b.md"}, cs.Deleted)
}

func TestDiff_NoChanges(t *testing.T) {
	files := map[string]string{"a.md": "1"}
	cs := Diff(entryOf("rev", files), snapshotOf(files))

	assert.False(t, cs.HasChanges())
	assert.Equal(t, 0, cs.Total())
	assert.Equal(t, "0 added, 0 modified, 0 deleted", cs.Summary())
}

func TestChangeSet_Candidates(t *testing.T) {
	cs := &ChangeSet{
		Added:    []string{"z.md", "a.md"},
		Modified: []string{"m.md"},
		Deleted:  []string{"gone.md"},
	}

	// Candidates are added plus modified, sorted; deleted is excluded.
	require.Equal(t, []string{"a.md", "m.md", "z.md"}, cs.Candidates())
}
