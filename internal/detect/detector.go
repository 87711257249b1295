package detect

import (
	"sort"

	"github.com/qiao-925/ragsync/internal/journal"
)

// Unchanged reports the fast path: when the source's current revision
// marker equals the journal's stored marker, nothing changed and no
// snapshot needs to be built.
func Unchanged(entry *journal.Entry, revision string) bool {
	return entry != nil && revision != "" && entry.LastRevisionMarker == revision
}

// Diff is the precise path: it compares a hashed snapshot against the
// journal entry's file records.
//
//   - path absent from the journal        -> added
//   - path present with a different hash  -> modified
//   - journal path absent from snapshot   -> deleted
//
// A nil entry means the repository was never synced: every snapshot file
// is added. An empty snapshot of a known repository marks every journal
// file deleted.
func Diff(entry *journal.Entry, snap *Snapshot) *ChangeSet {
	cs := &ChangeSet{}

	var recorded map[string]*journal.FileRecord
	if entry != nil {
		recorded = entry.Files
	}

	for path, meta := range snap.Files {
		rec, ok := recorded[path]
		switch {
		case !ok:
			cs.Added = append(cs.Added, path)
		case rec.Hash != meta.Hash:
			cs.Modified = append(cs.Modified, path)
		}
	}

	for path := range recorded {
		if _, ok := snap.Files[path]; !ok {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
	return cs
}
