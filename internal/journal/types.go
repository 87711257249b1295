// Package journal persists the per-repository record of indexed files,
// their content hashes, and the vector IDs produced for them.
//
// The journal is a side-car: losing it never loses vector-store data, it
// only forces a full resync on the next run.
package journal

import "time"

// Version is the journal file format version.
const Version = "1.0"

// FileRecord tracks one indexed file within a repository.
type FileRecord struct {
	// Hash is the SHA-256 digest of the file content at index time.
	Hash string `json:"hash"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// LastModified is the file's modification time at index time.
	LastModified time.Time `json:"last_modified"`

	// VectorIDs are the vector-store entries produced for this file.
	// The invariant is that these reflect exactly the vectors currently
	// present in the store for this file.
	VectorIDs []string `json:"vector_ids"`
}

// Clone returns a deep copy of the record.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.VectorIDs = append([]string(nil), r.VectorIDs...)
	return &cp
}

// Entry is the journal record for one repository at one branch.
type Entry struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`

	// LastRevisionMarker is the source revision (commit hash) of the last
	// completed sync. Equality with the source's current marker means no
	// content change.
	LastRevisionMarker string `json:"last_revision_marker"`

	// LastIndexedAt is when the entry was last updated.
	LastIndexedAt time.Time `json:"last_indexed_at"`

	// FileCount is len(Files), denormalized for display.
	FileCount int `json:"file_count"`

	// Files maps repository-relative paths to their records.
	Files map[string]*FileRecord `json:"files"`
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Files = make(map[string]*FileRecord, len(e.Files))
	for path, rec := range e.Files {
		cp.Files[path] = rec.Clone()
	}
	return &cp
}

// journalFile is the on-disk layout: one file holding all repositories.
type journalFile struct {
	Version      string            `json:"version"`
	Repositories map[string]*Entry `json:"repositories"`
}

func newJournalFile() *journalFile {
	return &journalFile{
		Version:      Version,
		Repositories: make(map[string]*Entry),
	}
}
