// Package detect classifies the source's current file set against the
// journal into added, modified and deleted paths.
package detect

import (
	"fmt"
	"sort"
)

// ChangeSet is the result of change detection. The three sets are
// pairwise disjoint by construction.
type ChangeSet struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// HasChanges reports whether any file changed.
func (c *ChangeSet) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Modified) > 0 || len(c.Deleted) > 0
}

// Total returns the total number of changed paths.
func (c *ChangeSet) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// Summary returns a short human-readable description.
func (c *ChangeSet) Summary() string {
	return fmt.Sprintf("%d added, %d modified, %d deleted",
		len(c.Added), len(c.Modified), len(c.Deleted))
}

// Candidates returns the paths that need (re)indexing: added plus
// modified, in sorted order.
func (c *ChangeSet) Candidates() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	sort.Strings(out)
	return out
}
