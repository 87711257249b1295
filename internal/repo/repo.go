// Package repo defines the repository handle used as the identity for
// journal entries and sync runs.
package repo

import (
	"fmt"
	"strings"
)

// Ref identifies one tracked repository at a specific branch.
// It maps 1:1 to a journal entry.
type Ref struct {
	Owner  string
	Name   string
	Branch string
}

// Key returns the canonical journal key "<owner>/<name>@<branch>".
func (r Ref) Key() string {
	return fmt.Sprintf("%s/%s@%s", r.Owner, r.Name, r.Branch)
}

// String returns the key form.
func (r Ref) String() string {
	return r.Key()
}

// Validate checks that all three identity components are present.
func (r Ref) Validate() error {
	if r.Owner == "" || r.Name == "" || r.Branch == "" {
		return fmt.Errorf("incomplete repository reference: %q", r.Key())
	}
	return nil
}

// Parse parses "<owner>/<name>@<branch>" back into a Ref.
// The branch defaults to "main" when the "@" part is omitted.
func Parse(s string) (Ref, error) {
	branch := "main"
	if at := strings.LastIndex(s, "@"); at >= 0 {
		branch = s[at+1:]
		s = s[:at]
	}
	owner, name, ok := strings.Cut(s, "/")
	if !ok {
		return Ref{}, fmt.Errorf("invalid repository reference %q: want owner/name[@branch]", s)
	}
	ref := Ref{Owner: owner, Name: name, Branch: branch}
	if err := ref.Validate(); err != nil {
		return Ref{}, err
	}
	return ref, nil
}
