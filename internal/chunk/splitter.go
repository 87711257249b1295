// Package chunk splits document text into overlapping pieces sized for
// embedding.
package chunk

import (
	"strings"
)

// Splitter produces fixed-size chunks with overlap. Splitting prefers
// paragraph and line boundaries near the target size over hard cuts.
type Splitter struct {
	// Size is the target chunk length in runes.
	Size int

	// Overlap is how many trailing runes of one chunk reopen the next.
	Overlap int
}

// NewSplitter creates a splitter, applying defaults for non-positive
// values (size 1000, overlap 200).
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{Size: size, Overlap: overlap}
}

// Split returns the chunks for text. Whitespace-only input yields no
// chunks. Text shorter than Size yields a single chunk.
func (s *Splitter) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= s.Size {
		return []string{trimmed}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.Size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := s.boundary(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - s.Overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// boundary looks backwards from end for a paragraph break, then a line
// break, then a space, falling back to a hard cut at end. The search is
// limited to the last quarter of the window so chunks stay near Size.
func (s *Splitter) boundary(runes []rune, start, end int) int {
	limit := end - s.Size/4
	if limit < start+1 {
		limit = start + 1
	}

	for i := end; i > limit; i-- {
		if i < len(runes)-1 && runes[i] == '\n' && runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > limit; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	for i := end; i > limit; i-- {
		if runes[i] == ' ' || runes[i] == '\t' {
			return i
		}
	}
	return end
}
