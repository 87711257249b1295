// Package parse turns checkout files into documents ready for chunking
// and embedding.
package parse

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Document is one parsed source file.
type Document struct {
	// ID is a stable identifier derived from path and content.
	ID string

	// FilePath is the repository-relative path.
	FilePath string

	// Text is the document content.
	Text string

	// Metadata carries per-document key-value pairs; "file_path" is
	// always present and is what the vector store is queried by.
	Metadata map[string]string
}

// Parser converts file paths into documents. Implementations may return
// fewer documents than input paths: unparsable files are dropped, which
// is a normal, non-fatal outcome.
type Parser interface {
	ParseFiles(ctx context.Context, root string, paths []string) ([]Document, error)
}

// FileParser reads plain-text files from a checkout. Binary, empty and
// unreadable files are logged and skipped.
type FileParser struct {
	// OnFile, when set, is called after each path is handled (parsed or
	// skipped). Used for progress reporting.
	OnFile func(path string, parsed bool)
}

// ParseFiles reads each path under root. A file-level failure never fails
// the batch.
func (p *FileParser) ParseFiles(ctx context.Context, root string, paths []string) ([]Document, error) {
	docs := make([]Document, 0, len(paths))
	for _, rel := range paths {
		select {
		case <-ctx.Done():
			return docs, ctx.Err()
		default:
		}

		doc, ok := p.parseOne(root, rel)
		if p.OnFile != nil {
			p.OnFile(rel, ok)
		}
		if !ok {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (p *FileParser) parseOne(root, rel string) (Document, bool) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		slog.Warn("parse: unreadable file dropped",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return Document{}, false
	}
	if len(content) == 0 || isBinary(content) {
		slog.Debug("parse: empty or binary file dropped", slog.String("path", rel))
		return Document{}, false
	}

	text := string(content)
	return Document{
		ID:       documentID(rel, content),
		FilePath: rel,
		Text:     text,
		Metadata: map[string]string{
			"file_path": rel,
			"extension": strings.ToLower(filepath.Ext(rel)),
			"size":      fmt.Sprint(len(content)),
		},
	}, true
}

// documentID derives a stable content-addressed ID (first 16 hex chars).
func documentID(path string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// isBinary checks the first 512 bytes for null bytes.
func isBinary(content []byte) bool {
	n := len(content)
	if n > 512 {
		n = 512
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}
