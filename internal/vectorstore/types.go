// Package vectorstore provides vector persistence with metadata
// filtering on an HNSW graph.
package vectorstore

import (
	"context"
	"fmt"
)

// Node is one stored vector with its metadata.
type Node struct {
	// ID is the vector's identifier. Empty on insert means the store
	// assigns one.
	ID string

	// Vector is the embedding.
	Vector []float32

	// Metadata carries key-value pairs the store can be queried by,
	// "file_path" in particular.
	Metadata map[string]string
}

// Filter selects nodes whose metadata contains every listed pair.
type Filter map[string]string

// Result is a single similarity search hit.
type Result struct {
	ID       string
	Distance float32 // lower is more similar, 0-2 for cosine
	Score    float32 // normalized similarity, 0-1
	Metadata map[string]string
}

// Config configures the vector store.
type Config struct {
	// Dimensions is the vector dimension.
	Dimensions int

	// Metric is the distance metric: "cos" or "l2" (default "cos").
	Metric string

	// M is HNSW max connections per layer (default 16).
	M int

	// EfSearch is HNSW query-time search width (default 20).
	EfSearch int
}

// DefaultConfig returns sensible defaults for the given dimension.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// Store persists vectors and answers metadata and similarity queries.
type Store interface {
	// Insert adds nodes. Nodes without an ID get a generated one. A node
	// whose ID already exists is replaced.
	Insert(ctx context.Context, nodes []Node) error

	// Query returns the IDs of all nodes matching the filter.
	Query(ctx context.Context, filter Filter) ([]string, error)

	// Search finds the k nearest neighbors to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// Delete removes nodes by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of live vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch between
// the embedder and an existing index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (delete the vector directory and re-sync)", e.Expected, e.Got)
}
