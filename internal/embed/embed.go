// Package embed generates vector embeddings for document chunks.
package embed

import "context"

// Embedder generates embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName identifies the model, used for cache keys and for
	// detecting dimension mismatch against an existing index.
	ModelName() string

	// Close releases resources.
	Close() error
}
