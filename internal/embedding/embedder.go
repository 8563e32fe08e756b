// Package embedding provides text embedding via a remote provider, with caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch is order-preserving
// and returns exactly one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Close() error
}
