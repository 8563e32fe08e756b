// Package vectorstore provides the per-document vector index: brute-force L2
// similarity search over embedded chunks, persisted one directory per document.
package vectorstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kotaehq/kotae/internal/models"
)

// ErrIndexNotFound is returned when a document's index directory or its
// required files do not exist.
var ErrIndexNotFound = errors.New("vector index not found")

// ErrIndexCorrupt is returned when index files exist but cannot be deserialized.
var ErrIndexCorrupt = errors.New("vector index corrupt")

// Index is an in-memory vector index over one document's chunks. Scores are
// squared L2 distances: lower means more similar. Mutations (AddTexts) are
// in-memory only until Save is called.
type Index struct {
	dimensions int
	contents   []string
	metadatas  []models.ChunkMetadata
	vectors    [][]float32
	mu         sync.RWMutex
}

// New builds an index from parallel slices of chunk texts, their embeddings,
// and their provenance metadata. All vectors must share one dimension.
func New(texts []string, vectors [][]float32, metadatas []models.ChunkMetadata) (*Index, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("cannot build an index from zero texts")
	}
	if len(texts) != len(vectors) || len(texts) != len(metadatas) {
		return nil, fmt.Errorf("texts, vectors, and metadatas length mismatch: %d/%d/%d",
			len(texts), len(vectors), len(metadatas))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("vectors must be non-empty")
	}
	ix := &Index{
		dimensions: dim,
		contents:   make([]string, 0, len(texts)),
		metadatas:  make([]models.ChunkMetadata, 0, len(texts)),
		vectors:    make([][]float32, 0, len(texts)),
	}
	if err := ix.appendAll(texts, vectors, metadatas); err != nil {
		return nil, err
	}
	return ix, nil
}

// AddTexts appends chunks to the loaded index. The change is not durable until
// Save is called.
func (ix *Index) AddTexts(texts []string, vectors [][]float32, metadatas []models.ChunkMetadata) error {
	if len(texts) != len(vectors) || len(texts) != len(metadatas) {
		return fmt.Errorf("texts, vectors, and metadatas length mismatch: %d/%d/%d",
			len(texts), len(vectors), len(metadatas))
	}
	return ix.appendAll(texts, vectors, metadatas)
}

func (ix *Index) appendAll(texts []string, vectors [][]float32, metadatas []models.ChunkMetadata) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i := range texts {
		if len(vectors[i]) != ix.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), ix.dimensions)
		}
		vec := make([]float32, ix.dimensions)
		copy(vec, vectors[i])
		ix.contents = append(ix.contents, texts[i])
		ix.metadatas = append(ix.metadatas, metadatas[i])
		ix.vectors = append(ix.vectors, vec)
	}
	return nil
}

// SimilaritySearchWithScore returns the k nearest chunks to query, ascending by
// score (squared L2 distance). Fewer than k results are returned when the index
// holds fewer vectors.
func (ix *Index) SimilaritySearchWithScore(query []float32, k int) ([]models.SearchResult, error) {
	if len(query) != ix.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), ix.dimensions)
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}
	results := make([]models.SearchResult, len(ix.vectors))
	for i, vec := range ix.vectors {
		var dist float64
		for j := 0; j < ix.dimensions; j++ {
			d := float64(query[j] - vec[j])
			dist += d * d
		}
		results[i] = models.SearchResult{
			Content:  ix.contents[i],
			Metadata: ix.metadatas[i],
			Score:    dist,
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of vectors in the index.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Dimensions returns the vector dimension of the index.
func (ix *Index) Dimensions() int {
	return ix.dimensions
}
