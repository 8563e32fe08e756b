// Package retrieval aggregates similarity search across every completed
// document's index.
package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/docmeta"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/vectorstore"
)

// Retriever fans a query out over all completed documents and merges the hits.
type Retriever struct {
	docs      *docmeta.Service
	embedder  embedding.Embedder
	vectorDir string
	logger    *zap.Logger
}

// NewRetriever creates a retriever over the given vector index root.
func NewRetriever(docs *docmeta.Service, emb embedding.Embedder, vectorDir string, logger *zap.Logger) *Retriever {
	return &Retriever{docs: docs, embedder: emb, vectorDir: vectorDir, logger: logger}
}

// SearchAll returns the k nearest chunks across all completed documents,
// ascending by score. A document whose index fails to load is skipped with a
// warning; its failure never hides another document's results. An empty result
// set is not an error.
func (r *Retriever) SearchAll(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	docs, err := r.docs.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var merged []models.SearchResult
	for _, doc := range docs {
		if doc.Status != models.StatusCompleted {
			continue
		}
		ix, err := vectorstore.Load(filepath.Join(r.vectorDir, doc.DocID))
		if err != nil {
			r.logger.Warn("skipping unreadable index",
				zap.String("doc_id", doc.DocID), zap.Error(err))
			continue
		}
		hits, err := ix.SimilaritySearchWithScore(qvec, k)
		if err != nil {
			r.logger.Warn("search failed for document",
				zap.String("doc_id", doc.DocID), zap.Error(err))
			continue
		}
		merged = append(merged, hits...)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Score < merged[j].Score })
	if k < len(merged) {
		merged = merged[:k]
	}
	return merged, nil
}
