package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/retrieval"
)

// NoContextAnswer is returned without calling the model when retrieval finds
// nothing to ground an answer on.
const NoContextAnswer = "I could not find anything relevant in the indexed documents."

const systemPrompt = `You are a helpful assistant answering questions about a private document collection.
Answer using only the provided context. If the context does not contain the answer, say so.
Cite the source document and page when you use a passage.`

// Answerer composes grounded answers: retrieve the nearest chunks, then ask
// the chat model to answer from them.
type Answerer struct {
	retriever *retrieval.Retriever
	completer Completer
	topK      int
	logger    *zap.Logger
}

// NewAnswerer creates an answerer that grounds each answer on the topK nearest
// chunks across all documents.
func NewAnswerer(r *retrieval.Retriever, c Completer, topK int, logger *zap.Logger) *Answerer {
	if topK <= 0 {
		topK = 4
	}
	return &Answerer{retriever: r, completer: c, topK: topK, logger: logger}
}

// Answer retrieves context for query and composes an answer. With no indexed
// context it returns NoContextAnswer and never calls the model.
func (a *Answerer) Answer(ctx context.Context, query string) (string, error) {
	hits, err := a.retriever.SearchAll(ctx, query, a.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	if len(hits) == 0 {
		a.logger.Info("no context retrieved", zap.String("query", query))
		return NoContextAnswer, nil
	}

	answer, err := a.completer.Complete(ctx, systemPrompt, buildUserPrompt(query, hits))
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", err)
	}
	a.logger.Info("answer composed",
		zap.String("query", query),
		zap.Int("context_chunks", len(hits)),
		zap.String("model", a.completer.Model()))
	return answer, nil
}

func buildUserPrompt(query string, hits []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] (%s, page %d)\n%s\n\n", i+1, h.Metadata.Source, h.Metadata.Page, h.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
