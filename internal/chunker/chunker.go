// Package chunker splits page texts into overlapping fixed-size windows.
package chunker

import (
	"fmt"

	"github.com/kotaehq/kotae/internal/models"
)

// Chunker splits text into overlapping character-based chunks. Each chunk keeps
// the page and source it came from so search results can cite their origin.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// Returns an error when the configuration cannot make progress (overlap >= size
// or non-positive size).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Chunk splits the given pages into chunks in source order: page order first,
// then position within the page. Every character of every page appears in at
// least one chunk; adjacent chunks within a page share chunkOverlap characters.
func (c *Chunker) Chunk(docID string, pages []models.PageText) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		chunks = append(chunks, c.chunkPage(docID, page)...)
	}
	return chunks
}

func (c *Chunker) chunkPage(docID string, page models.PageText) []models.Chunk {
	runes := []rune(page.Text)
	if len(runes) == 0 {
		return nil
	}
	meta := models.ChunkMetadata{
		Source: page.Source,
		Page:   page.Page,
		DocID:  docID,
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]models.Chunk, 0, (len(runes)+step-1)/step)
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			Text:     string(runes[i:end]),
			Metadata: meta,
		})
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
