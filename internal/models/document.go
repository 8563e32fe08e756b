// Package models defines core data structures for documents, chunks, and search results.
package models

import "time"

// DocumentMetadata is the lifecycle record of one ingested document, keyed by DocID.
// DocID, Filename, and CreatedAt are immutable after creation; Status and the
// optional fields are mutated only by the ingestion pipeline. ErrorMessage is a
// post-mortem record and is never cleared.
type DocumentMetadata struct {
	DocID          string    `json:"doc_id"`
	Filename       string    `json:"filename"`
	Status         Status    `json:"status"`
	ChunkCount     int       `json:"chunk_count,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Stale reports whether the record has not been touched for longer than maxAge.
// A non-terminal record that is stale most likely belongs to a crashed pipeline
// run; a fresh one is still in flight.
func (m *DocumentMetadata) Stale(now time.Time, maxAge time.Duration) bool {
	return !m.Status.Terminal() && now.Sub(m.UpdatedAt) > maxAge
}

// PageText is one page of extracted source text with its provenance.
type PageText struct {
	Source string
	Page   int
	Text   string
}

// Chunk is a bounded-length text window cut from a source page. Chunks are
// ephemeral: once embedded their content and metadata live only inside the
// document's vector index.
type Chunk struct {
	Text     string
	Metadata ChunkMetadata
}

// ChunkMetadata is the provenance baked into the vector index per chunk.
type ChunkMetadata struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
	DocID  string `json:"doc_id"`
}

// SearchResult is a single similarity hit. Score is an L2-style distance:
// lower means more similar.
type SearchResult struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}
