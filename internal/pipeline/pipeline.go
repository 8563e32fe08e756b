// Package pipeline runs documents through extraction, chunking, embedding, and
// indexing, advancing the metadata state machine as each stage completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/chunker"
	"github.com/kotaehq/kotae/internal/docmeta"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/extract"
	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/vectorstore"
)

// ErrUnsupportedType is returned when an upload's extension is not extractable.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrDocumentNotReady is returned when a search targets a document whose
// pipeline run has not completed.
var ErrDocumentNotReady = errors.New("document not ready for search")

// processTimeout bounds one background pipeline run.
const processTimeout = 10 * time.Minute

// Pipeline owns the ingestion flow for uploaded documents.
type Pipeline struct {
	docs      *docmeta.Service
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	uploadDir string
	vectorDir string
	logger    *zap.Logger

	wg sync.WaitGroup
}

// New creates a pipeline. uploadDir and vectorDir are created if missing.
func New(docs *docmeta.Service, ch *chunker.Chunker, emb embedding.Embedder, uploadDir, vectorDir string, logger *zap.Logger) (*Pipeline, error) {
	for _, dir := range []string{uploadDir, vectorDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Pipeline{
		docs:      docs,
		extractor: extract.NewExtractor(),
		chunker:   ch,
		embedder:  emb,
		uploadDir: uploadDir,
		vectorDir: vectorDir,
		logger:    logger,
	}, nil
}

// Ingest registers a new document, stages its content on disk, and processes it
// in the background. The returned metadata is in the processing state; poll the
// document status to follow the run.
func (p *Pipeline) Ingest(ctx context.Context, filename string, content io.Reader) (*models.DocumentMetadata, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extract.IsSupported(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	meta, err := p.docs.LogDocumentStart(ctx, filepath.Base(filename))
	if err != nil {
		return nil, err
	}

	path, err := p.SaveFile(meta.DocID+ext, content)
	if err != nil {
		p.fail(ctx, meta.DocID, "stage upload", err)
		return nil, err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		p.Process(ctx, meta.DocID, path)
	}()
	return meta, nil
}

// Process runs the full pipeline for one staged file. Any stage failure puts
// the document into the error state with a message; the error state is final.
func (p *Pipeline) Process(ctx context.Context, docID, path string) {
	log := p.logger.With(zap.String("doc_id", docID))
	log.Info("processing document", zap.String("path", path))

	pages, err := p.extractor.Extract(path)
	if err != nil {
		p.fail(ctx, docID, "extract", err)
		return
	}

	chunks := p.chunker.Chunk(docID, pages)
	if len(chunks) == 0 {
		p.fail(ctx, docID, "chunk", errors.New("document contains no text"))
		return
	}
	if err := p.docs.UpdateStatus(ctx, docID, models.StatusChunkingComplete, docmeta.WithChunkCount(len(chunks))); err != nil {
		log.Error("failed to record chunking", zap.Error(err))
		return
	}
	log.Info("chunking complete", zap.Int("chunks", len(chunks)))

	if err := p.docs.UpdateStatus(ctx, docID, models.StatusEmbedding, docmeta.WithEmbeddingModel(p.embedder.Model())); err != nil {
		log.Error("failed to enter embedding state", zap.Error(err))
		return
	}
	texts := make([]string, len(chunks))
	metadatas := make([]models.ChunkMetadata, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		metadatas[i] = c.Metadata
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.fail(ctx, docID, "embed", err)
		return
	}

	ix, err := vectorstore.New(texts, vectors, metadatas)
	if err != nil {
		p.fail(ctx, docID, "build index", err)
		return
	}
	if err := ix.Save(p.indexDir(docID)); err != nil {
		p.fail(ctx, docID, "save index", err)
		return
	}

	if err := p.docs.UpdateStatus(ctx, docID, models.StatusCompleted); err != nil {
		log.Error("failed to record completion", zap.Error(err))
		return
	}
	log.Info("document indexed", zap.Int("chunks", len(chunks)), zap.String("model", p.embedder.Model()))
}

// SearchDocument runs a similarity search against one completed document.
func (p *Pipeline) SearchDocument(ctx context.Context, docID, query string, k int) ([]models.SearchResult, error) {
	meta, err := p.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if meta.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrDocumentNotReady, docID, meta.Status)
	}
	ix, err := vectorstore.Load(p.indexDir(docID))
	if err != nil {
		return nil, err
	}
	qvec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.SimilaritySearchWithScore(qvec, k)
}

// DeleteDocument removes a document's metadata, index directory, and staged
// upload. Missing index or upload files are ignored; metadata must exist.
func (p *Pipeline) DeleteDocument(ctx context.Context, docID string) error {
	if err := p.docs.Delete(ctx, docID); err != nil {
		return err
	}
	if err := vectorstore.Delete(p.indexDir(docID)); err != nil {
		p.logger.Warn("failed to delete index dir", zap.String("doc_id", docID), zap.Error(err))
	}
	matches, _ := filepath.Glob(filepath.Join(p.uploadDir, docID+".*"))
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			p.logger.Warn("failed to delete staged upload", zap.String("path", m), zap.Error(err))
		}
	}
	p.logger.Info("document deleted", zap.String("doc_id", docID))
	return nil
}

// CleanupOldDocuments deletes every document whose last update is before
// cutoff, along with its index and staged upload. Returns the number of
// documents removed.
func (p *Pipeline) CleanupOldDocuments(ctx context.Context, cutoff time.Time) (int, error) {
	all, err := p.docs.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	removed := 0
	for _, meta := range all {
		if !meta.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := p.DeleteDocument(ctx, meta.DocID); err != nil {
			p.logger.Warn("retention sweep failed to delete document",
				zap.String("doc_id", meta.DocID), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		p.logger.Info("retention sweep removed documents",
			zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

// Wait blocks until all background processing goroutines have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// IndexDir returns the vector index directory for docID.
func (p *Pipeline) IndexDir(docID string) string {
	return p.indexDir(docID)
}

func (p *Pipeline) indexDir(docID string) string {
	return filepath.Join(p.vectorDir, docID)
}

// SaveFile writes uploaded content into the uploads directory under name and
// returns the staged path.
func (p *Pipeline) SaveFile(name string, content io.Reader) (string, error) {
	path := filepath.Join(p.uploadDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return path, nil
}

func (p *Pipeline) fail(ctx context.Context, docID, stage string, cause error) {
	p.logger.Error("pipeline stage failed",
		zap.String("doc_id", docID),
		zap.String("stage", stage),
		zap.Error(cause))
	msg := fmt.Sprintf("%s: %v", stage, cause)
	if err := p.docs.UpdateStatus(ctx, docID, models.StatusError, docmeta.WithErrorMessage(msg)); err != nil {
		p.logger.Error("failed to record error state", zap.String("doc_id", docID), zap.Error(err))
	}
}
