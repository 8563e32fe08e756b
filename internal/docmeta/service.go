// Package docmeta maintains the lifecycle record of every ingested document in
// the key/value store, keyed by document id in a single hash map.
package docmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kotaehq/kotae/internal/kvstore"
	"github.com/kotaehq/kotae/internal/models"
)

// ErrNotFound is returned when no metadata record exists for a document id.
var ErrNotFound = errors.New("document not found")

// docsKey is the hash map holding every document's metadata record.
const docsKey = "embedded_documents"

// Service reads and writes document metadata records.
type Service struct {
	store kvstore.Store
	now   func() time.Time
}

// NewService creates a metadata service over the given store.
func NewService(store kvstore.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// LogDocumentStart creates a new metadata record in the processing state and
// returns it. The generated id is unique per call: same-second uploads of the
// same filename still get distinct ids.
func (s *Service) LogDocumentStart(ctx context.Context, filename string) (*models.DocumentMetadata, error) {
	now := s.now().UTC()
	meta := &models.DocumentMetadata{
		DocID:     newDocID(now, filename),
		Filename:  filename,
		Status:    models.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(ctx, meta); err != nil {
		return nil, fmt.Errorf("log document start: %w", err)
	}
	return meta, nil
}

// UpdateOption sets an optional field during a status update.
type UpdateOption func(*models.DocumentMetadata)

// WithChunkCount records the number of chunks produced.
func WithChunkCount(n int) UpdateOption {
	return func(m *models.DocumentMetadata) { m.ChunkCount = n }
}

// WithEmbeddingModel records the embedding model identifier.
func WithEmbeddingModel(model string) UpdateOption {
	return func(m *models.DocumentMetadata) { m.EmbeddingModel = model }
}

// WithErrorMessage records the failure description. Once set it is never cleared.
func WithErrorMessage(msg string) UpdateOption {
	return func(m *models.DocumentMetadata) { m.ErrorMessage = msg }
}

// UpdateStatus transitions the document to status, applying any options, and
// persists the record. The transition is validated against the state machine;
// regressions and transitions out of terminal states are rejected.
func (s *Service) UpdateStatus(ctx context.Context, docID string, status models.Status, opts ...UpdateOption) error {
	meta, err := s.Get(ctx, docID)
	if err != nil {
		return err
	}
	if err := meta.Status.CanTransition(status); err != nil {
		return fmt.Errorf("update %s: %w", docID, err)
	}
	meta.Status = status
	for _, opt := range opts {
		opt(meta)
	}
	meta.UpdatedAt = s.now().UTC()
	if err := s.put(ctx, meta); err != nil {
		return fmt.Errorf("update %s: %w", docID, err)
	}
	return nil
}

// Get returns the metadata record for docID, or ErrNotFound.
func (s *Service) Get(ctx context.Context, docID string) (*models.DocumentMetadata, error) {
	data, ok, err := s.store.HashGet(ctx, docsKey, docID)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", docID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	var meta models.DocumentMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", docID, err)
	}
	meta.DocID = docID
	return &meta, nil
}

// GetAll returns every document's metadata record, in no particular order.
func (s *Service) GetAll(ctx context.Context) ([]*models.DocumentMetadata, error) {
	all, err := s.store.HashGetAll(ctx, docsKey)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]*models.DocumentMetadata, 0, len(all))
	for docID, data := range all {
		var meta models.DocumentMetadata
		if err := json.Unmarshal([]byte(data), &meta); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", docID, err)
		}
		meta.DocID = docID
		docs = append(docs, &meta)
	}
	return docs, nil
}

// Delete removes the metadata record for docID. Returns ErrNotFound when no
// record exists.
func (s *Service) Delete(ctx context.Context, docID string) error {
	if _, err := s.Get(ctx, docID); err != nil {
		return err
	}
	if err := s.store.HashDelete(ctx, docsKey, docID); err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	return nil
}

func (s *Service) put(ctx context.Context, meta *models.DocumentMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.store.HashSet(ctx, docsKey, meta.DocID, string(data))
}

// newDocID builds a document id from the upload time, a uuid fragment, and the
// sanitized filename. The timestamp prefix keeps ids greppable; the uuid part
// guarantees uniqueness.
func newDocID(now time.Time, filename string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filename)
	return fmt.Sprintf("doc_%s_%s_%s", now.Format("20060102T150405"), uuid.New().String()[:8], name)
}
