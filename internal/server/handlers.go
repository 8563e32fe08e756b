package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/docmeta"
	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/pipeline"
	"github.com/kotaehq/kotae/internal/vectorstore"
	"github.com/kotaehq/kotae/pkg/utils"
)

// maxUploadBytes caps one multipart upload.
const maxUploadBytes = 64 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	s.logger.Debug("upload request", zap.String("filename", header.Filename))
	meta, err := s.pipeline.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnsupportedType) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Processing continues in the background; poll the document status.
	s.respondJSON(w, http.StatusAccepted, meta)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.GetAll(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meta, err := s.docs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, docmeta.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("doc_id", id))
	if err := s.pipeline.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, docmeta.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"doc_id": id, "status": "deleted"})
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (s *Server) handleSearchDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K <= 0 {
		req.K = s.config.LLM.TopK
	}

	results, err := s.pipeline.SearchDocument(r.Context(), id, req.Query, req.K)
	switch {
	case err == nil:
	case errors.Is(err, docmeta.ErrNotFound), errors.Is(err, vectorstore.ErrIndexNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, pipeline.ErrDocumentNotReady):
		s.respondError(w, http.StatusConflict, err.Error())
		return
	default:
		s.logger.Error("search failed", zap.String("doc_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	ctx := r.Context()
	s.logger.Debug("ask request", zap.String("query", utils.Truncate(req.Query, 200)))

	if answer, ok := s.cache.Get(ctx, req.Query); ok {
		s.recordCall(ctx, req.Query, answer, "cache")
		s.respondJSON(w, http.StatusOK, askResponse{Answer: answer, Source: "cache"})
		return
	}

	answer, err := s.answerer.Answer(ctx, req.Query)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.cache.Set(ctx, req.Query, answer)
	s.recordCall(ctx, req.Query, answer, "llm")
	s.respondJSON(w, http.StatusOK, askResponse{Answer: answer, Source: "llm"})
}

// recordCall appends to the call log. Log failures never fail the request.
func (s *Server) recordCall(ctx context.Context, query, answer, source string) {
	if err := s.calls.RecordCall(ctx, query, answer, source); err != nil {
		s.logger.Warn("failed to record call", zap.Error(err))
	}
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	records, err := s.calls.Calls(r.Context(), limit)
	if err != nil {
		s.logger.Error("read call log failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"calls": records, "count": len(records)})
}

type feedbackRequest struct {
	QueryID string `json:"query_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handlePostFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.calls.RecordFeedback(r.Context(), req.QueryID, req.Rating, req.Comment); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	records, err := s.calls.Feedback(r.Context(), limit)
	if err != nil {
		s.logger.Error("read feedback log failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"feedback": records, "count": len(records)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.GetAll(r.Context())
	if err != nil {
		s.logger.Error("status: list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var completed, failed, chunks int
	for _, d := range docs {
		switch d.Status {
		case models.StatusCompleted:
			completed++
			chunks += d.ChunkCount
		case models.StatusError:
			failed++
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": len(docs),
		"completed": completed,
		"failed":    failed,
		"chunks":    chunks,
		"config": map[string]interface{}{
			"chunk_size":      s.config.Chunking.ChunkSize,
			"chunk_overlap":   s.config.Chunking.ChunkOverlap,
			"embedding_model": s.config.Embedding.Model,
			"llm_model":       s.config.LLM.Model,
			"cache_ttl_secs":  s.config.Cache.TTLSeconds,
		},
	})
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
