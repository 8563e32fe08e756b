// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/calllog"
	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/docmeta"
	"github.com/kotaehq/kotae/internal/llm"
	"github.com/kotaehq/kotae/internal/pipeline"
	"github.com/kotaehq/kotae/internal/respcache"
)

// Server is the HTTP server for the kotae API.
type Server struct {
	docs     *docmeta.Service
	pipeline *pipeline.Pipeline
	answerer *llm.Answerer
	cache    *respcache.Cache
	calls    *calllog.Log
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	docs *docmeta.Service,
	p *pipeline.Pipeline,
	answerer *llm.Answerer,
	cache *respcache.Cache,
	calls *calllog.Log,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		docs:     docs,
		pipeline: p,
		answerer: answerer,
		cache:    cache,
		calls:    calls,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleUpload)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Post("/api/v1/documents/{id}/search", s.handleSearchDocument)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/calls", s.handleCalls)
	r.Post("/api/v1/feedback", s.handlePostFeedback)
	r.Get("/api/v1/feedback", s.handleGetFeedback)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
