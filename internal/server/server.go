// Package server provides the HTTP API for terminology search, draft orders and CDS triggers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/pama/internal/config"
	"github.com/hyperjump/pama/internal/metrics"
	"github.com/hyperjump/pama/internal/registry"
	"github.com/hyperjump/pama/internal/search"
	"github.com/hyperjump/pama/internal/storage"
	"github.com/hyperjump/pama/internal/terminology"
	"go.uber.org/zap"
)

// Server is the HTTP server for the PAMA API.
type Server struct {
	catalog  *search.Catalog
	sessions map[terminology.Kind]*search.SessionCache
	storage  storage.Storage
	registry *registry.Registry
	config   *config.Config
	metrics  *metrics.Collector
	logger   *zap.Logger
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes m on /metrics and records request-level counters on it.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	catalog *search.Catalog,
	store storage.Storage,
	reg *registry.Registry,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		catalog:  catalog,
		storage:  store,
		registry: reg,
		config:   cfg,
		logger:   logger,
		sessions: make(map[terminology.Kind]*search.SessionCache, len(terminology.Kinds)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, kind := range terminology.Kinds {
		kind := kind
		s.sessions[kind] = search.NewSessionCache(cfg.Search.SessionCacheSize, func() *search.Service {
			return s.newSearchService(kind)
		})
	}
	return s
}

func (s *Server) newSearchService(kind terminology.Kind) *search.Service {
	return search.NewService(s.catalog.Searcher(kind),
		search.WithName(string(kind)),
		search.WithDelay(time.Duration(s.config.Search.DebounceMS)*time.Millisecond),
		search.WithMaxResults(s.config.Search.MaxResults),
		search.WithLogger(s.logger),
		search.WithMetrics(s.metrics),
	)
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Get("/terminology/{kind}/search", s.handleSearch)
		r.Get("/terminology/{kind}/defaults", s.handleDefaults)

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", s.handleCreateDraft)
			r.Get("/", s.handleListDrafts)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDraft)
				r.Delete("/", s.handleDeleteDraft)
				r.Put("/study", s.handleUpdateStudy)
				r.Delete("/study", s.handleRemoveStudy)
				r.Post("/reasons", s.handleAddReason)
				r.Delete("/reasons/{code}", s.handleRemoveReason)
				r.Post("/sign", s.handleSign)
				r.Get("/ratings", s.handleListRatings)
			})
		})

		r.Route("/cds/triggers", func(r chi.Router) {
			r.Get("/", s.handleListTriggers)
			// Trigger point names are namespaced, e.g. pama/order-sign.
			r.Get("/{namespace}/{hook}/context", s.handleGenerateContext)
			r.Post("/{namespace}/{hook}/system-actions", s.handleSystemActions)
			r.Post("/{namespace}/{hook}/messages", s.handleMessage)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
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
