package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/internal/search"
	"github.com/hyperjump/pama/internal/storage"
	"github.com/hyperjump/pama/internal/terminology"
	"go.uber.org/zap"
)

type searchResponse struct {
	Kind    terminology.Kind      `json:"kind"`
	Query   string                `json:"query"`
	Options []models.SelectOption `json:"options"`
	// Suggestion is a spelling-corrected query, offered when nothing matched.
	Suggestion string `json:"suggestion,omitempty"`
}

func (s *Server) kindParam(w http.ResponseWriter, r *http.Request) (terminology.Kind, bool) {
	kind, err := terminology.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return kind, true
}

// handleSearch answers a debounced query. Requests sharing a session supersede each other;
// a superseded request gets 204 No Content.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	session := r.URL.Query().Get("session")

	var svc *search.Service
	if session != "" {
		svc = s.sessions[kind].Get(session)
	} else {
		svc = s.newSearchService(kind)
		defer svc.Stop()
	}

	s.logger.Debug("search request", zap.String("kind", string(kind)), zap.String("query", query), zap.String("session", session))
	options, delivered := search.Await(r.Context(), svc.Search(r.Context(), query))
	if !delivered {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	resp := searchResponse{Kind: kind, Query: query, Options: options}
	if len(options) == 0 && query != "" {
		resp.Suggestion = s.catalog.Suggest(kind, query)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	limit := s.config.Search.DefaultOptions
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	options := models.ToSelectOptions(s.catalog.Defaults(kind, limit))
	s.respondJSON(w, http.StatusOK, searchResponse{Kind: kind, Options: options})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.storage.CountDrafts(r.Context())
	if err != nil {
		s.logger.Error("status: count drafts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	codings := make(map[string]int, len(terminology.Kinds))
	for _, kind := range terminology.Kinds {
		if idx := s.catalog.Index(kind); idx != nil {
			codings[string(kind)] = idx.Len()
		}
	}
	resp := map[string]interface{}{
		"drafts":         drafts,
		"codings":        codings,
		"trigger_points": s.registry.Names(),
		"config": map[string]interface{}{
			"debounce_ms":   s.config.Search.DebounceMS,
			"max_results":   s.config.Search.MaxResults,
			"database_path": s.config.Storage.DatabasePath,
			"watch":         s.config.Terminology.Watch,
		},
	}
	if sized, ok := s.storage.(interface{ Size() (int64, error) }); ok {
		if n, err := sized.Size(); err == nil {
			resp["database_size_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps storage errors to HTTP statuses.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrDraftNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrPatientRequired), errors.Is(err, storage.ErrInvalidAction):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrDraftSigned):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("storage request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
