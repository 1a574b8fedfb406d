package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/pama/internal/cds"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/internal/registry"
	"github.com/hyperjump/pama/internal/terminology"
	"go.uber.org/zap"
)

type draftResponse struct {
	*models.DraftOrder
	RatingSymbol string `json:"rating_symbol,omitempty"`
}

func newDraftResponse(d *models.DraftOrder) draftResponse {
	return draftResponse{DraftOrder: d, RatingSymbol: d.Rating.Symbol()}
}

type createDraftRequest struct {
	PatientID string `json:"patient_id"`
}

type signResponse struct {
	Draft        draftResponse     `json:"draft"`
	HookRequests []cds.HookRequest `json:"hook_requests"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := s.storage.CreateDraft(r.Context(), req.PatientID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.logger.Debug("draft created", zap.String("draft_id", d.ID), zap.String("patient_id", d.Patient.ID))
	s.respondJSON(w, http.StatusCreated, newDraftResponse(d))
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	drafts, err := s.storage.ListDrafts(r.Context(), offset, limit)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	out := make([]draftResponse, len(drafts))
	for i, d := range drafts {
		out[i] = newDraftResponse(d)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"drafts": out})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.storage.GetDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newDraftResponse(d))
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.storage.DeleteDraft(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// decodeCoding reads a coding from the body and completes it from the terminology of kind.
// Codes unknown to the terminology are rejected.
func (s *Server) decodeCoding(w http.ResponseWriter, r *http.Request, kind terminology.Kind) (*models.Coding, bool) {
	var c models.Coding
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Code == "" {
		s.respondError(w, http.StatusBadRequest, "request body must be a coding with a code")
		return nil, false
	}
	known, ok := s.catalog.Lookup(kind, c.Code)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unknown "+string(kind)+" code "+c.Code)
		return nil, false
	}
	return &known, true
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, action models.Action) {
	id := chi.URLParam(r, "id")
	d, err := s.storage.Apply(r.Context(), id, action)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.logger.Debug("draft updated", zap.String("draft_id", id), zap.String("action", string(action.Type)))
	s.respondJSON(w, http.StatusOK, newDraftResponse(d))
}

func (s *Server) handleUpdateStudy(w http.ResponseWriter, r *http.Request) {
	c, ok := s.decodeCoding(w, r, terminology.Procedures)
	if !ok {
		return
	}
	s.apply(w, r, models.Action{Type: models.ActionUpdateStudy, Coding: c})
}

func (s *Server) handleRemoveStudy(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, models.Action{Type: models.ActionRemoveStudy})
}

func (s *Server) handleAddReason(w http.ResponseWriter, r *http.Request) {
	c, ok := s.decodeCoding(w, r, terminology.Reasons)
	if !ok {
		return
	}
	s.apply(w, r, models.Action{Type: models.ActionAddReason, Coding: c})
}

func (s *Server) handleRemoveReason(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	s.apply(w, r, models.Action{Type: models.ActionRemoveReason, Coding: &models.Coding{Code: code}})
}

// handleSign marks the draft signed and returns one hook request per trigger point waiting
// on the order-sign trigger.
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.storage.Apply(r.Context(), id, models.Action{Type: models.ActionTriggerOrderSign})
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	state := cds.StateOf(d)
	requests := []cds.HookRequest{}
	for _, name := range s.registry.WithTrigger(cds.TriggerOrderSign) {
		h, _ := s.registry.Get(name)
		requests = append(requests, cds.NewHookRequest(registry.Hook(name), d.Patient.ID, h.GenerateContext(state)))
	}
	s.logger.Info("draft signed", zap.String("draft_id", id), zap.Int("hook_requests", len(requests)))
	s.respondJSON(w, http.StatusOK, signResponse{Draft: newDraftResponse(d), HookRequests: requests})
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.storage.GetDraft(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	records, err := s.storage.ListRatings(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ratings": records})
}
