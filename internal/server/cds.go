package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/pama/internal/cds"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/internal/registry"
	"go.uber.org/zap"
)

type triggerInfo struct {
	Name            string `json:"name"`
	Hook            string `json:"hook"`
	ExplicitTrigger string `json:"explicit_trigger,omitempty"`
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	out := make([]triggerInfo, 0, len(names))
	for _, name := range names {
		h, _ := s.registry.Get(name)
		out = append(out, triggerInfo{Name: name, Hook: registry.Hook(name), ExplicitTrigger: h.NeedExplicitTrigger()})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"triggers": out})
}

// triggerTarget resolves the handler named in the path and the draft named by ?draft=.
func (s *Server) triggerTarget(w http.ResponseWriter, r *http.Request) (string, cds.TriggerHandler, *models.DraftOrder, bool) {
	name := chi.URLParam(r, "namespace") + "/" + chi.URLParam(r, "hook")
	h, ok := s.registry.Get(name)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown trigger point "+name)
		return "", nil, nil, false
	}
	draftID := r.URL.Query().Get("draft")
	if draftID == "" {
		s.respondError(w, http.StatusBadRequest, "draft query parameter is required")
		return "", nil, nil, false
	}
	d, err := s.storage.GetDraft(r.Context(), draftID)
	if err != nil {
		s.respondStoreError(w, err)
		return "", nil, nil, false
	}
	return name, h, d, true
}

func (s *Server) handleGenerateContext(w http.ResponseWriter, r *http.Request) {
	_, h, d, ok := s.triggerTarget(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, h.GenerateContext(cds.StateOf(d)))
}

func (s *Server) handleSystemActions(w http.ResponseWriter, r *http.Request) {
	name, h, d, ok := s.triggerTarget(w, r)
	if !ok {
		return
	}
	var actions []cds.SystemAction
	if err := json.NewDecoder(r.Body).Decode(&actions); err != nil {
		s.respondError(w, http.StatusBadRequest, "request body must be an array of system actions")
		return
	}
	s.recordEvent(name, "system_actions")
	s.logger.Debug("system actions", zap.String("trigger_point", name), zap.String("draft_id", d.ID), zap.Int("actions", len(actions)))
	h.OnSystemActions(actions, cds.StateOf(d), s.dispatcher(r, name, d.ID))
	s.respondUpdated(w, r, d.ID)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	name, h, d, ok := s.triggerTarget(w, r)
	if !ok {
		return
	}
	var msg cds.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.respondError(w, http.StatusBadRequest, "request body must be a message")
		return
	}
	s.recordEvent(name, "message")
	s.logger.Debug("message", zap.String("trigger_point", name), zap.String("draft_id", d.ID), zap.String("message_type", msg.MessageType))
	h.OnMessage(msg, s.dispatcher(r, name, d.ID))
	s.respondUpdated(w, r, d.ID)
}

func (s *Server) dispatcher(r *http.Request, triggerPoint, draftID string) cds.Dispatcher {
	return cds.CountingDispatcher(triggerPoint, s.metrics, s.storage.Dispatcher(r.Context(), draftID))
}

func (s *Server) recordEvent(triggerPoint, channel string) {
	if s.metrics != nil {
		s.metrics.CDSEventsTotal.WithLabelValues(triggerPoint, channel).Inc()
	}
}

func (s *Server) respondUpdated(w http.ResponseWriter, r *http.Request, draftID string) {
	d, err := s.storage.GetDraft(r.Context(), draftID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newDraftResponse(d))
}
