package cds

import (
	"github.com/hyperjump/pama/internal/fhir"
	"github.com/hyperjump/pama/internal/metrics"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/internal/rating"
	"go.uber.org/zap"
)

// PamaHandler reacts to rating-bearing host events and describes the draft order to the host.
//
// It is a plain value: trigger points that differ only in ExplicitTrigger are copies of one
// PamaHandler with that field changed.
type PamaHandler struct {
	ExplicitTrigger string
	Logger          *zap.Logger
	Metrics         *metrics.Collector
}

var _ TriggerHandler = PamaHandler{}

// NeedExplicitTrigger implements TriggerHandler.
func (h PamaHandler) NeedExplicitTrigger() string {
	return h.ExplicitTrigger
}

// OnSystemActions dispatches the first rating found on the resources of update actions.
// Every other candidate in the batch is dropped.
func (h PamaHandler) OnSystemActions(actions []SystemAction, state State, dispatch Dispatcher) {
	resources := make([]*fhir.Resource, 0, len(actions))
	for _, a := range actions {
		if a.Type == SystemActionUpdate {
			resources = append(resources, a.Resource)
		}
	}
	h.dispatchFirst(resources, state.DraftID, dispatch)
}

// OnMessage dispatches the first rating found on the payload of a scratchpad update.
func (h PamaHandler) OnMessage(msg InboundMessage, dispatch Dispatcher) {
	if msg.MessageType != MessageScratchpadUpdate {
		return
	}
	payload := msg.Payload
	if payload == nil {
		payload = &fhir.Resource{}
	}
	h.dispatchFirst([]*fhir.Resource{payload}, "", dispatch)
}

func (h PamaHandler) dispatchFirst(resources []*fhir.Resource, draftID string, dispatch Dispatcher) {
	first, skipped, ok := rating.First(resources)
	if !ok {
		return
	}
	logger := h.logger()
	if skipped > 0 {
		logger.Debug("discarding extra ratings in batch",
			zap.String("draft_id", draftID),
			zap.String("kept_resource_id", first.ResourceID),
			zap.Int("discarded", skipped))
		if h.Metrics != nil {
			h.Metrics.CDSRatingsDiscardedTotal.WithLabelValues(h.mode()).Add(float64(skipped))
		}
	}
	logger.Debug("dispatching rating",
		zap.String("draft_id", draftID),
		zap.String("resource_id", first.ResourceID),
		zap.String("rating", string(first.Rating)))
	if dispatch != nil {
		dispatch.Dispatch(models.ApplyRating(first))
	}
}

// GenerateContext describes the draft as a Bundle holding one draft ServiceRequest.
func (h PamaHandler) GenerateContext(state State) HookContext {
	id := state.DraftID
	if id == "" {
		id = DefaultRequestID
	}
	draft := state.ServiceRequest
	sr := fhir.ServiceRequest{
		ResourceType: "ServiceRequest",
		ID:           id,
		Status:       "draft",
		Intent:       "plan",
		Subject:      fhir.Reference{Reference: "Patient/" + state.Patient.ID},
		ReasonCode:   make([]fhir.CodeableConcept, 0, len(draft.ReasonCodings)),
	}
	if study := draft.StudyCoding; study != nil {
		sr.Code = &fhir.CodeableConcept{Coding: []models.Coding{*study}, Text: study.Display}
	}
	for _, reason := range draft.ReasonCodings {
		sr.ReasonCode = append(sr.ReasonCode, fhir.CodeableConcept{
			Coding: []models.Coding{reason},
			Text:   reason.Display,
		})
	}
	return HookContext{
		Selections: []string{"ServiceRequest/" + id},
		DraftOrders: fhir.Bundle{
			ResourceType: "Bundle",
			Entry:        []fhir.BundleEntry{{Resource: sr}},
		},
	}
}

func (h PamaHandler) mode() string {
	if h.ExplicitTrigger == "" {
		return "automatic"
	}
	return h.ExplicitTrigger
}

func (h PamaHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
