package cds

import (
	"github.com/google/uuid"
	"github.com/hyperjump/pama/internal/fhir"
	"github.com/hyperjump/pama/internal/metrics"
	"github.com/hyperjump/pama/internal/models"
)

// HookRequest is a CDS Hooks service invocation carrying a generated context.
type HookRequest struct {
	Hook         string         `json:"hook"`
	HookInstance string         `json:"hookInstance"`
	Context      RequestContext `json:"context"`
}

// RequestContext is the order-select/order-sign hook context.
type RequestContext struct {
	PatientID   string      `json:"patientId"`
	Selections  []string    `json:"selections"`
	DraftOrders fhir.Bundle `json:"draftOrders"`
}

// NewHookRequest wraps hctx for hook with a fresh hook instance id.
func NewHookRequest(hook, patientID string, hctx HookContext) HookRequest {
	return HookRequest{
		Hook:         hook,
		HookInstance: uuid.NewString(),
		Context: RequestContext{
			PatientID:   patientID,
			Selections:  hctx.Selections,
			DraftOrders: hctx.DraftOrders,
		},
	}
}

// CountingDispatcher records dispatched ratings for a trigger point before forwarding them.
func CountingDispatcher(triggerPoint string, m *metrics.Collector, next Dispatcher) Dispatcher {
	return DispatchFunc(func(a models.Action) {
		if m != nil && a.Type == models.ActionApplyPamaRating {
			m.CDSRatingsDispatched.WithLabelValues(triggerPoint, string(a.Rating)).Inc()
		}
		if next != nil {
			next.Dispatch(a)
		}
	})
}
