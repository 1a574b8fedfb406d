// Package cds adapts PAMA rating handling to the CDS Hooks trigger contract driven by the host.
package cds

import (
	"github.com/hyperjump/pama/internal/fhir"
	"github.com/hyperjump/pama/internal/models"
)

const (
	// SystemActionUpdate is the only system action type that can carry a rating.
	SystemActionUpdate = "update"
	// MessageScratchpadUpdate is the only message type that can carry a rating.
	MessageScratchpadUpdate = "scratchpad.update"
	// TriggerOrderSign is the explicit trigger fired by the host when the user signs an order.
	TriggerOrderSign = string(models.ActionTriggerOrderSign)
	// DefaultRequestID names the draft ServiceRequest when the state carries no draft id.
	DefaultRequestID = "example-request-id"
)

// SystemAction describes a resource mutation performed by the host.
type SystemAction struct {
	Type     string         `json:"type"`
	Resource *fhir.Resource `json:"resource,omitempty"`
}

// InboundMessage is an event from the host messaging channel.
type InboundMessage struct {
	MessageType string         `json:"messageType"`
	Payload     *fhir.Resource `json:"payload,omitempty"`
}

// State is the read-only view of the draft order a handler works from.
type State struct {
	DraftID        string
	Patient        models.Patient
	ServiceRequest models.ServiceRequestDraft
}

// StateOf returns the handler view of a stored draft.
func StateOf(d *models.DraftOrder) State {
	return State{DraftID: d.ID, Patient: d.Patient, ServiceRequest: d.ServiceRequest}
}

// HookContext is the outbound snapshot of the draft order handed to the host.
type HookContext struct {
	Selections  []string    `json:"selections"`
	DraftOrders fhir.Bundle `json:"draftOrders"`
}

// Dispatcher receives state updates. Dispatch must not block and has no result.
type Dispatcher interface {
	Dispatch(models.Action)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(models.Action)

// Dispatch calls f(a).
func (f DispatchFunc) Dispatch(a models.Action) { f(a) }

// TriggerHandler is the contract the host drives for one trigger point.
type TriggerHandler interface {
	// NeedExplicitTrigger returns the trigger the host must fire before evaluation, or "" when
	// the handler reacts to every qualifying event.
	NeedExplicitTrigger() string
	OnSystemActions(actions []SystemAction, state State, dispatch Dispatcher)
	OnMessage(msg InboundMessage, dispatch Dispatcher)
	GenerateContext(state State) HookContext
}
