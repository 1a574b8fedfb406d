// Package fhir provides the subset of FHIR resource shapes exchanged with the CDS host.
package fhir

import (
	"encoding/json"

	"github.com/hyperjump/pama/internal/models"
)

// PamaRatingExtensionURL identifies the extension carrying an appropriateness rating.
// The value is part of the wire format and must not change.
const PamaRatingExtensionURL = "http://fhir.org/argonaut/Extension/pama-rating"

// CodeableConcept is a concept with codings and optional text.
type CodeableConcept struct {
	Coding []models.Coding `json:"coding"`
	Text   string          `json:"text,omitempty"`
}

// Reference points at another resource, e.g. "Patient/123".
type Reference struct {
	Reference string `json:"reference"`
}

// Extension is a FHIR extension entry. Only the CodeableConcept value type is modelled.
type Extension struct {
	URL                  string           `json:"url"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
}

// Resource is any FHIR resource as far as rating extraction is concerned.
type Resource struct {
	ResourceType string      `json:"resourceType,omitempty"`
	ID           string      `json:"id,omitempty"`
	Extension    []Extension `json:"extension,omitempty"`
}

// UnmarshalJSON decodes a resource leniently. Extension entries that cannot be read
// are skipped one by one. A resource whose id is not a string keeps no extensions, so it
// never contributes a rating.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var raw struct {
		ResourceType json.RawMessage `json:"resourceType"`
		ID           json.RawMessage `json:"id"`
		Extension    json.RawMessage `json:"extension"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Resource{}
	r.ResourceType, _ = decodeString(raw.ResourceType)
	id, ok := decodeString(raw.ID)
	if !ok {
		return nil
	}
	r.ID = id

	var entries []json.RawMessage
	if err := json.Unmarshal(raw.Extension, &entries); err != nil {
		return nil
	}
	for _, entry := range entries {
		var ext Extension
		if err := json.Unmarshal(entry, &ext); err != nil {
			continue
		}
		r.Extension = append(r.Extension, ext)
	}
	return nil
}

// decodeString reads a JSON string. An absent or null value is an empty string.
func decodeString(data json.RawMessage) (string, bool) {
	if len(data) == 0 || string(data) == "null" {
		return "", true
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}

// ServiceRequest is a draft order as sent to the host.
type ServiceRequest struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Intent       string            `json:"intent"`
	Code         *CodeableConcept  `json:"code,omitempty"`
	Subject      Reference         `json:"subject"`
	ReasonCode   []CodeableConcept `json:"reasonCode"`
}

// BundleEntry wraps one resource in a Bundle.
type BundleEntry struct {
	Resource ServiceRequest `json:"resource"`
}

// Bundle is a collection of draft orders.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Entry        []BundleEntry `json:"entry"`
}
