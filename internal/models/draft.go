package models

import "time"

// ServiceRequestDraft is the in-progress imaging order: at most one study and a list of reasons.
type ServiceRequestDraft struct {
	StudyCoding   *Coding  `json:"study_coding,omitempty"`
	ReasonCodings []Coding `json:"reason_codings"`
}

// HasReason reports whether a reason with code is already on the draft.
func (d *ServiceRequestDraft) HasReason(code string) bool {
	for _, r := range d.ReasonCodings {
		if r.Code == code {
			return true
		}
	}
	return false
}

// Patient identifies the subject of the order.
type Patient struct {
	ID string `json:"id"`
}

// DraftOrder is one order-entry session as held by the state store.
type DraftOrder struct {
	ID             string              `json:"id"`
	Patient        Patient             `json:"patient"`
	ServiceRequest ServiceRequestDraft `json:"service_request"`
	Rating         Rating              `json:"rating,omitempty"`
	RatingSource   string              `json:"rating_resource_id,omitempty"`
	Signed         bool                `json:"signed"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
