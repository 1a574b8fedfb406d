// Package models defines core data structures for terminology codings, draft orders, and ratings.
package models

// Coding is a (code, display) pair from a clinical terminology. Code is unique within its set.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// IndexedCoding is a Coding plus the derived text it is searchable under.
type IndexedCoding struct {
	Coding
	Search string `json:"search"`
}

// SelectOption is a presentation-ready wrapper around a Coding.
type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Data  Coding `json:"data"`
}

// ToSelectOption maps a coding to an option labelled by its display and keyed by its code.
func ToSelectOption(c Coding) SelectOption {
	return SelectOption{Label: c.Display, Value: c.Code, Data: c}
}

// ToSelectOptions maps codings in order.
func ToSelectOptions(codings []Coding) []SelectOption {
	out := make([]SelectOption, len(codings))
	for i, c := range codings {
		out[i] = ToSelectOption(c)
	}
	return out
}
