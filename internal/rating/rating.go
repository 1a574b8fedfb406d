// Package rating finds PAMA appropriateness ratings carried on FHIR resources.
package rating

import (
	"github.com/hyperjump/pama/internal/fhir"
	"github.com/hyperjump/pama/internal/models"
)

// Extract returns one rating per coding found under PAMA rating extensions of r, in
// extension order then coding order. A nil resource, or one without matching extensions,
// yields an empty result.
func Extract(r *fhir.Resource) []models.ExtractedRating {
	if r == nil {
		return nil
	}
	var out []models.ExtractedRating
	for _, ext := range r.Extension {
		if ext.URL != fhir.PamaRatingExtensionURL || ext.ValueCodeableConcept == nil {
			continue
		}
		for _, c := range ext.ValueCodeableConcept.Coding {
			out = append(out, models.ExtractedRating{ResourceID: r.ID, Rating: models.Rating(c.Code)})
		}
	}
	return out
}

// First returns the first rating found across resources, in order, and how many further
// candidates were passed over.
func First(resources []*fhir.Resource) (first models.ExtractedRating, skipped int, ok bool) {
	for _, r := range resources {
		for _, er := range Extract(r) {
			if !ok {
				first, ok = er, true
				continue
			}
			skipped++
		}
	}
	return first, skipped, ok
}
