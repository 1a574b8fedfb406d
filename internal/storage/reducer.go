package storage

import (
	"fmt"

	"github.com/hyperjump/pama/internal/models"
)

// Reduce applies action to d in place.
func Reduce(d *models.DraftOrder, action models.Action) error {
	sr := &d.ServiceRequest
	if d.Signed && action.Type != models.ActionApplyPamaRating && action.Type != models.ActionTriggerOrderSign {
		return fmt.Errorf("%w: cannot %s", ErrDraftSigned, action.Type)
	}

	switch action.Type {
	case models.ActionUpdateStudy:
		if action.Coding == nil || action.Coding.Code == "" {
			return fmt.Errorf("%w: %s needs a coding", ErrInvalidAction, action.Type)
		}
		study := *action.Coding
		if sr.StudyCoding == nil || sr.StudyCoding.Code != study.Code {
			clearRating(d)
		}
		sr.StudyCoding = &study

	case models.ActionRemoveStudy:
		if sr.StudyCoding != nil {
			clearRating(d)
		}
		sr.StudyCoding = nil

	case models.ActionAddReason:
		if action.Coding == nil || action.Coding.Code == "" {
			return fmt.Errorf("%w: %s needs a coding", ErrInvalidAction, action.Type)
		}
		if !sr.HasReason(action.Coding.Code) {
			sr.ReasonCodings = append(sr.ReasonCodings, *action.Coding)
		}

	case models.ActionRemoveReason:
		if action.Coding == nil {
			return fmt.Errorf("%w: %s needs a coding", ErrInvalidAction, action.Type)
		}
		kept := sr.ReasonCodings[:0]
		for _, r := range sr.ReasonCodings {
			if r.Code != action.Coding.Code {
				kept = append(kept, r)
			}
		}
		sr.ReasonCodings = kept

	case models.ActionApplyPamaRating:
		d.Rating = action.Rating
		d.RatingSource = action.ResourceID

	case models.ActionTriggerOrderSign:
		d.Signed = true

	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, action.Type)
	}
	if sr.ReasonCodings == nil {
		sr.ReasonCodings = []models.Coding{}
	}
	return nil
}

func clearRating(d *models.DraftOrder) {
	d.Rating = ""
	d.RatingSource = ""
}
