package models

// Rating is a PAMA appropriateness rating code. Values outside the known set are kept as-is.
type Rating string

const (
	RatingAppropriate    Rating = "appropriate"
	RatingNotAppropriate Rating = "not-appropriate"
	RatingNoCriteria     Rating = "no-criteria-apply"
)

// Symbol returns the display symbol for r, or "" when r has none.
func (r Rating) Symbol() string {
	switch r {
	case RatingAppropriate:
		return "✓"
	case RatingNotAppropriate:
		return "⚠"
	default:
		return ""
	}
}

// ExtractedRating is a rating found on a resource, ready to be dispatched.
type ExtractedRating struct {
	ResourceID string `json:"resource_id"`
	Rating     Rating `json:"rating"`
}
