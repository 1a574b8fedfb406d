package models

// ActionType names a state change emitted towards the state store.
type ActionType string

const (
	ActionApplyPamaRating  ActionType = "APPLY_PAMA_RATING"
	ActionUpdateStudy      ActionType = "UPDATE_STUDY"
	ActionRemoveStudy      ActionType = "REMOVE_STUDY"
	ActionAddReason        ActionType = "ADD_REASON"
	ActionRemoveReason     ActionType = "REMOVE_REASON"
	ActionTriggerOrderSign ActionType = "TRIGGER_ORDER_SIGN"
)

// Action is a one-way state update. Only the fields relevant to Type are set.
type Action struct {
	Type       ActionType `json:"type"`
	Coding     *Coding    `json:"coding,omitempty"`
	ResourceID string     `json:"resource_id,omitempty"`
	Rating     Rating     `json:"rating,omitempty"`
}

// ApplyRating builds the action that records an extracted rating.
func ApplyRating(r ExtractedRating) Action {
	return Action{Type: ActionApplyPamaRating, ResourceID: r.ResourceID, Rating: r.Rating}
}
