// Package storage persists draft imaging orders and the ratings applied to them.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/pama/internal/cds"
	"github.com/hyperjump/pama/internal/models"
)

var (
	ErrDraftNotFound   = errors.New("draft not found")
	ErrPatientRequired = errors.New("patient id is required")
	ErrDraftSigned     = errors.New("draft is signed")
	ErrInvalidAction   = errors.New("invalid action")
)

// RatingRecord is one rating applied to a draft, in arrival order.
type RatingRecord struct {
	DraftID    string        `json:"draft_id"`
	ResourceID string        `json:"resource_id"`
	Rating     models.Rating `json:"rating"`
	AppliedAt  time.Time     `json:"applied_at"`
}

// Storage is the state store behind the CDS dispatch contract.
type Storage interface {
	CreateDraft(ctx context.Context, patientID string) (*models.DraftOrder, error)
	GetDraft(ctx context.Context, id string) (*models.DraftOrder, error)
	ListDrafts(ctx context.Context, offset, limit int) ([]*models.DraftOrder, error)
	DeleteDraft(ctx context.Context, id string) error

	// Apply reduces action into the draft and returns the updated draft.
	Apply(ctx context.Context, id string, action models.Action) (*models.DraftOrder, error)

	ListRatings(ctx context.Context, draftID string) ([]RatingRecord, error)
	CountDrafts(ctx context.Context) (int64, error)

	// Dispatcher binds the CDS dispatch contract to one draft.
	Dispatcher(ctx context.Context, id string) cds.Dispatcher

	Close() error
}
