// Package store persists pending review items, the suggestion blocklist,
// and settings behind a driver-agnostic interface.
package store

import (
	"context"

	"github.com/shelfwise/shelfwise/internal/model"
)

// Store defines the persistence interface for the curation system.
type Store interface {
	// Pending reviews
	AddPendingReview(ctx context.Context, item *model.PendingReviewItem) (string, error)
	ListPendingReviews(ctx context.Context, kind model.SuggestionKind) ([]model.PendingReviewItem, error)
	GetPendingReview(ctx context.Context, id string) (*model.PendingReviewItem, error)
	DeletePendingReview(ctx context.Context, id string) error

	// Blocklist
	AddBlocked(ctx context.Context, entry *model.BlockedSuggestion) (string, error)
	ListBlocked(ctx context.Context, scope model.Scope) ([]model.BlockedSuggestion, error)
	ListAllBlocked(ctx context.Context) ([]model.BlockedSuggestion, error)
	RemoveBlocked(ctx context.Context, id string) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (map[string]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
