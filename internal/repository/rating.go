package repository

import (
	"context"

	"gotogether/internal/domain"
)

// RatingRepository defines the persistence operations for ride ratings.
type RatingRepository interface {
	// Create persists a rating. Returns ErrDuplicate if the rater already
	// rated the grouped ride.
	Create(ctx context.Context, rating *domain.Rating) error

	// ListByGroup retrieves the ratings left for a grouped ride.
	ListByGroup(ctx context.Context, groupID string) ([]*domain.Rating, error)
}
