package repository

import (
	"context"
	"time"

	"gotogether/internal/domain"
)

// GroupedRideRepository defines the persistence operations for grouped rides.
type GroupedRideRepository interface {
	// Create persists a new grouped ride.
	Create(ctx context.Context, group *domain.GroupedRide) error

	// GetByID retrieves a grouped ride by ID.
	GetByID(ctx context.Context, id string) (*domain.GroupedRide, error)

	// GetForUpdate retrieves a grouped ride and holds it against concurrent
	// writers until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.GroupedRide, error)

	// List retrieves grouped rides matching the filter, newest first.
	List(ctx context.Context, filter domain.GroupFilter) ([]*domain.GroupedRide, error)

	// TransitionStatus moves a grouped ride between statuses and stamps the
	// matching lifecycle timestamp. Returns ErrStaleState if it is not in from.
	TransitionStatus(ctx context.Context, id string, from, to domain.GroupStatus, at time.Time, reason string) error

	// UpdatePricing replaces the charged and actual per-seat prices.
	UpdatePricing(ctx context.Context, id string, charged, actual float64) error

	// AssignDriver replaces the driver of a non-terminal grouped ride.
	// Returns ErrStaleState once the ride is completed or cancelled.
	AssignDriver(ctx context.Context, id, driverID, driverUserID string, at time.Time) error
}
