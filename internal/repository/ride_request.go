package repository

import (
	"context"

	"gotogether/internal/domain"
)

// RideRequestRepository defines the persistence operations for ride requests.
type RideRequestRepository interface {
	// Create persists a new ride request.
	Create(ctx context.Context, req *domain.RideRequest) error

	// GetByID retrieves a ride request by ID.
	GetByID(ctx context.Context, id string) (*domain.RideRequest, error)

	// ListByRider retrieves a rider's requests, newest first.
	ListByRider(ctx context.Context, riderID string) ([]*domain.RideRequest, error)

	// ListByStatus retrieves requests in the given status ordered by requested time.
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.RideRequest, error)

	// ListByGroup retrieves the requests attached to a grouped ride, ordered
	// by their position in the group's member list.
	ListByGroup(ctx context.Context, groupID string) ([]*domain.RideRequest, error)

	// ClaimPending moves every listed request from pending to grouped and
	// attaches it to groupID. It returns how many rows were claimed; callers
	// compare against len(ids) and roll back on a shortfall.
	ClaimPending(ctx context.Context, ids []string, groupID string) (int, error)

	// TransitionStatus moves a request from one status to another.
	// Returns ErrStaleState if the request is not currently in from.
	TransitionStatus(ctx context.Context, id string, from, to domain.RequestStatus) error
}
