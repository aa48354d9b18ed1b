package repository

import (
	"context"

	"gotogether/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver. Returns ErrDuplicate if the phone is taken.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// SetActive toggles whether the driver can receive new groups.
	SetActive(ctx context.Context, id string, active bool) error

	// IncrementAssigned bumps the driver's assigned ride counter.
	IncrementAssigned(ctx context.Context, id string) error
}
