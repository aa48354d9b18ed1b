package repository

import "context"

// Repositories bundles every repository bound to the same connection or transaction.
type Repositories struct {
	Requests      RideRequestRepository
	Groups        GroupedRideRepository
	Notifications NotificationRepository
	Chat          ChatRepository
	Drivers       DriverRepository
	Ratings       RatingRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	// Repositories returns repositories that auto-commit each call.
	Repositories() Repositories

	// WithinTx runs fn against transaction-scoped repositories. The
	// transaction commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
