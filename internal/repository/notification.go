package repository

import (
	"context"
	"time"

	"gotogether/internal/domain"
)

// NotificationRepository defines the persistence operations for notifications.
type NotificationRepository interface {
	// Create persists a new notification.
	Create(ctx context.Context, n *domain.Notification) error

	// GetByID retrieves a notification by ID.
	GetByID(ctx context.Context, id string) (*domain.Notification, error)

	// ListByUser retrieves a user's notifications, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error)

	// ListByGroup retrieves every notification for a grouped ride.
	ListByGroup(ctx context.Context, groupID string) ([]*domain.Notification, error)

	// Respond moves a pending notification to status and records the
	// response time. Returns ErrStaleState if it is no longer pending.
	Respond(ctx context.Context, id string, status domain.NotificationStatus, at time.Time) error
}
