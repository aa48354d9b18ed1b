package domain

import "time"

// NotificationType represents the kind of notification.
type NotificationType string

const (
	NotificationRideAssignment NotificationType = "ride_assignment"
	NotificationRideCompleted  NotificationType = "ride_completed"
	NotificationSystem         NotificationType = "system"
)

// NotificationStatus represents the lifecycle of a notification.
type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationAccepted NotificationStatus = "accepted"
	NotificationRejected NotificationStatus = "rejected"
	NotificationRead     NotificationStatus = "read"
	NotificationExpired  NotificationStatus = "expired" // ride cancelled before an answer
)

// Notification is a message addressed to one user about one grouped ride.
type Notification struct {
	ID            string
	UserID        string
	GroupedRideID string
	RideRequestID string // set for ride_assignment
	Type          NotificationType
	Status        NotificationStatus
	Title         string
	Message       string
	SentAt        time.Time
	RespondedAt   time.Time
}

// IsPending reports whether the notification still awaits a response.
func (n *Notification) IsPending() bool {
	return n.Status == NotificationPending
}
