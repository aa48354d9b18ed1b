package domain

import "time"

// EventType names a lifecycle change published to downstream consumers.
type EventType string

const (
	EventRequestSubmitted     EventType = "ride_request.submitted"
	EventRequestCancelled     EventType = "ride_request.cancelled"
	EventGroupCreated         EventType = "grouped_ride.created"
	EventGroupStatusChanged   EventType = "grouped_ride.status_changed"
	EventNotificationResolved EventType = "notification.resolved"
	EventRideRated            EventType = "grouped_ride.rated"
	EventDriverAssigned       EventType = "grouped_ride.driver_assigned"
)

// Event describes a committed state change.
type Event struct {
	Type          EventType `json:"type"`
	GroupedRideID string    `json:"grouped_ride_id,omitempty"`
	RideRequestID string    `json:"ride_request_id,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Key returns the partitioning key for the event.
func (e Event) Key() string {
	if e.GroupedRideID != "" {
		return e.GroupedRideID
	}
	return e.RideRequestID
}
