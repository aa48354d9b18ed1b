package service

import (
	"context"
	"log/slog"

	"gotogether/internal/domain"
	"gotogether/internal/observability"
)

// EventPublisher hands committed lifecycle changes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event) error
}

// RoomManager controls live chat rooms when a ride's membership or status changes.
type RoomManager interface {
	Retire(groupID, reason string)
	Leave(groupID, userID string)
}

// publish sends events after commit. Failures are logged and never undo the change.
func publish(ctx context.Context, pub EventPublisher, logger *slog.Logger, events ...domain.Event) {
	if pub == nil {
		return
	}
	for _, evt := range events {
		if err := pub.Publish(ctx, evt); err != nil {
			observability.EventsPublished.WithLabelValues("failed").Inc()
			logger.Warn("event publish failed", "type", evt.Type, "key", evt.Key(), "error", err)
			continue
		}
		observability.EventsPublished.WithLabelValues("ok").Inc()
	}
}

func requireOperator(p domain.Principal) error {
	if !p.IsOperator() {
		return ErrOperatorOnly
	}
	return nil
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
