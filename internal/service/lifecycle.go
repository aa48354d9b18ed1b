package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gotogether/internal/domain"
	"gotogether/internal/observability"
	"gotogether/internal/repository"
)

// LifecycleService drives a grouped ride from confirmation to completion
// or cancellation.
type LifecycleService struct {
	store  repository.Store
	roster *RosterService
	rooms  RoomManager
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewLifecycleService creates a new LifecycleService. rooms and events may be nil.
func NewLifecycleService(
	store repository.Store,
	roster *RosterService,
	rooms RoomManager,
	events EventPublisher,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		store:  store,
		roster: roster,
		rooms:  rooms,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Start marks a confirmed ride as under way.
func (s *LifecycleService) Start(ctx context.Context, p domain.Principal, groupID string) (*domain.GroupedRide, error) {
	return s.transition(ctx, p, groupID, domain.GroupStatusInProgress, "", true, nil)
}

// Complete finishes an in-progress ride and asks each accepted rider for a rating.
func (s *LifecycleService) Complete(ctx context.Context, p domain.Principal, groupID string) (*domain.GroupedRide, error) {
	return s.transition(ctx, p, groupID, domain.GroupStatusCompleted, "", true,
		func(ctx context.Context, repos repository.Repositories, g *domain.GroupedRide, members []*domain.RideRequest, now time.Time) error {
			var riders []string
			for _, m := range members {
				if m.Status == domain.RequestStatusAccepted {
					riders = append(riders, m.RiderID)
				}
			}
			msg := fmt.Sprintf("Your shared ride to %s is complete. How was it? Leave a rating for your driver.", g.DestinationAddress)
			return notifyUsers(ctx, repos, g.ID, riders, domain.NotificationRideCompleted, "Ride completed", msg, now)
		})
}

// Cancel calls off a ride that has not started and tells its members.
func (s *LifecycleService) Cancel(ctx context.Context, p domain.Principal, groupID, reason string) (*domain.GroupedRide, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled by operator"
	}
	return s.transition(ctx, p, groupID, domain.GroupStatusCancelled, reason, false,
		func(ctx context.Context, repos repository.Repositories, g *domain.GroupedRide, members []*domain.RideRequest, now time.Time) error {
			if _, err := expireAssignments(ctx, repos, g.ID, now); err != nil {
				return err
			}
			recipients := []string{g.DriverUserID}
			for _, m := range members {
				if g.HasMember(m.ID) && m.IsActiveMember() {
					recipients = append(recipients, m.RiderID)
				}
			}
			msg := fmt.Sprintf("Your shared ride to %s has been cancelled: %s.", g.DestinationAddress, reason)
			return notifyUsers(ctx, repos, g.ID, recipients, domain.NotificationSystem, "Ride cancelled", msg, now)
		})
}

type afterTransition func(ctx context.Context, repos repository.Repositories, g *domain.GroupedRide, members []*domain.RideRequest, now time.Time) error

func (s *LifecycleService) transition(
	ctx context.Context,
	p domain.Principal,
	groupID string,
	to domain.GroupStatus,
	reason string,
	driverAllowed bool,
	after afterTransition,
) (*domain.GroupedRide, error) {
	now := s.now().UTC()

	var group *domain.GroupedRide
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		g, err := repos.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if !p.IsOperator() && !(driverAllowed && g.DriverUserID == p.Subject) {
			return ErrNotRideParticipant
		}
		if g.Status.IsTerminal() {
			return ErrGroupClosed
		}
		if !domain.CanTransitionGroup(g.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidGroupTransition, g.Status, to)
		}

		if err := repos.Groups.TransitionStatus(ctx, g.ID, g.Status, to, now, reason); err != nil {
			return err
		}
		g.Status = to
		g.UpdatedAt = now
		switch to {
		case domain.GroupStatusInProgress:
			g.StartedAt = now
		case domain.GroupStatusCompleted:
			g.CompletedAt = now
		case domain.GroupStatusCancelled:
			g.CancelledAt = now
			g.CancelReason = reason
		}

		if after != nil {
			members, err := repos.Requests.ListByGroup(ctx, g.ID)
			if err != nil {
				return err
			}
			if err := after(ctx, repos, g, members, now); err != nil {
				return err
			}
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.GroupTransitions.WithLabelValues(string(to)).Inc()
	s.logger.Info("grouped ride transitioned", "group_id", groupID, "status", to, "actor_id", p.Subject)

	if to.IsTerminal() {
		if s.rooms != nil {
			s.rooms.Retire(groupID, "ride "+string(to))
		}
		s.roster.Invalidate(ctx, groupID)
	}
	publish(ctx, s.events, s.logger, domain.Event{
		Type:          domain.EventGroupStatusChanged,
		GroupedRideID: groupID,
		ActorID:       p.Subject,
		Status:        string(to),
		OccurredAt:    now,
	})

	return group, nil
}
