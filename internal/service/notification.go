package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gotogether/internal/domain"
	"gotogether/internal/observability"
	"gotogether/internal/repository"
)

// NotificationService resolves assignment notifications and serves each
// user's notification feed.
type NotificationService struct {
	store  repository.Store
	roster *RosterService
	rooms  RoomManager
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewNotificationService creates a new NotificationService. rooms and events may be nil.
func NewNotificationService(
	store repository.Store,
	roster *RosterService,
	rooms RoomManager,
	events EventPublisher,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		store:  store,
		roster: roster,
		rooms:  rooms,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Decision is a rider's answer to an assignment.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ResolveResult reports the state after a resolution committed.
type ResolveResult struct {
	Notification *domain.Notification
	Request      *domain.RideRequest
	Group        *domain.GroupedRide
}

// Resolve records the caller's decision on an assignment and re-evaluates the group.
func (s *NotificationService) Resolve(ctx context.Context, p domain.Principal, notificationID string, decision Decision) (*ResolveResult, error) {
	var nStatus domain.NotificationStatus
	var rStatus domain.RequestStatus
	switch decision {
	case DecisionAccept:
		nStatus, rStatus = domain.NotificationAccepted, domain.RequestStatusAccepted
	case DecisionReject:
		nStatus, rStatus = domain.NotificationRejected, domain.RequestStatusRejected
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrValidation, decision)
	}

	var result ResolveResult
	var settled domain.GroupStatus
	now := s.now().UTC()

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		n, err := s.ownedNotification(ctx, repos, p, notificationID)
		if err != nil {
			return err
		}
		if n.Type != domain.NotificationRideAssignment {
			return ErrNotAnAssignment
		}
		if !n.IsPending() {
			return ErrNotificationResolved
		}

		// Serializes every resolution of this group.
		g, err := repos.Groups.GetForUpdate(ctx, n.GroupedRideID)
		if err != nil {
			return err
		}
		if g.Status != domain.GroupStatusPendingAcceptance {
			return ErrGroupNotAwaitingAcceptance
		}

		if err := repos.Notifications.Respond(ctx, n.ID, nStatus, now); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrNotificationResolved
			}
			return err
		}
		n.Status, n.RespondedAt = nStatus, now

		req, err := repos.Requests.GetByID(ctx, n.RideRequestID)
		if err != nil {
			return err
		}
		if !domain.CanTransitionRequest(req.Status, rStatus) {
			return ErrRequestNotAwaitingDecision
		}
		err = repos.Requests.TransitionStatus(ctx, req.ID, req.Status, rStatus)
		if err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrRequestNotAwaitingDecision
			}
			return err
		}
		req.Status, req.UpdatedAt = rStatus, now

		settled, err = settleGroup(ctx, repos, g, now)
		if err != nil {
			return err
		}

		result = ResolveResult{Notification: n, Request: req, Group: g}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.NotificationsResolved.WithLabelValues(string(decision)).Inc()
	s.logger.Info("assignment resolved",
		"notification_id", notificationID, "group_id", result.Group.ID,
		"user_id", p.Subject, "decision", decision, "group_status", result.Group.Status)

	s.roster.Invalidate(ctx, result.Group.ID)
	if s.rooms != nil {
		if decision == DecisionReject {
			s.rooms.Leave(result.Group.ID, p.Subject)
		}
		if settled == domain.GroupStatusCancelled {
			s.rooms.Retire(result.Group.ID, "ride cancelled")
		}
	}

	events := []domain.Event{{
		Type:          domain.EventNotificationResolved,
		GroupedRideID: result.Group.ID,
		RideRequestID: result.Request.ID,
		ActorID:       p.Subject,
		Status:        string(result.Notification.Status),
		OccurredAt:    now,
	}}
	if settled != "" {
		observability.GroupTransitions.WithLabelValues(string(settled)).Inc()
		events = append(events, domain.Event{
			Type:          domain.EventGroupStatusChanged,
			GroupedRideID: result.Group.ID,
			ActorID:       p.Subject,
			Status:        string(settled),
			OccurredAt:    now,
		})
	}
	publish(ctx, s.events, s.logger, events...)

	return &result, nil
}

// settleGroup confirms or cancels the group once no assignment is pending.
// It returns the new status, or "" if the group still awaits answers.
func settleGroup(ctx context.Context, repos repository.Repositories, g *domain.GroupedRide, now time.Time) (domain.GroupStatus, error) {
	all, err := repos.Notifications.ListByGroup(ctx, g.ID)
	if err != nil {
		return "", err
	}

	var pending, accepted int
	var acceptedRiders []string
	for _, n := range all {
		if n.Type != domain.NotificationRideAssignment {
			continue
		}
		switch n.Status {
		case domain.NotificationPending:
			pending++
		case domain.NotificationAccepted:
			accepted++
			acceptedRiders = append(acceptedRiders, n.UserID)
		}
	}
	if pending > 0 {
		return "", nil
	}

	to := domain.GroupStatusConfirmed
	reason := ""
	if accepted == 0 {
		to = domain.GroupStatusCancelled
		reason = "all riders declined"
	}
	if err := repos.Groups.TransitionStatus(ctx, g.ID, g.Status, to, now, reason); err != nil {
		return "", err
	}
	g.Status = to
	g.UpdatedAt = now
	if to == domain.GroupStatusCancelled {
		g.CancelledAt = now
		g.CancelReason = reason
		return to, nil
	}

	recipients := append(acceptedRiders, g.DriverUserID)
	msg := fmt.Sprintf("Your shared ride to %s is confirmed for pickup at %s.",
		g.DestinationAddress, g.PickupTime.Format("Jan 02 15:04"))
	if err := notifyUsers(ctx, repos, g.ID, recipients, domain.NotificationSystem, "Ride confirmed", msg, now); err != nil {
		return "", err
	}
	return to, nil
}

// MarkRead marks an informational notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, p domain.Principal, notificationID string) (*domain.Notification, error) {
	repos := s.store.Repositories()
	n, err := s.ownedNotification(ctx, repos, p, notificationID)
	if err != nil {
		return nil, err
	}
	if n.Type == domain.NotificationRideAssignment {
		return nil, ErrAssignmentNeedsDecision
	}

	now := s.now().UTC()
	if err := repos.Notifications.Respond(ctx, n.ID, domain.NotificationRead, now); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrNotificationResolved
		}
		return nil, err
	}
	n.Status, n.RespondedAt = domain.NotificationRead, now
	return n, nil
}

// Feed is a user's notifications split by whether they await a response.
type Feed struct {
	Pending  []*domain.Notification
	Resolved []*domain.Notification
}

// ListMine returns the caller's notifications, newest first in each half.
func (s *NotificationService) ListMine(ctx context.Context, p domain.Principal) (*Feed, error) {
	all, err := s.store.Repositories().Notifications.ListByUser(ctx, p.Subject)
	if err != nil {
		return nil, err
	}
	feed := &Feed{
		Pending:  []*domain.Notification{},
		Resolved: []*domain.Notification{},
	}
	for _, n := range all {
		if n.IsPending() {
			feed.Pending = append(feed.Pending, n)
		} else {
			feed.Resolved = append(feed.Resolved, n)
		}
	}
	return feed, nil
}

func (s *NotificationService) ownedNotification(ctx context.Context, repos repository.Repositories, p domain.Principal, id string) (*domain.Notification, error) {
	n, err := repos.Notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if n.UserID != p.Subject {
		return nil, ErrNotificationNotFound
	}
	return n, nil
}

// dispatchAssignments creates one pending ride_assignment per member request.
// It runs inside the grouping transaction, so a failure leaves no partial fan-out.
func dispatchAssignments(ctx context.Context, repos repository.Repositories, g *domain.GroupedRide, members []*domain.RideRequest, now time.Time) ([]*domain.Notification, error) {
	out := make([]*domain.Notification, 0, len(members))
	msg := fmt.Sprintf("You have been grouped for a shared ride to %s, pickup at %s from %s. Please accept or reject.",
		g.DestinationAddress, g.PickupTime.Format("Jan 02 15:04"), g.PickupLocation)
	for _, req := range members {
		n := &domain.Notification{
			ID:            uuid.New().String(),
			UserID:        req.RiderID,
			GroupedRideID: g.ID,
			RideRequestID: req.ID,
			Type:          domain.NotificationRideAssignment,
			Status:        domain.NotificationPending,
			Title:         "New ride assignment",
			Message:       msg,
			SentAt:        now,
		}
		if err := repos.Notifications.Create(ctx, n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// expireAssignments closes every assignment of the group still awaiting an
// answer, so cancelled rides leave nothing in the riders' pending feeds.
func expireAssignments(ctx context.Context, repos repository.Repositories, groupID string, now time.Time) (int, error) {
	notes, err := repos.Notifications.ListByGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, n := range notes {
		if n.Type != domain.NotificationRideAssignment || !n.IsPending() {
			continue
		}
		if err := repos.Notifications.Respond(ctx, n.ID, domain.NotificationExpired, now); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// notifyUsers creates one informational notification per distinct recipient.
func notifyUsers(ctx context.Context, repos repository.Repositories, groupID string, userIDs []string, typ domain.NotificationType, title, message string, now time.Time) error {
	seen := make(map[string]bool, len(userIDs))
	for _, uid := range userIDs {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		n := &domain.Notification{
			ID:            uuid.New().String(),
			UserID:        uid,
			GroupedRideID: groupID,
			Type:          typ,
			Status:        domain.NotificationPending,
			Title:         title,
			Message:       message,
			SentAt:        now,
		}
		if err := repos.Notifications.Create(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
