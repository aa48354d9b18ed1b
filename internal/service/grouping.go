package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gotogether/internal/domain"
	"gotogether/internal/observability"
	"gotogether/internal/redis"
	"gotogether/internal/repository"
)

const (
	claimLockTTL     = 10 * time.Second
	defaultListLimit = 20
	maxListLimit     = 100
)

// GroupingService lets operators assemble pending requests into grouped rides.
type GroupingService struct {
	store  repository.Store
	locks  redis.LockStoreInterface
	roster *RosterService
	rooms  RoomManager
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewGroupingService creates a new GroupingService. locks, rooms and events may be nil.
func NewGroupingService(
	store repository.Store,
	locks redis.LockStoreInterface,
	roster *RosterService,
	rooms RoomManager,
	events EventPublisher,
	logger *slog.Logger,
) *GroupingService {
	return &GroupingService{
		store:  store,
		locks:  locks,
		roster: roster,
		rooms:  rooms,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// CreateGroupRequest contains the parameters for grouping ride requests.
type CreateGroupRequest struct {
	RequestIDs         []string
	DriverID           string
	PickupTime         time.Time
	PickupLocation     string
	DestinationAddress string
	ChargedPrice       float64
	ActualPrice        float64 // optional; 0 means not known
}

// GroupDetails is a grouped ride with its members and chat roster.
type GroupDetails struct {
	Group         *domain.GroupedRide
	Members       []*domain.RideRequest
	Driver        *domain.Driver
	Roster        []domain.RosterMember
	Notifications []*domain.Notification
}

// CreateGroup claims every listed request for a new grouped ride and sends
// each rider an assignment. Either every request is claimed or none is.
func (s *GroupingService) CreateGroup(ctx context.Context, p domain.Principal, req CreateGroupRequest) (*GroupDetails, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	if err := validateCreateGroup(req); err != nil {
		return nil, err
	}

	if s.locks != nil {
		owner := uuid.New().String()
		ok, err := s.locks.AcquireRequests(ctx, req.RequestIDs, owner, claimLockTTL)
		switch {
		case err != nil:
			// The database claim still guards correctness.
			s.logger.Warn("claim lock unavailable", "error", err)
		case !ok:
			observability.GroupConflicts.Inc()
			return nil, ErrRequestsUnavailable
		default:
			defer func() {
				if err := s.locks.ReleaseRequests(context.WithoutCancel(ctx), req.RequestIDs, owner); err != nil {
					s.logger.Warn("claim lock release failed", "error", err)
				}
			}()
		}
	}

	now := s.now().UTC()
	group := &domain.GroupedRide{
		ID:                 uuid.New().String(),
		OperatorID:         p.Subject,
		DriverID:           req.DriverID,
		DestinationAddress: strings.TrimSpace(req.DestinationAddress),
		PickupTime:         req.PickupTime.UTC(),
		PickupLocation:     strings.TrimSpace(req.PickupLocation),
		ChargedPrice:       req.ChargedPrice,
		ActualPrice:        req.ActualPrice,
		Status:             domain.GroupStatusPendingAcceptance,
		MemberRequestIDs:   append([]string(nil), req.RequestIDs...),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var details GroupDetails
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		driver, err := repos.Drivers.GetByID(ctx, req.DriverID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDriverNotFound
			}
			return err
		}
		if !driver.Active {
			return ErrDriverInactive
		}
		group.DriverUserID = driver.UserID

		members := make([]*domain.RideRequest, 0, len(req.RequestIDs))
		for _, id := range req.RequestIDs {
			r, err := repos.Requests.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
				}
				return err
			}
			members = append(members, r)
		}

		if err := repos.Groups.Create(ctx, group); err != nil {
			return err
		}
		claimed, err := repos.Requests.ClaimPending(ctx, req.RequestIDs, group.ID)
		if err != nil {
			return err
		}
		if claimed != len(req.RequestIDs) {
			return ErrRequestsUnavailable
		}
		for _, m := range members {
			m.Status = domain.RequestStatusGrouped
			m.GroupedRideID = group.ID
			m.UpdatedAt = now
		}

		if err := repos.Drivers.IncrementAssigned(ctx, driver.ID); err != nil {
			return err
		}
		driver.AssignedRides++

		notes, err := dispatchAssignments(ctx, repos, group, members, now)
		if err != nil {
			return err
		}

		details = GroupDetails{
			Group:         group,
			Members:       members,
			Driver:        driver,
			Roster:        buildRoster(group, members),
			Notifications: notes,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRequestsUnavailable) {
			observability.GroupConflicts.Inc()
		}
		return nil, err
	}

	observability.GroupsCreated.Inc()
	s.logger.Info("grouped ride created",
		"group_id", group.ID, "driver_id", group.DriverID,
		"operator_id", p.Subject, "members", len(group.MemberRequestIDs))
	publish(ctx, s.events, s.logger, domain.Event{
		Type:          domain.EventGroupCreated,
		GroupedRideID: group.ID,
		ActorID:       p.Subject,
		Status:        string(group.Status),
		OccurredAt:    now,
	})

	return &details, nil
}

func validateCreateGroup(req CreateGroupRequest) error {
	if len(req.RequestIDs) == 0 {
		return ErrEmptyGroup
	}
	seen := make(map[string]bool, len(req.RequestIDs))
	for _, id := range req.RequestIDs {
		if seen[id] {
			return ErrDuplicateRequestInGroup
		}
		seen[id] = true
	}
	if strings.TrimSpace(req.DriverID) == "" {
		return fmt.Errorf("%w: driver is required", ErrValidation)
	}
	if req.ChargedPrice <= 0 || req.ActualPrice < 0 {
		return ErrInvalidPrice
	}
	if strings.TrimSpace(req.DestinationAddress) == "" {
		return ErrMissingDestinationAddress
	}
	if req.PickupTime.IsZero() {
		return ErrMissingPickupTime
	}
	return nil
}

// UpdatePricing replaces a group's per-seat prices while it is still open.
func (s *GroupingService) UpdatePricing(ctx context.Context, p domain.Principal, groupID string, charged, actual float64) (*domain.GroupedRide, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	if charged <= 0 || actual < 0 {
		return nil, ErrInvalidPrice
	}

	var group *domain.GroupedRide
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		g, err := repos.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if g.Status.IsTerminal() {
			return ErrGroupClosed
		}
		if err := repos.Groups.UpdatePricing(ctx, groupID, charged, actual); err != nil {
			return err
		}
		g.ChargedPrice, g.ActualPrice = charged, actual
		g.UpdatedAt = s.now().UTC()
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("grouped ride repriced", "group_id", groupID, "charged", charged, "actual", actual)
	return group, nil
}

// AssignDriver hands a ride that has not finished to another active driver.
// The new driver and the remaining riders get a system notice; the previous
// driver loses chat access.
func (s *GroupingService) AssignDriver(ctx context.Context, p domain.Principal, groupID, driverID string) (*domain.GroupedRide, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(driverID) == "" {
		return nil, fmt.Errorf("%w: driver is required", ErrValidation)
	}

	now := s.now().UTC()
	var group *domain.GroupedRide
	var previous string
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		g, err := repos.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if g.Status.IsTerminal() {
			return ErrGroupClosed
		}
		if g.DriverID == driverID {
			return ErrDriverAlreadyAssigned
		}

		driver, err := repos.Drivers.GetByID(ctx, driverID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDriverNotFound
			}
			return err
		}
		if !driver.Active {
			return ErrDriverInactive
		}

		if err := repos.Groups.AssignDriver(ctx, g.ID, driver.ID, driver.UserID, now); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrGroupClosed
			}
			return err
		}
		if err := repos.Drivers.IncrementAssigned(ctx, driver.ID); err != nil {
			return err
		}
		previous = g.DriverUserID
		g.DriverID, g.DriverUserID, g.UpdatedAt = driver.ID, driver.UserID, now

		members, err := repos.Requests.ListByGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		recipients := []string{driver.UserID}
		for _, m := range members {
			if g.HasMember(m.ID) && m.IsActiveMember() {
				recipients = append(recipients, m.RiderID)
			}
		}
		msg := fmt.Sprintf("%s is now driving your shared ride to %s, pickup at %s.",
			driver.Name, g.DestinationAddress, g.PickupTime.Format("Jan 02 15:04"))
		if err := notifyUsers(ctx, repos, g.ID, recipients, domain.NotificationSystem, "Driver changed", msg, now); err != nil {
			return err
		}

		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("grouped ride reassigned",
		"group_id", groupID, "driver_id", driverID, "previous_driver", previous, "operator_id", p.Subject)
	if s.roster != nil {
		s.roster.Invalidate(ctx, groupID)
	}
	if s.rooms != nil && previous != "" && previous != group.DriverUserID {
		s.rooms.Leave(groupID, previous)
	}
	publish(ctx, s.events, s.logger, domain.Event{
		Type:          domain.EventDriverAssigned,
		GroupedRideID: groupID,
		ActorID:       p.Subject,
		Status:        string(group.Status),
		OccurredAt:    now,
	})
	return group, nil
}

// Get returns a grouped ride with its members, visible to operators, the
// assigned driver and riders whose requests were grouped into it.
func (s *GroupingService) Get(ctx context.Context, p domain.Principal, groupID string) (*GroupDetails, error) {
	repos := s.store.Repositories()
	g, err := repos.Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	reqs, err := repos.Requests.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !canView(p, g, reqs) {
		return nil, ErrGroupNotFound
	}

	details := &GroupDetails{Group: g, Members: reqs, Roster: buildRoster(g, reqs)}
	driver, err := repos.Drivers.GetByID(ctx, g.DriverID)
	switch {
	case err == nil:
		details.Driver = driver
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	if p.IsOperator() {
		details.Notifications, err = repos.Notifications.ListByGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
	}
	return details, nil
}

func canView(p domain.Principal, g *domain.GroupedRide, reqs []*domain.RideRequest) bool {
	if p.IsOperator() || g.DriverUserID == p.Subject {
		return true
	}
	for _, r := range reqs {
		if r.RiderID == p.Subject {
			return true
		}
	}
	return false
}

// List returns grouped rides scoped to the caller: everything for operators,
// assigned rides for drivers and joined rides for riders.
func (s *GroupingService) List(ctx context.Context, p domain.Principal, filter domain.GroupFilter) ([]*domain.GroupedRide, error) {
	filter.DriverUserID, filter.RiderID = "", ""
	switch p.Role {
	case domain.RoleOperator:
	case domain.RoleDriver:
		filter.DriverUserID = p.Subject
	default:
		filter.RiderID = p.Subject
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.Repositories().Groups.List(ctx, filter)
}
