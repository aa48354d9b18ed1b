package service

import (
	"context"
	"errors"
	"log/slog"

	"gotogether/internal/chat"
	"gotogether/internal/domain"
	"gotogether/internal/redis"
	"gotogether/internal/repository"
)

var _ chat.Directory = (*RosterService)(nil)

// RosterService resolves who belongs to a grouped ride: the assigned driver
// plus every rider whose request still holds a seat.
type RosterService struct {
	store  repository.Store
	cache  redis.RosterCacheInterface
	logger *slog.Logger
}

// NewRosterService creates a new RosterService. cache may be nil.
func NewRosterService(store repository.Store, cache redis.RosterCacheInterface, logger *slog.Logger) *RosterService {
	return &RosterService{store: store, cache: cache, logger: logger}
}

// Roster returns the ride's members, driver first.
func (s *RosterService) Roster(ctx context.Context, groupID string) ([]domain.RosterMember, error) {
	if s.cache != nil {
		members, err := s.cache.GetRoster(ctx, groupID)
		if err != nil {
			s.logger.Warn("roster cache read failed", "group_id", groupID, "error", err)
		} else if members != nil {
			return members, nil
		}
	}

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

	members := buildRoster(g, reqs)
	if s.cache != nil {
		if err := s.cache.SetRoster(ctx, groupID, members); err != nil {
			s.logger.Warn("roster cache write failed", "group_id", groupID, "error", err)
		}
	}
	return members, nil
}

// Invalidate drops cached rosters after membership changes.
func (s *RosterService) Invalidate(ctx context.Context, groupIDs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRosters(ctx, groupIDs...); err != nil {
		s.logger.Warn("roster cache invalidation failed", "group_ids", groupIDs, "error", err)
	}
}

func buildRoster(g *domain.GroupedRide, reqs []*domain.RideRequest) []domain.RosterMember {
	members := []domain.RosterMember{{UserID: g.DriverUserID, Kind: domain.SenderDriver}}
	seen := map[string]bool{g.DriverUserID: true}
	for _, req := range reqs {
		if !g.HasMember(req.ID) || !req.IsActiveMember() || seen[req.RiderID] {
			continue
		}
		seen[req.RiderID] = true
		members = append(members, domain.RosterMember{UserID: req.RiderID, Kind: domain.SenderRider})
	}
	return members
}

func rosterContains(members []domain.RosterMember, userID string) (domain.RosterMember, bool) {
	for _, m := range members {
		if m.UserID == userID {
			return m, true
		}
	}
	return domain.RosterMember{}, false
}
