package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"gotogether/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// RosterCacheTTL bounds staleness if an invalidation is lost.
const RosterCacheTTL = 5 * time.Minute

const rosterCachePrefix = "cache:roster:"

// GetRoster retrieves a grouped ride's chat roster. A miss returns nil, nil.
func (s *CacheStore) GetRoster(ctx context.Context, groupID string) ([]domain.RosterMember, error) {
	data, err := s.client.Get(ctx, rosterCachePrefix+groupID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var members []domain.RosterMember
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetRoster stores a grouped ride's chat roster.
func (s *CacheStore) SetRoster(ctx context.Context, groupID string, members []domain.RosterMember) error {
	if members == nil {
		members = []domain.RosterMember{}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rosterCachePrefix+groupID, data, RosterCacheTTL).Err()
}

// InvalidateRosters removes cached rosters in one round trip.
func (s *CacheStore) InvalidateRosters(ctx context.Context, groupIDs ...string) error {
	if len(groupIDs) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, id := range groupIDs {
		pipe.Del(ctx, rosterCachePrefix+id)
	}
	_, err := pipe.Exec(ctx)
	return err
}
