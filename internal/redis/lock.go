package redis

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const requestLockPrefix = "lock:ride_request:"

// releaseIfOwner deletes the key only while it still holds our token, so an
// expired lock taken over by another operator is left alone.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireRequests locks every ride request for owner. It is all or nothing:
// if any request is already locked, the ones taken so far are released and
// false is returned. Keys are taken in sorted order so overlapping callers
// cannot each hold part of the other's set forever.
func (s *LockStore) AcquireRequests(ctx context.Context, requestIDs []string, owner string, ttl time.Duration) (bool, error) {
	ids := append([]string(nil), requestIDs...)
	sort.Strings(ids)

	var taken []string
	for _, id := range ids {
		ok, err := s.client.SetNX(ctx, requestLockPrefix+id, owner, ttl).Result()
		if err != nil {
			_ = s.ReleaseRequests(ctx, taken, owner)
			return false, err
		}
		if !ok {
			_ = s.ReleaseRequests(ctx, taken, owner)
			return false, nil
		}
		taken = append(taken, id)
	}
	return true, nil
}

// ReleaseRequests releases the locks owner holds on the given requests.
func (s *LockStore) ReleaseRequests(ctx context.Context, requestIDs []string, owner string) error {
	var firstErr error
	for _, id := range requestIDs {
		if err := releaseIfOwner.Run(ctx, s.client, []string{requestLockPrefix + id}, owner).Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
