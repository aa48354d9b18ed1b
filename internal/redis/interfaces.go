package redis

import (
	"context"
	"time"

	"gotogether/internal/chat"
	"gotogether/internal/domain"
)

// LockStoreInterface defines the interface for ride request claim locks.
type LockStoreInterface interface {
	AcquireRequests(ctx context.Context, requestIDs []string, owner string, ttl time.Duration) (bool, error)
	ReleaseRequests(ctx context.Context, requestIDs []string, owner string) error
}

// RosterCacheInterface defines the interface for chat roster caching.
type RosterCacheInterface interface {
	GetRoster(ctx context.Context, groupID string) ([]domain.RosterMember, error)
	SetRoster(ctx context.Context, groupID string, members []domain.RosterMember) error
	InvalidateRosters(ctx context.Context, groupIDs ...string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface   = (*LockStore)(nil)
	_ RosterCacheInterface = (*CacheStore)(nil)
	_ chat.AlertSink       = (*AlertPublisher)(nil)
)
