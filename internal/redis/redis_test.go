package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotogether/internal/chat"
	"gotogether/internal/domain"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// ──────────────────────────────────────────────
// CLAIM LOCKS
// ──────────────────────────────────────────────

func TestLockStore_AcquireIsAllOrNothing(t *testing.T) {
	t.Parallel()
	mr, client := newClient(t)
	locks := NewLockStore(client)
	ctx := context.Background()

	ok, err := locks.AcquireRequests(ctx, []string{"r-2", "r-1"}, "op-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	owner, err := mr.Get(requestLockPrefix + "r-1")
	require.NoError(t, err)
	assert.Equal(t, "op-a", owner)
	assert.Equal(t, time.Minute, mr.TTL(requestLockPrefix+"r-2"))

	// r-3 is free but r-2 is not: nothing stays locked for op-b.
	ok, err = locks.AcquireRequests(ctx, []string{"r-3", "r-2"}, "op-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(requestLockPrefix+"r-3"))

	require.NoError(t, locks.ReleaseRequests(ctx, []string{"r-1", "r-2"}, "op-a"))
	assert.False(t, mr.Exists(requestLockPrefix+"r-1"))
	assert.False(t, mr.Exists(requestLockPrefix+"r-2"))

	ok, err = locks.AcquireRequests(ctx, []string{"r-3", "r-2"}, "op-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockStore_ReleaseLeavesOtherOwnersAlone(t *testing.T) {
	t.Parallel()
	mr, client := newClient(t)
	locks := NewLockStore(client)
	ctx := context.Background()

	ok, err := locks.AcquireRequests(ctx, []string{"r-1"}, "op-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// op-a's lock expires and op-b takes the request over.
	mr.FastForward(2 * time.Second)
	ok, err = locks.AcquireRequests(ctx, []string{"r-1"}, "op-b", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locks.ReleaseRequests(ctx, []string{"r-1"}, "op-a"))
	owner, err := mr.Get(requestLockPrefix + "r-1")
	require.NoError(t, err)
	assert.Equal(t, "op-b", owner)
}

func TestLockStore_UnreachableRedisIsAnError(t *testing.T) {
	t.Parallel()
	mr, client := newClient(t)
	locks := NewLockStore(client)
	mr.Close()

	ok, err := locks.AcquireRequests(context.Background(), []string{"r-1"}, "op-a", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

// ──────────────────────────────────────────────
// ROSTER CACHE
// ──────────────────────────────────────────────

func TestCacheStore_RosterRoundTrip(t *testing.T) {
	t.Parallel()
	mr, client := newClient(t)
	cache := NewCacheStore(client)
	ctx := context.Background()

	miss, err := cache.GetRoster(ctx, "g-1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	roster := []domain.RosterMember{
		{UserID: "dana", Kind: domain.SenderDriver},
		{UserID: "alice", Kind: domain.SenderRider},
	}
	require.NoError(t, cache.SetRoster(ctx, "g-1", roster))
	require.NoError(t, cache.SetRoster(ctx, "g-2", nil))
	assert.Equal(t, RosterCacheTTL, mr.TTL(rosterCachePrefix+"g-1"))

	got, err := cache.GetRoster(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, roster, got)

	empty, err := cache.GetRoster(ctx, "g-2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, cache.InvalidateRosters(ctx, "g-1", "g-2"))
	require.NoError(t, cache.InvalidateRosters(ctx))
	got, err = cache.GetRoster(ctx, "g-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheStore_ExpiredRosterIsAMiss(t *testing.T) {
	t.Parallel()
	mr, client := newClient(t)
	cache := NewCacheStore(client)
	ctx := context.Background()

	require.NoError(t, cache.SetRoster(ctx, "g-1", []domain.RosterMember{{UserID: "alice", Kind: domain.SenderRider}}))
	mr.FastForward(RosterCacheTTL + time.Second)

	got, err := cache.GetRoster(ctx, "g-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheStore_CorruptEntryIsAnError(t *testing.T) {
	t.Parallel()
	mr, client := newClient(t)
	cache := NewCacheStore(client)
	require.NoError(t, mr.Set(rosterCachePrefix+"g-1", "not json"))

	_, err := cache.GetRoster(context.Background(), "g-1")
	assert.Error(t, err)
}

// ──────────────────────────────────────────────
// ALERTS
// ──────────────────────────────────────────────

func TestAlertPublisher_DeliversOnUserChannel(t *testing.T) {
	t.Parallel()
	_, client := newClient(t)
	alerts := NewAlertPublisher(client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, AlertChannel("alice"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	alert := chat.Alert{
		GroupID:    "g-1",
		Seq:        3,
		SenderID:   "dana",
		SenderKind: domain.SenderDriver,
		Title:      "New message in your ride chat",
		Preview:    "At the curb",
	}
	require.NoError(t, alerts.PublishAlert(ctx, "bob", alert))
	require.NoError(t, alerts.PublishAlert(ctx, "alice", alert))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "chat:alerts:alice", msg.Channel)
		var got chat.Alert
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, alert, got)
	case <-ctx.Done():
		t.Fatal("alert was not delivered")
	}
}
