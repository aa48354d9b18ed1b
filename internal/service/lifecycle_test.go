package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotogether/internal/domain"
)

// confirmedGroup returns a confirmed group where every rider accepted.
func (f *fixture) confirmedGroup(t *testing.T, riders ...domain.Principal) (*domain.GroupedRide, domain.Principal) {
	t.Helper()
	details, dp := f.groupOf(t, riders...)
	id := details.Group.ID
	var g *domain.GroupedRide
	for _, p := range riders {
		res, err := f.notes.Resolve(context.Background(), p, f.assignmentFor(t, p, id).ID, DecisionAccept)
		require.NoError(t, err)
		g = res.Group
	}
	require.Equal(t, domain.GroupStatusConfirmed, g.Status)
	return g, dp
}

func TestLifecycle_DriverRunsRideToCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	g, dp := f.confirmedGroup(t, alice, bob)

	started, err := f.life.Start(ctx, dp, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStatusInProgress, started.Status)
	assert.False(t, started.StartedAt.IsZero())

	upcoming, err := f.requests.ListMine(ctx, alice, ViewUpcoming)
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)

	done, err := f.life.Complete(ctx, dp, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStatusCompleted, done.Status)
	assert.False(t, done.CompletedAt.IsZero())

	for _, p := range []domain.Principal{alice, bob} {
		feed, err := f.notes.ListMine(ctx, p)
		require.NoError(t, err)
		found := false
		for _, n := range feed.Pending {
			if n.Type == domain.NotificationRideCompleted && n.GroupedRideID == g.ID {
				found = true
			}
		}
		assert.True(t, found, "%s should be asked for a rating", p.Subject)
	}

	assert.Equal(t, "ride completed", f.rooms.retired[g.ID])
	assert.Contains(t, f.cache.invalidated, g.ID)

	completed, err := f.requests.ListMine(ctx, alice, ViewCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
	upcoming, err = f.requests.ListMine(ctx, alice, ViewUpcoming)
	require.NoError(t, err)
	assert.Empty(t, upcoming)
}

func TestLifecycle_Permissions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	g, dp := f.confirmedGroup(t, alice)
	_, otherDriver := f.driver(t, "555-9999")

	_, err := f.life.Start(ctx, alice, g.ID)
	assert.ErrorIs(t, err, ErrNotRideParticipant)

	_, err = f.life.Start(ctx, otherDriver, g.ID)
	assert.ErrorIs(t, err, ErrNotRideParticipant)

	_, err = f.life.Cancel(ctx, dp, g.ID, "")
	assert.ErrorIs(t, err, ErrNotRideParticipant)
	assert.Equal(t, "forbidden", Kind(err))

	_, err = f.life.Start(ctx, operator, g.ID)
	require.NoError(t, err)
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	details, dp := f.groupOf(t, alice)
	id := details.Group.ID

	_, err := f.life.Start(ctx, dp, id)
	assert.ErrorIs(t, err, ErrInvalidGroupTransition)

	_, err = f.life.Complete(ctx, dp, id)
	assert.ErrorIs(t, err, ErrInvalidGroupTransition)

	_, err = f.life.Start(ctx, dp, "missing")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestLifecycle_InProgressRideCannotBeCancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	g, dp := f.confirmedGroup(t, alice)

	_, err := f.life.Start(ctx, dp, g.ID)
	require.NoError(t, err)

	_, err = f.life.Cancel(ctx, operator, g.ID, "")
	assert.ErrorIs(t, err, ErrInvalidGroupTransition)
}

func TestLifecycle_CancelNotifiesMembers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	details, dp := f.groupOf(t, alice, bob)
	id := details.Group.ID

	_, err := f.notes.Resolve(ctx, bob, f.assignmentFor(t, bob, id).ID, DecisionReject)
	require.NoError(t, err)

	g, err := f.life.Cancel(ctx, operator, id, "  ")
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStatusCancelled, g.Status)
	assert.Equal(t, "cancelled by operator", g.CancelReason)
	assert.Equal(t, "ride cancelled", f.rooms.retired[id])

	assert.Equal(t, []string{"Ride cancelled"}, systemTitles(t, f, alice, id))
	assert.Equal(t, []string{"Ride cancelled"}, systemTitles(t, f, dp, id))
	assert.Empty(t, systemTitles(t, f, bob, id))

	_, err = f.life.Cancel(ctx, operator, id, "again")
	assert.ErrorIs(t, err, ErrGroupClosed)

	// Cancelling does not put requests back in the pending pool.
	pending, err := f.requests.ListPending(ctx, operator)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLifecycle_CancelExpiresOpenAssignments(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	details, _ := f.groupOf(t, alice, bob)
	id := details.Group.ID

	accepted, err := f.notes.Resolve(ctx, bob, f.assignmentFor(t, bob, id).ID, DecisionAccept)
	require.NoError(t, err)
	open := f.assignmentFor(t, alice, id)

	_, err = f.life.Cancel(ctx, operator, id, "driver unavailable")
	require.NoError(t, err)

	for _, p := range []domain.Principal{alice, bob} {
		feed, err := f.notes.ListMine(ctx, p)
		require.NoError(t, err)
		for _, n := range feed.Pending {
			assert.NotEqual(t, domain.NotificationRideAssignment, n.Type, "%s still has an open assignment", p.Subject)
		}
	}

	repos := f.store.Repositories()
	expired, err := repos.Notifications.GetByID(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationExpired, expired.Status)
	assert.False(t, expired.RespondedAt.IsZero())

	// Answered assignments keep their answer.
	kept, err := repos.Notifications.GetByID(ctx, accepted.Notification.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationAccepted, kept.Status)

	_, err = f.notes.Resolve(ctx, alice, open.ID, DecisionAccept)
	assert.ErrorIs(t, err, ErrNotificationResolved)
}

func TestLifecycle_RecordIDIsNotTheDriversIdentity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	g, dp := f.confirmedGroup(t, alice)

	impostor := domain.Principal{Subject: g.DriverID, Role: domain.RoleDriver}
	require.NotEqual(t, dp.Subject, impostor.Subject)

	_, err := f.life.Start(ctx, impostor, g.ID)
	assert.ErrorIs(t, err, ErrNotRideParticipant)
	_, err = f.grouping.Get(ctx, impostor, g.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	roster, err := f.roster.Roster(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RosterMember{UserID: dp.Subject, Kind: domain.SenderDriver}, roster[0])

	mine, err := f.grouping.List(ctx, dp, domain.GroupFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, g.ID, mine[0].ID)

	_, err = f.life.Start(ctx, dp, g.ID)
	require.NoError(t, err)
}
