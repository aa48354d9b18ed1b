package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotogether/internal/domain"
)

// ──────────────────────────────────────────────
// CREATE GROUP
// ──────────────────────────────────────────────

func TestCreateGroup_ClaimsRequestsAndDispatchesAssignments(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0100")
	r1, r2 := f.submit(t, alice), f.submit(t, bob)

	details, err := f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r1, r2))
	require.NoError(t, err)

	g := details.Group
	assert.Equal(t, domain.GroupStatusPendingAcceptance, g.Status)
	assert.Equal(t, []string{r1.ID, r2.ID}, g.MemberRequestIDs)
	assert.Equal(t, operator.Subject, g.OperatorID)
	assert.InDelta(t, 27.0, g.Savings(), 1e-9)
	assert.Len(t, details.Notifications, 2)
	assert.Equal(t, 1, details.Driver.AssignedRides)

	for _, id := range []string{r1.ID, r2.ID} {
		req, err := f.store.Repositories().Requests.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusGrouped, req.Status)
		assert.Equal(t, g.ID, req.GroupedRideID)
	}

	for _, p := range []domain.Principal{alice, bob} {
		n := f.assignmentFor(t, p, g.ID)
		assert.Equal(t, "New ride assignment", n.Title)
		assert.Contains(t, n.Message, "SFO Terminal 2")
		assert.Contains(t, n.Message, "Ferry Building")
	}

	stored, err := f.store.Repositories().Drivers.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AssignedRides)

	assert.Equal(t, []domain.RosterMember{
		{UserID: d.UserID, Kind: domain.SenderDriver},
		{UserID: "alice", Kind: domain.SenderRider},
		{UserID: "bob", Kind: domain.SenderRider},
	}, details.Roster)

	assert.Contains(t, f.events.Types(), domain.EventGroupCreated)
	assert.Equal(t, 1, f.locks.acquired)
	assert.Equal(t, 1, f.locks.released)
	assert.Empty(t, f.locks.held)
}

func TestCreateGroup_OperatorOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	d, dp := f.driver(t, "555-0101")
	r := f.submit(t, alice)

	for _, p := range []domain.Principal{alice, dp} {
		_, err := f.grouping.CreateGroup(context.Background(), p, groupRequest(d.ID, r))
		assert.ErrorIs(t, err, ErrOperatorOnly)
		assert.ErrorIs(t, err, ErrForbidden)
	}
}

func TestCreateGroup_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	d, _ := f.driver(t, "555-0102")
	r := f.submit(t, alice)

	tests := []struct {
		name   string
		mutate func(*CreateGroupRequest)
		want   error
	}{
		{"no requests", func(c *CreateGroupRequest) { c.RequestIDs = nil }, ErrEmptyGroup},
		{"duplicate request", func(c *CreateGroupRequest) { c.RequestIDs = []string{r.ID, r.ID} }, ErrDuplicateRequestInGroup},
		{"no driver", func(c *CreateGroupRequest) { c.DriverID = " " }, ErrValidation},
		{"zero price", func(c *CreateGroupRequest) { c.ChargedPrice = 0 }, ErrInvalidPrice},
		{"negative actual", func(c *CreateGroupRequest) { c.ActualPrice = -1 }, ErrInvalidPrice},
		{"no destination", func(c *CreateGroupRequest) { c.DestinationAddress = "" }, ErrMissingDestinationAddress},
		{"no pickup time", func(c *CreateGroupRequest) { c.PickupTime = time.Time{} }, ErrMissingPickupTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := groupRequest(d.ID, r)
			tt.mutate(&req)
			_, err := f.grouping.CreateGroup(context.Background(), operator, req)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	pending, err := f.requests.ListPending(context.Background(), operator)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCreateGroup_UnknownRequestChangesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0103")
	r := f.submit(t, alice)

	req := groupRequest(d.ID, r)
	req.RequestIDs = append(req.RequestIDs, "missing")
	_, err := f.grouping.CreateGroup(ctx, operator, req)
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.Equal(t, "not_found", Kind(err))

	stored, err := f.store.Repositories().Requests.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, stored.Status)

	groups, err := f.grouping.List(ctx, operator, domain.GroupFilter{})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestCreateGroup_DriverChecks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0104")
	r := f.submit(t, alice)

	_, err := f.grouping.CreateGroup(ctx, operator, groupRequest("nobody", r))
	assert.ErrorIs(t, err, ErrDriverNotFound)

	_, err = f.drivers.SetActive(ctx, operator, d.ID, false)
	require.NoError(t, err)
	_, err = f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r))
	assert.ErrorIs(t, err, ErrDriverInactive)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateGroup_AlreadyGroupedRequestIsConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0105")
	r1, r2, r3 := f.submit(t, alice), f.submit(t, bob), f.submit(t, carol)

	first, err := f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r1, r2))
	require.NoError(t, err)

	_, err = f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r2, r3))
	assert.ErrorIs(t, err, ErrRequestsUnavailable)
	assert.Equal(t, "conflict", Kind(err))

	// r3 stays pending and r2 stays with the first group.
	got3, err := f.store.Repositories().Requests.GetByID(ctx, r3.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, got3.Status)
	got2, err := f.store.Repositories().Requests.GetByID(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Group.ID, got2.GroupedRideID)

	carolFeed, err := f.notes.ListMine(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, carolFeed.Pending)
}

func TestCreateGroup_CancelledRequestCannotBeGrouped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0106")
	r := f.submit(t, alice)

	_, err := f.requests.Cancel(ctx, alice, r.ID)
	require.NoError(t, err)

	_, err = f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r))
	assert.ErrorIs(t, err, ErrRequestsUnavailable)
}

func TestCreateGroup_ConcurrentOverlapHasOneWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0107")
	r1, r2 := f.submit(t, alice), f.submit(t, bob)

	// Without the lock store only the conditional claim decides.
	grouping := NewGroupingService(f.store, nil, f.roster, f.rooms, f.events, f.grouping.logger)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r1, r2))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	groups, err := f.grouping.List(ctx, operator, domain.GroupFilter{})
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	feed, err := f.notes.ListMine(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, feed.Pending, 1)
}

func TestCreateGroup_DispatchFailureRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0108")
	r1, r2 := f.submit(t, alice), f.submit(t, bob)

	boom := errors.New("disk full")
	f.store.InjectFault("notifications.create", boom)

	_, err := f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r1, r2))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "internal", Kind(err))

	f.store.InjectFault("notifications.create", nil)

	pending, err := f.requests.ListPending(ctx, operator)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	groups, err := f.grouping.List(ctx, operator, domain.GroupFilter{})
	require.NoError(t, err)
	assert.Empty(t, groups)

	stored, err := f.store.Repositories().Drivers.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.AssignedRides)

	feed, err := f.notes.ListMine(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, feed.Pending)
	assert.NotContains(t, f.events.Types(), domain.EventGroupCreated)

	// The same requests can still be grouped afterwards.
	_, err = f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r1, r2))
	require.NoError(t, err)
}

func TestCreateGroup_LockHeldElsewhere(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	d, _ := f.driver(t, "555-0109")
	r1, r2 := f.submit(t, alice), f.submit(t, bob)

	f.locks.Hold(r2.ID)
	_, err := f.grouping.CreateGroup(context.Background(), operator, groupRequest(d.ID, r1, r2))
	assert.ErrorIs(t, err, ErrRequestsUnavailable)

	pending, err := f.requests.ListPending(context.Background(), operator)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestCreateGroup_LockOutageFallsBackToClaim(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	d, _ := f.driver(t, "555-0110")
	r := f.submit(t, alice)

	f.locks.err = errors.New("connection refused")
	details, err := f.grouping.CreateGroup(context.Background(), operator, groupRequest(d.ID, r))
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStatusPendingAcceptance, details.Group.Status)
	assert.Zero(t, f.locks.released)
}

func TestCreateGroup_EventFailureDoesNotUndo(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	d, _ := f.driver(t, "555-0111")
	r := f.submit(t, alice)

	f.events.err = errors.New("broker down")
	details, err := f.grouping.CreateGroup(context.Background(), operator, groupRequest(d.ID, r))
	require.NoError(t, err)

	got, err := f.grouping.Get(context.Background(), operator, details.Group.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStatusPendingAcceptance, got.Group.Status)
}

// ──────────────────────────────────────────────
// READ AND PRICING
// ──────────────────────────────────────────────

func TestGetGroup_Visibility(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, dp := f.driver(t, "555-0112")
	r1, r2 := f.submit(t, alice), f.submit(t, bob)
	created, err := f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, r1, r2))
	require.NoError(t, err)
	id := created.Group.ID

	got, err := f.grouping.Get(ctx, operator, id)
	require.NoError(t, err)
	assert.Len(t, got.Notifications, 2)
	assert.Equal(t, d.ID, got.Driver.ID)

	got, err = f.grouping.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
	assert.Nil(t, got.Notifications)

	_, err = f.grouping.Get(ctx, dp, id)
	require.NoError(t, err)

	_, err = f.grouping.Get(ctx, carol, id)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = f.grouping.Get(ctx, operator, "missing")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestListGroups_ScopedByRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d1, dp1 := f.driver(t, "555-0113")
	d2, _ := f.driver(t, "555-0114")

	_, err := f.grouping.CreateGroup(ctx, operator, groupRequest(d1.ID, f.submit(t, alice)))
	require.NoError(t, err)
	_, err = f.grouping.CreateGroup(ctx, operator, groupRequest(d2.ID, f.submit(t, bob)))
	require.NoError(t, err)

	all, err := f.grouping.List(ctx, operator, domain.GroupFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.grouping.List(ctx, dp1, domain.GroupFilter{DriverUserID: d2.UserID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, d1.ID, mine[0].DriverID)

	joined, err := f.grouping.List(ctx, bob, domain.GroupFilter{})
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, d2.ID, joined[0].DriverID)

	none, err := f.grouping.List(ctx, carol, domain.GroupFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	limited, err := f.grouping.List(ctx, operator, domain.GroupFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestUpdatePricing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0115")
	created, err := f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, f.submit(t, alice)))
	require.NoError(t, err)
	id := created.Group.ID

	g, err := f.grouping.UpdatePricing(ctx, operator, id, 20, 50)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, g.Savings(), 1e-9)

	_, err = f.grouping.UpdatePricing(ctx, alice, id, 20, 50)
	assert.ErrorIs(t, err, ErrOperatorOnly)

	_, err = f.grouping.UpdatePricing(ctx, operator, id, 0, 50)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = f.life.Cancel(ctx, operator, id, "")
	require.NoError(t, err)
	_, err = f.grouping.UpdatePricing(ctx, operator, id, 25, 50)
	assert.ErrorIs(t, err, ErrGroupClosed)
}

func TestGetGroup_MembersFollowGroupOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.driver(t, "555-0116")
	first, second, third := f.submit(t, alice), f.submit(t, bob), f.submit(t, carol)

	created, err := f.grouping.CreateGroup(ctx, operator, groupRequest(d.ID, third, first, second))
	require.NoError(t, err)

	got, err := f.grouping.Get(ctx, operator, created.Group.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(got.Members))
	for _, m := range got.Members {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{third.ID, first.ID, second.ID}, ids)
	assert.Equal(t, created.Group.MemberRequestIDs, ids)

	riders := make([]string, 0, len(got.Roster))
	for _, m := range got.Roster[1:] {
		riders = append(riders, m.UserID)
	}
	assert.Equal(t, []string{"carol", "alice", "bob"}, riders)
}

// ──────────────────────────────────────────────
// DRIVER REASSIGNMENT
// ──────────────────────────────────────────────

func TestAssignDriver_HandsRideToNewDriver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	g, oldDriver := f.confirmedGroup(t, alice, bob)
	d2, newDriver := f.driver(t, "555-0120")
	f.cache.invalidated = nil

	got, err := f.grouping.AssignDriver(ctx, operator, g.ID, d2.ID)
	require.NoError(t, err)
	assert.Equal(t, d2.ID, got.DriverID)
	assert.Equal(t, d2.UserID, got.DriverUserID)
	assert.Equal(t, domain.GroupStatusConfirmed, got.Status)

	stored, err := f.store.Repositories().Drivers.GetByID(ctx, d2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AssignedRides)

	assert.Contains(t, f.cache.invalidated, g.ID)
	assert.Equal(t, []string{oldDriver.Subject}, f.rooms.left[g.ID])
	assert.Contains(t, f.events.Types(), domain.EventDriverAssigned)

	for _, p := range []domain.Principal{alice, bob, newDriver} {
		assert.Contains(t, systemTitles(t, f, p, g.ID), "Driver changed", p.Subject)
	}
	assert.NotContains(t, systemTitles(t, f, oldDriver, g.ID), "Driver changed")

	roster, err := f.roster.Roster(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RosterMember{UserID: newDriver.Subject, Kind: domain.SenderDriver}, roster[0])

	_, err = f.life.Start(ctx, oldDriver, g.ID)
	assert.ErrorIs(t, err, ErrNotRideParticipant)
	_, err = f.life.Start(ctx, newDriver, g.ID)
	require.NoError(t, err)
}

func TestAssignDriver_Rules(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	details, _ := f.groupOf(t, alice)
	id := details.Group.ID
	d2, _ := f.driver(t, "555-0121")
	off, _ := f.driver(t, "555-0122")
	_, err := f.drivers.SetActive(ctx, operator, off.ID, false)
	require.NoError(t, err)

	_, err = f.grouping.AssignDriver(ctx, alice, id, d2.ID)
	assert.ErrorIs(t, err, ErrOperatorOnly)

	_, err = f.grouping.AssignDriver(ctx, operator, id, " ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.grouping.AssignDriver(ctx, operator, "missing", d2.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = f.grouping.AssignDriver(ctx, operator, id, "missing")
	assert.ErrorIs(t, err, ErrDriverNotFound)

	_, err = f.grouping.AssignDriver(ctx, operator, id, off.ID)
	assert.ErrorIs(t, err, ErrDriverInactive)

	_, err = f.grouping.AssignDriver(ctx, operator, id, details.Driver.ID)
	assert.ErrorIs(t, err, ErrDriverAlreadyAssigned)

	// A pending_acceptance ride can change hands; assignments stay open.
	got, err := f.grouping.AssignDriver(ctx, operator, id, d2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStatusPendingAcceptance, got.Status)
	f.assignmentFor(t, alice, id)

	_, err = f.life.Cancel(ctx, operator, id, "")
	require.NoError(t, err)
	_, err = f.grouping.AssignDriver(ctx, operator, id, details.Driver.ID)
	assert.ErrorIs(t, err, ErrGroupClosed)
}
