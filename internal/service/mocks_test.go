package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gotogether/internal/domain"
	"gotogether/internal/repository/memory"
)

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

type MockLockStore struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	acquired int
	released int
}

func NewMockLockStore() *MockLockStore {
	return &MockLockStore{held: make(map[string]string)}
}

func (m *MockLockStore) AcquireRequests(_ context.Context, ids []string, owner string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, id := range ids {
		if _, ok := m.held[id]; ok {
			return false, nil
		}
	}
	for _, id := range ids {
		m.held[id] = owner
	}
	m.acquired++
	return true, nil
}

func (m *MockLockStore) ReleaseRequests(_ context.Context, ids []string, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if m.held[id] == owner {
			delete(m.held, id)
		}
	}
	m.released++
	return nil
}

// Hold simulates another operator holding the lock on id.
func (m *MockLockStore) Hold(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[id] = "someone-else"
}

// ──────────────────────────────────────────────
// MOCK ROSTER CACHE
// ──────────────────────────────────────────────

type MockRosterCache struct {
	mu          sync.Mutex
	rosters     map[string][]domain.RosterMember
	invalidated []string
}

func NewMockRosterCache() *MockRosterCache {
	return &MockRosterCache{rosters: make(map[string][]domain.RosterMember)}
}

func (m *MockRosterCache) GetRoster(_ context.Context, groupID string) ([]domain.RosterMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rosters[groupID], nil
}

func (m *MockRosterCache) SetRoster(_ context.Context, groupID string, members []domain.RosterMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rosters[groupID] = members
	return nil
}

func (m *MockRosterCache) InvalidateRosters(_ context.Context, groupIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range groupIDs {
		delete(m.rosters, id)
		m.invalidated = append(m.invalidated, id)
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

type MockEventPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (m *MockEventPublisher) Publish(_ context.Context, evt domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *MockEventPublisher) Types() []domain.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK ROOM MANAGER
// ──────────────────────────────────────────────

type MockRoomManager struct {
	mu      sync.Mutex
	retired map[string]string
	left    map[string][]string
}

func NewMockRoomManager() *MockRoomManager {
	return &MockRoomManager{retired: make(map[string]string), left: make(map[string][]string)}
}

func (m *MockRoomManager) Retire(groupID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retired[groupID] = reason
}

func (m *MockRoomManager) Leave(groupID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.left[groupID] = append(m.left[groupID], userID)
}

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

var (
	operator = domain.Principal{Subject: "op-1", Role: domain.RoleOperator}
	alice    = domain.Principal{Subject: "alice", Role: domain.RoleRider}
	bob      = domain.Principal{Subject: "bob", Role: domain.RoleRider}
	carol    = domain.Principal{Subject: "carol", Role: domain.RoleRider}
)

type fixture struct {
	store    *memory.Store
	locks    *MockLockStore
	cache    *MockRosterCache
	events   *MockEventPublisher
	rooms    *MockRoomManager
	roster   *RosterService
	requests *RideRequestService
	grouping *GroupingService
	notes    *NotificationService
	life     *LifecycleService
	drivers  *DriverService
	ratings  *RatingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		store:  memory.NewStore(),
		locks:  NewMockLockStore(),
		cache:  NewMockRosterCache(),
		events: &MockEventPublisher{},
		rooms:  NewMockRoomManager(),
	}
	f.roster = NewRosterService(f.store, f.cache, logger)
	f.requests = NewRideRequestService(f.store, f.events, logger)
	f.grouping = NewGroupingService(f.store, f.locks, f.roster, f.rooms, f.events, logger)
	f.notes = NewNotificationService(f.store, f.roster, f.rooms, f.events, logger)
	f.life = NewLifecycleService(f.store, f.roster, f.rooms, f.events, logger)
	f.drivers = NewDriverService(f.store.Repositories().Drivers, logger)
	f.ratings = NewRatingService(f.store, f.events, logger)
	return f
}

// driver registers a driver and returns a principal signed in as their account.
func (f *fixture) driver(t *testing.T, phone string) (*domain.Driver, domain.Principal) {
	t.Helper()
	d, err := f.drivers.Register(context.Background(), operator, RegisterDriverRequest{
		Name:   "Dana " + phone,
		Phone:  phone,
		UserID: "drv-user-" + phone,
	})
	require.NoError(t, err)
	return d, domain.Principal{Subject: d.UserID, Role: domain.RoleDriver}
}

func (f *fixture) submit(t *testing.T, p domain.Principal) *domain.RideRequest {
	t.Helper()
	req, err := f.requests.Submit(context.Background(), p, validSubmit())
	require.NoError(t, err)
	return req
}

func validSubmit() SubmitRequest {
	return SubmitRequest{
		Source:             &Point{Lat: 37.7749, Lng: -122.4194},
		SourceAddress:      "1 Market St",
		Destination:        &Point{Lat: 37.6213, Lng: -122.3790},
		DestinationAddress: "SFO Terminal 2",
		RequestedTime:      time.Date(2026, 11, 2, 8, 30, 0, 0, time.UTC),
		PassengerCount:     1,
	}
}

func groupRequest(driverID string, reqs ...*domain.RideRequest) CreateGroupRequest {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	return CreateGroupRequest{
		RequestIDs:         ids,
		DriverID:           driverID,
		PickupTime:         time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC),
		PickupLocation:     "Ferry Building",
		DestinationAddress: "SFO Terminal 2",
		ChargedPrice:       18,
		ActualPrice:        45,
	}
}

// assignmentFor returns the pending assignment addressed to p.
func (f *fixture) assignmentFor(t *testing.T, p domain.Principal, groupID string) *domain.Notification {
	t.Helper()
	feed, err := f.notes.ListMine(context.Background(), p)
	require.NoError(t, err)
	for _, n := range feed.Pending {
		if n.GroupedRideID == groupID && n.Type == domain.NotificationRideAssignment {
			return n
		}
	}
	t.Fatalf("no pending assignment for %s in group %s", p.Subject, groupID)
	return nil
}
