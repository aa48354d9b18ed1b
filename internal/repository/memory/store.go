// Package memory keeps every repository in process memory. It backs local
// development when no database is configured and the service-level tests.
package memory

import (
	"context"
	"sync"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type state struct {
	requests      map[string]domain.RideRequest
	groups        map[string]domain.GroupedRide
	notifications map[string]domain.Notification
	chat          map[string][]domain.ChatMessage
	drivers       map[string]domain.Driver
	ratings       map[string]domain.Rating
}

func newState() *state {
	return &state{
		requests:      make(map[string]domain.RideRequest),
		groups:        make(map[string]domain.GroupedRide),
		notifications: make(map[string]domain.Notification),
		chat:          make(map[string][]domain.ChatMessage),
		drivers:       make(map[string]domain.Driver),
		ratings:       make(map[string]domain.Rating),
	}
}

// clone copies everything a transaction can mutate. Chat history is
// append-only and never written inside a transaction, so it is shared.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.groups {
		v.MemberRequestIDs = append([]string(nil), v.MemberRequestIDs...)
		c.groups[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.drivers {
		c.drivers[k] = v
	}
	for k, v := range s.ratings {
		c.ratings[k] = v
	}
	c.chat = s.chat
	return c
}

// Store is an in-memory repository.Store. Transactions hold the store lock
// for their whole duration and work on a private copy that replaces the
// live state only on commit.
type Store struct {
	mu     sync.Mutex
	state  *state
	faults map[string]error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{state: newState(), faults: make(map[string]error)}
}

// Repositories returns repositories that lock the store per call.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(view{store: s})
}

// WithinTx runs fn against a private copy of the state and publishes it on success.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.clone()
	if err := fn(ctx, s.bind(view{store: s, tx: tx})); err != nil {
		return err
	}
	s.state = tx
	return nil
}

// InjectFault makes the named operation (for example "notifications.create")
// fail with err until cleared with a nil err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) bind(v view) repository.Repositories {
	return repository.Repositories{
		Requests:      &rideRequests{v},
		Groups:        &groupedRides{v},
		Notifications: &notifications{v},
		Chat:          &chatMessages{v},
		Drivers:       &drivers{v},
		Ratings:       &ratings{v},
	}
}

// view resolves which state a repository call touches.
type view struct {
	store *Store
	tx    *state
}

func (v view) do(op string, fn func(st *state) error) error {
	if v.tx != nil {
		if err := v.store.faults[op]; err != nil {
			return err
		}
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if err := v.store.faults[op]; err != nil {
		return err
	}
	return fn(v.store.state)
}
