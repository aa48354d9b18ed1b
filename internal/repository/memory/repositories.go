package memory

import (
	"context"
	"sort"
	"time"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// ──────────────────────────────────────────────
// RIDE REQUESTS
// ──────────────────────────────────────────────

type rideRequests struct{ v view }

func (r *rideRequests) Create(ctx context.Context, req *domain.RideRequest) error {
	return r.v.do("requests.create", func(st *state) error {
		if _, ok := st.requests[req.ID]; ok {
			return repository.ErrDuplicate
		}
		st.requests[req.ID] = *req
		return nil
	})
}

func (r *rideRequests) GetByID(ctx context.Context, id string) (*domain.RideRequest, error) {
	var out *domain.RideRequest
	err := r.v.do("requests.get", func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &req
		return nil
	})
	return out, err
}

func (r *rideRequests) ListByRider(ctx context.Context, riderID string) ([]*domain.RideRequest, error) {
	out, err := r.filter(func(req *domain.RideRequest) bool { return req.RiderID == riderID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *rideRequests) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.RideRequest, error) {
	out, err := r.filter(func(req *domain.RideRequest) bool { return req.Status == status })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RequestedTime.Equal(out[j].RequestedTime) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RequestedTime.Before(out[j].RequestedTime)
	})
	return out, err
}

// ListByGroup returns members in the order the group listed them.
func (r *rideRequests) ListByGroup(ctx context.Context, groupID string) ([]*domain.RideRequest, error) {
	var out []*domain.RideRequest
	err := r.v.do("requests.list", func(st *state) error {
		for _, id := range st.groups[groupID].MemberRequestIDs {
			req, ok := st.requests[id]
			if !ok || req.GroupedRideID != groupID {
				continue
			}
			out = append(out, &req)
		}
		return nil
	})
	return out, err
}

func (r *rideRequests) ClaimPending(ctx context.Context, ids []string, groupID string) (int, error) {
	claimed := 0
	err := r.v.do("requests.claim", func(st *state) error {
		now := time.Now().UTC()
		for _, id := range ids {
			req, ok := st.requests[id]
			if !ok || req.Status != domain.RequestStatusPending {
				continue
			}
			req.Status = domain.RequestStatusGrouped
			req.GroupedRideID = groupID
			req.UpdatedAt = now
			st.requests[id] = req
			claimed++
		}
		return nil
	})
	return claimed, err
}

func (r *rideRequests) TransitionStatus(ctx context.Context, id string, from, to domain.RequestStatus) error {
	return r.v.do("requests.transition", func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return repository.ErrNotFound
		}
		if req.Status != from {
			return repository.ErrStaleState
		}
		req.Status = to
		req.UpdatedAt = time.Now().UTC()
		st.requests[id] = req
		return nil
	})
}

func (r *rideRequests) filter(keep func(*domain.RideRequest) bool) ([]*domain.RideRequest, error) {
	var out []*domain.RideRequest
	err := r.v.do("requests.list", func(st *state) error {
		for _, req := range st.requests {
			req := req
			if keep(&req) {
				out = append(out, &req)
			}
		}
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────
// GROUPED RIDES
// ──────────────────────────────────────────────

type groupedRides struct{ v view }

func copyGroup(g domain.GroupedRide) *domain.GroupedRide {
	g.MemberRequestIDs = append([]string(nil), g.MemberRequestIDs...)
	return &g
}

func (r *groupedRides) Create(ctx context.Context, g *domain.GroupedRide) error {
	return r.v.do("groups.create", func(st *state) error {
		if _, ok := st.groups[g.ID]; ok {
			return repository.ErrDuplicate
		}
		st.groups[g.ID] = *copyGroup(*g)
		return nil
	})
}

func (r *groupedRides) GetByID(ctx context.Context, id string) (*domain.GroupedRide, error) {
	var out *domain.GroupedRide
	err := r.v.do("groups.get", func(st *state) error {
		g, ok := st.groups[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyGroup(g)
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: a transaction already holds the store.
func (r *groupedRides) GetForUpdate(ctx context.Context, id string) (*domain.GroupedRide, error) {
	return r.GetByID(ctx, id)
}

func (r *groupedRides) List(ctx context.Context, f domain.GroupFilter) ([]*domain.GroupedRide, error) {
	var out []*domain.GroupedRide
	err := r.v.do("groups.list", func(st *state) error {
		riderGroups := map[string]bool{}
		if f.RiderID != "" {
			for _, req := range st.requests {
				if req.RiderID == f.RiderID && req.GroupedRideID != "" {
					riderGroups[req.GroupedRideID] = true
				}
			}
		}
		for _, g := range st.groups {
			if f.Status != "" && g.Status != f.Status {
				continue
			}
			if f.DriverUserID != "" && g.DriverUserID != f.DriverUserID {
				continue
			}
			if f.RiderID != "" && !riderGroups[g.ID] {
				continue
			}
			out = append(out, copyGroup(g))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *groupedRides) TransitionStatus(ctx context.Context, id string, from, to domain.GroupStatus, at time.Time, reason string) error {
	return r.v.do("groups.transition", func(st *state) error {
		g, ok := st.groups[id]
		if !ok {
			return repository.ErrNotFound
		}
		if g.Status != from {
			return repository.ErrStaleState
		}
		g.Status = to
		g.UpdatedAt = at
		switch to {
		case domain.GroupStatusInProgress:
			g.StartedAt = at
		case domain.GroupStatusCompleted:
			g.CompletedAt = at
		case domain.GroupStatusCancelled:
			g.CancelledAt = at
			g.CancelReason = reason
		}
		st.groups[id] = g
		return nil
	})
}

func (r *groupedRides) AssignDriver(ctx context.Context, id, driverID, driverUserID string, at time.Time) error {
	return r.v.do("groups.assign_driver", func(st *state) error {
		g, ok := st.groups[id]
		if !ok {
			return repository.ErrNotFound
		}
		if g.Status.IsTerminal() {
			return repository.ErrStaleState
		}
		g.DriverID = driverID
		g.DriverUserID = driverUserID
		g.UpdatedAt = at
		st.groups[id] = g
		return nil
	})
}

func (r *groupedRides) UpdatePricing(ctx context.Context, id string, charged, actual float64) error {
	return r.v.do("groups.pricing", func(st *state) error {
		g, ok := st.groups[id]
		if !ok {
			return repository.ErrNotFound
		}
		g.ChargedPrice = charged
		g.ActualPrice = actual
		g.UpdatedAt = time.Now().UTC()
		st.groups[id] = g
		return nil
	})
}

// ──────────────────────────────────────────────
// NOTIFICATIONS
// ──────────────────────────────────────────────

type notifications struct{ v view }

func (r *notifications) Create(ctx context.Context, n *domain.Notification) error {
	return r.v.do("notifications.create", func(st *state) error {
		if _, ok := st.notifications[n.ID]; ok {
			return repository.ErrDuplicate
		}
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r *notifications) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var out *domain.Notification
	err := r.v.do("notifications.get", func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &n
		return nil
	})
	return out, err
}

func (r *notifications) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	out, err := r.filter(func(n *domain.Notification) bool { return n.UserID == userID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, err
}

func (r *notifications) ListByGroup(ctx context.Context, groupID string) ([]*domain.Notification, error) {
	out, err := r.filter(func(n *domain.Notification) bool { return n.GroupedRideID == groupID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, err
}

func (r *notifications) Respond(ctx context.Context, id string, status domain.NotificationStatus, at time.Time) error {
	return r.v.do("notifications.respond", func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		if n.Status != domain.NotificationPending {
			return repository.ErrStaleState
		}
		n.Status = status
		n.RespondedAt = at
		st.notifications[id] = n
		return nil
	})
}

func (r *notifications) filter(keep func(*domain.Notification) bool) ([]*domain.Notification, error) {
	var out []*domain.Notification
	err := r.v.do("notifications.list", func(st *state) error {
		for _, n := range st.notifications {
			n := n
			if keep(&n) {
				out = append(out, &n)
			}
		}
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────
// CHAT
// ──────────────────────────────────────────────

type chatMessages struct{ v view }

func (r *chatMessages) Append(ctx context.Context, msg *domain.ChatMessage) error {
	return r.v.do("chat.append", func(st *state) error {
		log := st.chat[msg.GroupedRideID]
		if n := len(log); n > 0 && log[n-1].Seq >= msg.Seq {
			return repository.ErrDuplicate
		}
		st.chat[msg.GroupedRideID] = append(log, *msg)
		return nil
	})
}

func (r *chatMessages) History(ctx context.Context, groupID string, afterSeq int64, limit int) ([]*domain.ChatMessage, error) {
	var out []*domain.ChatMessage
	err := r.v.do("chat.history", func(st *state) error {
		for _, m := range st.chat[groupID] {
			if m.Seq <= afterSeq {
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}
			m := m
			out = append(out, &m)
		}
		return nil
	})
	return out, err
}

func (r *chatMessages) LastSeq(ctx context.Context, groupID string) (int64, error) {
	var seq int64
	err := r.v.do("chat.last_seq", func(st *state) error {
		if log := st.chat[groupID]; len(log) > 0 {
			seq = log[len(log)-1].Seq
		}
		return nil
	})
	return seq, err
}

// ──────────────────────────────────────────────
// DRIVERS
// ──────────────────────────────────────────────

type drivers struct{ v view }

func (r *drivers) Create(ctx context.Context, d *domain.Driver) error {
	return r.v.do("drivers.create", func(st *state) error {
		for _, existing := range st.drivers {
			if existing.ID == d.ID || existing.Phone == d.Phone || existing.UserID == d.UserID {
				return repository.ErrDuplicate
			}
		}
		st.drivers[d.ID] = *d
		return nil
	})
}

func (r *drivers) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	var out *domain.Driver
	err := r.v.do("drivers.get", func(st *state) error {
		d, ok := st.drivers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &d
		return nil
	})
	return out, err
}

func (r *drivers) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	var out []*domain.Driver
	err := r.v.do("drivers.list", func(st *state) error {
		for _, d := range st.drivers {
			d := d
			out = append(out, &d)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *drivers) SetActive(ctx context.Context, id string, active bool) error {
	return r.v.do("drivers.set_active", func(st *state) error {
		d, ok := st.drivers[id]
		if !ok {
			return repository.ErrNotFound
		}
		d.Active = active
		st.drivers[id] = d
		return nil
	})
}

func (r *drivers) IncrementAssigned(ctx context.Context, id string) error {
	return r.v.do("drivers.increment", func(st *state) error {
		d, ok := st.drivers[id]
		if !ok {
			return repository.ErrNotFound
		}
		d.AssignedRides++
		st.drivers[id] = d
		return nil
	})
}

// ──────────────────────────────────────────────
// RATINGS
// ──────────────────────────────────────────────

type ratings struct{ v view }

func (r *ratings) Create(ctx context.Context, rt *domain.Rating) error {
	return r.v.do("ratings.create", func(st *state) error {
		for _, existing := range st.ratings {
			if existing.GroupedRideID == rt.GroupedRideID && existing.RaterID == rt.RaterID {
				return repository.ErrDuplicate
			}
		}
		st.ratings[rt.ID] = *rt
		return nil
	})
}

func (r *ratings) ListByGroup(ctx context.Context, groupID string) ([]*domain.Rating, error) {
	var out []*domain.Rating
	err := r.v.do("ratings.list", func(st *state) error {
		for _, rt := range st.ratings {
			if rt.GroupedRideID == groupID {
				rt := rt
				out = append(out, &rt)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}
