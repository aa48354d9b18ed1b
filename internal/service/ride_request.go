package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gotogether/internal/domain"
	"gotogether/internal/observability"
	"gotogether/internal/repository"
)

// RideRequestService handles the rider side of ride requests.
type RideRequestService struct {
	store  repository.Store
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewRideRequestService creates a new RideRequestService.
func NewRideRequestService(store repository.Store, events EventPublisher, logger *slog.Logger) *RideRequestService {
	return &RideRequestService{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Point is a coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// SubmitRequest contains the parameters for submitting a ride request.
type SubmitRequest struct {
	Source             *Point
	SourceAddress      string
	Destination        *Point
	DestinationAddress string
	RequestedTime      time.Time
	StationDropoff     bool
	DepartureTime      time.Time
	PassengerCount     int
	Notes              string
}

// Submit creates a pending ride request owned by the caller.
func (s *RideRequestService) Submit(ctx context.Context, p domain.Principal, req SubmitRequest) (*domain.RideRequest, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rideReq := &domain.RideRequest{
		ID:                 uuid.New().String(),
		RiderID:            p.Subject,
		SourceLat:          req.Source.Lat,
		SourceLng:          req.Source.Lng,
		SourceAddress:      strings.TrimSpace(req.SourceAddress),
		DestinationLat:     req.Destination.Lat,
		DestinationLng:     req.Destination.Lng,
		DestinationAddress: strings.TrimSpace(req.DestinationAddress),
		RequestedTime:      req.RequestedTime.UTC(),
		StationDropoff:     req.StationDropoff,
		PassengerCount:     req.PassengerCount,
		Notes:              strings.TrimSpace(req.Notes),
		Status:             domain.RequestStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.StationDropoff {
		rideReq.DepartureTime = req.DepartureTime.UTC()
	}

	if err := s.store.Repositories().Requests.Create(ctx, rideReq); err != nil {
		return nil, err
	}

	observability.RequestsSubmitted.Inc()
	s.logger.Info("ride request submitted", "request_id", rideReq.ID, "rider_id", p.Subject)
	publish(ctx, s.events, s.logger, domain.Event{
		Type:          domain.EventRequestSubmitted,
		RideRequestID: rideReq.ID,
		ActorID:       p.Subject,
		Status:        string(rideReq.Status),
		OccurredAt:    now,
	})

	return rideReq, nil
}

func validateSubmit(req SubmitRequest) error {
	if req.PassengerCount < 1 || req.PassengerCount > domain.MaxPassengers {
		return ErrInvalidPassengerCount
	}
	if req.Source == nil || !isValidLatitude(req.Source.Lat) || !isValidLongitude(req.Source.Lng) {
		return ErrInvalidSourceLocation
	}
	if req.Destination == nil || !isValidLatitude(req.Destination.Lat) || !isValidLongitude(req.Destination.Lng) {
		return ErrInvalidDestinationLocation
	}
	if strings.TrimSpace(req.DestinationAddress) == "" {
		return ErrMissingDestinationAddress
	}
	if req.RequestedTime.IsZero() {
		return ErrMissingRequestedTime
	}
	if req.StationDropoff && req.DepartureTime.IsZero() {
		return ErrMissingDepartureTime
	}
	return nil
}

// Get returns a request visible to the caller: its owner or an operator.
func (s *RideRequestService) Get(ctx context.Context, p domain.Principal, id string) (*domain.RideRequest, error) {
	req, err := s.store.Repositories().Requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if req.RiderID != p.Subject && !p.IsOperator() {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// Cancel withdraws the caller's request while it is still pending.
func (s *RideRequestService) Cancel(ctx context.Context, p domain.Principal, id string) (*domain.RideRequest, error) {
	repos := s.store.Repositories()

	req, err := repos.Requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if req.RiderID != p.Subject {
		return nil, ErrRequestNotFound
	}
	if !domain.CanTransitionRequest(req.Status, domain.RequestStatusCancelled) {
		return nil, ErrRequestNotPending
	}

	// Conditional on pending: a concurrent grouping wins or loses atomically.
	err = repos.Requests.TransitionStatus(ctx, id, domain.RequestStatusPending, domain.RequestStatusCancelled)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrRequestNotPending
		}
		return nil, err
	}
	req.Status = domain.RequestStatusCancelled
	req.UpdatedAt = s.now().UTC()

	s.logger.Info("ride request cancelled", "request_id", id, "rider_id", p.Subject)
	publish(ctx, s.events, s.logger, domain.Event{
		Type:          domain.EventRequestCancelled,
		RideRequestID: id,
		ActorID:       p.Subject,
		Status:        string(req.Status),
		OccurredAt:    req.UpdatedAt,
	})
	return req, nil
}

// RequestView selects a projection of the caller's requests.
type RequestView string

const (
	ViewAll       RequestView = "all"
	ViewPending   RequestView = "pending"
	ViewUpcoming  RequestView = "upcoming"
	ViewCompleted RequestView = "completed"
	ViewHistory   RequestView = "history"
)

// RequestSummary pairs a request with its grouped ride, when it has one.
type RequestSummary struct {
	Request *domain.RideRequest
	Group   *domain.GroupedRide
}

// ListMine returns the caller's requests filtered to the given view.
func (s *RideRequestService) ListMine(ctx context.Context, p domain.Principal, view RequestView) ([]RequestSummary, error) {
	if view == "" {
		view = ViewAll
	}
	switch view {
	case ViewAll, ViewPending, ViewUpcoming, ViewCompleted, ViewHistory:
	default:
		return nil, ErrInvalidView
	}

	repos := s.store.Repositories()
	reqs, err := repos.Requests.ListByRider(ctx, p.Subject)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*domain.GroupedRide)
	out := make([]RequestSummary, 0, len(reqs))
	for _, req := range reqs {
		var g *domain.GroupedRide
		if req.GroupedRideID != "" {
			if cached, ok := groups[req.GroupedRideID]; ok {
				g = cached
			} else {
				g, err = repos.Groups.GetByID(ctx, req.GroupedRideID)
				if err != nil {
					return nil, err
				}
				groups[req.GroupedRideID] = g
			}
		}
		if inView(view, req, g) {
			out = append(out, RequestSummary{Request: req, Group: g})
		}
	}
	return out, nil
}

func inView(view RequestView, req *domain.RideRequest, g *domain.GroupedRide) bool {
	accepted := req.Status == domain.RequestStatusAccepted
	switch view {
	case ViewPending:
		return req.Status == domain.RequestStatusPending
	case ViewUpcoming:
		return accepted && g != nil &&
			(g.Status == domain.GroupStatusConfirmed || g.Status == domain.GroupStatusInProgress)
	case ViewCompleted:
		return accepted && g != nil && g.Status == domain.GroupStatusCompleted
	case ViewHistory:
		switch req.Status {
		case domain.RequestStatusCancelled, domain.RequestStatusRejected, domain.RequestStatusCompleted:
			return true
		}
		return g != nil && g.Status.IsTerminal()
	}
	return true
}

// RiderStats totals the caller's completed shared rides.
type RiderStats struct {
	TotalRides   int
	TotalSavings float64 // per-seat savings summed over those rides
}

// Stats counts the caller's accepted requests in completed rides and what
// sharing saved on them.
func (s *RideRequestService) Stats(ctx context.Context, p domain.Principal) (*RiderStats, error) {
	completed, err := s.ListMine(ctx, p, ViewCompleted)
	if err != nil {
		return nil, err
	}
	stats := &RiderStats{}
	for _, c := range completed {
		stats.TotalRides++
		stats.TotalSavings += c.Group.Savings()
	}
	return stats, nil
}

// ListPending returns every pending request for operators, earliest requested first.
func (s *RideRequestService) ListPending(ctx context.Context, p domain.Principal) ([]*domain.RideRequest, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	return s.store.Repositories().Requests.ListByStatus(ctx, domain.RequestStatusPending)
}
