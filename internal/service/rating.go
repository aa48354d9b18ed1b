package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// RatingService collects rider reviews of completed rides.
type RatingService struct {
	store  repository.Store
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewRatingService creates a new RatingService.
func NewRatingService(store repository.Store, events EventPublisher, logger *slog.Logger) *RatingService {
	return &RatingService{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// RateRequest contains the parameters for rating a ride.
type RateRequest struct {
	Stars   int
	Comment string
}

// Rate records the caller's review of a completed ride they took part in.
func (s *RatingService) Rate(ctx context.Context, p domain.Principal, groupID string, req RateRequest) (*domain.Rating, error) {
	if req.Stars < 1 || req.Stars > 5 {
		return nil, ErrInvalidStars
	}

	repos := s.store.Repositories()
	g, err := repos.Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	members, err := repos.Requests.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	rode := false
	for _, m := range members {
		if m.RiderID == p.Subject && m.Status == domain.RequestStatusAccepted {
			rode = true
			break
		}
	}
	if !rode {
		return nil, ErrNotRideParticipant
	}
	if g.Status != domain.GroupStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	now := s.now().UTC()
	comment := strings.TrimSpace(req.Comment)
	rating := &domain.Rating{
		ID:            uuid.New().String(),
		GroupedRideID: g.ID,
		RaterID:       p.Subject,
		DriverID:      g.DriverID,
		Stars:         req.Stars,
		Comment:       comment,
		Testimonial:   FormatTestimonial(g, req.Stars, comment),
		CreatedAt:     now,
	}
	if err := repos.Ratings.Create(ctx, rating); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}

	s.logger.Info("ride rated", "group_id", g.ID, "rater_id", p.Subject, "stars", req.Stars)
	publish(ctx, s.events, s.logger, domain.Event{
		Type:          domain.EventRideRated,
		GroupedRideID: g.ID,
		ActorID:       p.Subject,
		Status:        strconv.Itoa(req.Stars),
		OccurredAt:    now,
	})
	return rating, nil
}

// ListForGroup returns the ratings of a ride, for operators and its driver.
func (s *RatingService) ListForGroup(ctx context.Context, p domain.Principal, groupID string) ([]*domain.Rating, error) {
	repos := s.store.Repositories()
	g, err := repos.Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if !p.IsOperator() && g.DriverUserID != p.Subject {
		return nil, ErrNotRideParticipant
	}
	return repos.Ratings.ListByGroup(ctx, groupID)
}

// FormatTestimonial renders the shareable review text for a rating.
func FormatTestimonial(g *domain.GroupedRide, stars int, comment string) string {
	var b strings.Builder
	b.WriteString("GoTogether Ride Review\n\n")
	fmt.Fprintf(&b, "I recently shared a GoTogether ride to %s.\n\n", g.DestinationAddress)
	fmt.Fprintf(&b, "Rating: %s (%d/5)\n", strings.Repeat("*", stars), stars)
	if comment != "" {
		fmt.Fprintf(&b, "Review: %s\n", comment)
	}
	if savings := g.Savings(); savings > 0 {
		fmt.Fprintf(&b, "\nI saved %.2f compared to a regular fare!\n", savings)
	}
	b.WriteString("\nHighly recommend GoTogether for affordable and reliable shared rides!")
	return b.String()
}
