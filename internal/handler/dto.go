package handler

import (
	"time"

	"gotogether/internal/domain"
	"gotogether/internal/service"
)

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// PointJSON is a coordinate pair.
type PointJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RideRequestResponse is the HTTP representation of a ride request.
type RideRequestResponse struct {
	ID                 string    `json:"id"`
	RiderID            string    `json:"rider_id"`
	Source             PointJSON `json:"source"`
	SourceAddress      string    `json:"source_address,omitempty"`
	Destination        PointJSON `json:"destination"`
	DestinationAddress string    `json:"destination_address"`
	RequestedTime      string    `json:"requested_time"`
	StationDropoff     bool      `json:"station_dropoff"`
	DepartureTime      string    `json:"departure_time,omitempty"`
	PassengerCount     int       `json:"passenger_count"`
	Notes              string    `json:"notes,omitempty"`
	Status             string    `json:"status"`
	GroupedRideID      string    `json:"grouped_ride_id,omitempty"`
	CreatedAt          string    `json:"created_at"`
	UpdatedAt          string    `json:"updated_at"`
}

func toRideRequestResponse(r *domain.RideRequest) RideRequestResponse {
	return RideRequestResponse{
		ID:                 r.ID,
		RiderID:            r.RiderID,
		Source:             PointJSON{Lat: r.SourceLat, Lng: r.SourceLng},
		SourceAddress:      r.SourceAddress,
		Destination:        PointJSON{Lat: r.DestinationLat, Lng: r.DestinationLng},
		DestinationAddress: r.DestinationAddress,
		RequestedTime:      formatTime(r.RequestedTime),
		StationDropoff:     r.StationDropoff,
		DepartureTime:      formatTime(r.DepartureTime),
		PassengerCount:     r.PassengerCount,
		Notes:              r.Notes,
		Status:             string(r.Status),
		GroupedRideID:      r.GroupedRideID,
		CreatedAt:          formatTime(r.CreatedAt),
		UpdatedAt:          formatTime(r.UpdatedAt),
	}
}

func toRideRequestResponses(reqs []*domain.RideRequest) []RideRequestResponse {
	out := make([]RideRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toRideRequestResponse(r))
	}
	return out
}

// RequestSummaryResponse is a rider's request with its grouped ride, if any.
type RequestSummaryResponse struct {
	Request RideRequestResponse  `json:"request"`
	Group   *GroupedRideResponse `json:"grouped_ride,omitempty"`
}

// GroupedRideResponse is the HTTP representation of a grouped ride.
type GroupedRideResponse struct {
	ID                 string   `json:"id"`
	OperatorID         string   `json:"operator_id"`
	DriverID           string   `json:"driver_id"`
	DriverUserID       string   `json:"driver_user_id"`
	DestinationAddress string   `json:"destination_address"`
	PickupTime         string   `json:"pickup_time"`
	PickupLocation     string   `json:"pickup_location,omitempty"`
	ChargedPrice       float64  `json:"charged_price"`
	ActualPrice        float64  `json:"actual_price,omitempty"`
	Savings            float64  `json:"savings"`
	Status             string   `json:"status"`
	MemberRequestIDs   []string `json:"member_request_ids"`
	CancelReason       string   `json:"cancel_reason,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	StartedAt          string   `json:"started_at,omitempty"`
	CompletedAt        string   `json:"completed_at,omitempty"`
	CancelledAt        string   `json:"cancelled_at,omitempty"`
}

func toGroupedRideResponse(g *domain.GroupedRide) GroupedRideResponse {
	members := g.MemberRequestIDs
	if members == nil {
		members = []string{}
	}
	return GroupedRideResponse{
		ID:                 g.ID,
		OperatorID:         g.OperatorID,
		DriverID:           g.DriverID,
		DriverUserID:       g.DriverUserID,
		DestinationAddress: g.DestinationAddress,
		PickupTime:         formatTime(g.PickupTime),
		PickupLocation:     g.PickupLocation,
		ChargedPrice:       g.ChargedPrice,
		ActualPrice:        g.ActualPrice,
		Savings:            g.Savings(),
		Status:             string(g.Status),
		MemberRequestIDs:   members,
		CancelReason:       g.CancelReason,
		CreatedAt:          formatTime(g.CreatedAt),
		UpdatedAt:          formatTime(g.UpdatedAt),
		StartedAt:          formatTime(g.StartedAt),
		CompletedAt:        formatTime(g.CompletedAt),
		CancelledAt:        formatTime(g.CancelledAt),
	}
}

// GroupDetailsResponse is a grouped ride with members and chat roster.
type GroupDetailsResponse struct {
	GroupedRide   GroupedRideResponse    `json:"grouped_ride"`
	Members       []RideRequestResponse  `json:"members"`
	Driver        *DriverResponse        `json:"driver,omitempty"`
	Roster        []domain.RosterMember  `json:"roster"`
	Notifications []NotificationResponse `json:"notifications,omitempty"`
}

func toGroupDetailsResponse(d *service.GroupDetails) GroupDetailsResponse {
	resp := GroupDetailsResponse{
		GroupedRide: toGroupedRideResponse(d.Group),
		Members:     toRideRequestResponses(d.Members),
		Roster:      d.Roster,
	}
	if resp.Roster == nil {
		resp.Roster = []domain.RosterMember{}
	}
	if d.Driver != nil {
		dr := toDriverResponse(d.Driver)
		resp.Driver = &dr
	}
	if len(d.Notifications) > 0 {
		resp.Notifications = toNotificationResponses(d.Notifications)
	}
	return resp
}

// NotificationResponse is the HTTP representation of a notification.
type NotificationResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	GroupedRideID string `json:"grouped_ride_id,omitempty"`
	RideRequestID string `json:"ride_request_id,omitempty"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	SentAt        string `json:"sent_at"`
	RespondedAt   string `json:"responded_at,omitempty"`
}

func toNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            n.ID,
		UserID:        n.UserID,
		GroupedRideID: n.GroupedRideID,
		RideRequestID: n.RideRequestID,
		Type:          string(n.Type),
		Status:        string(n.Status),
		Title:         n.Title,
		Message:       n.Message,
		SentAt:        formatTime(n.SentAt),
		RespondedAt:   formatTime(n.RespondedAt),
	}
}

func toNotificationResponses(ns []*domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, toNotificationResponse(n))
	}
	return out
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Active        bool   `json:"active"`
	AssignedRides int    `json:"assigned_rides"`
	CreatedAt     string `json:"created_at"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:            d.ID,
		UserID:        d.UserID,
		Name:          d.Name,
		Phone:         d.Phone,
		Active:        d.Active,
		AssignedRides: d.AssignedRides,
		CreatedAt:     formatTime(d.CreatedAt),
	}
}

// RatingResponse is the HTTP representation of a rating.
type RatingResponse struct {
	ID            string `json:"id"`
	GroupedRideID string `json:"grouped_ride_id"`
	RaterID       string `json:"rater_id"`
	DriverID      string `json:"driver_id"`
	Stars         int    `json:"stars"`
	Comment       string `json:"comment,omitempty"`
	Testimonial   string `json:"testimonial"`
	CreatedAt     string `json:"created_at"`
}

func toRatingResponse(r *domain.Rating) RatingResponse {
	return RatingResponse{
		ID:            r.ID,
		GroupedRideID: r.GroupedRideID,
		RaterID:       r.RaterID,
		DriverID:      r.DriverID,
		Stars:         r.Stars,
		Comment:       r.Comment,
		Testimonial:   r.Testimonial,
		CreatedAt:     formatTime(r.CreatedAt),
	}
}
