package domain

import "time"

// RequestStatus represents the current status of a ride request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusGrouped   RequestStatus = "grouped"
	RequestStatusAssigned  RequestStatus = "assigned"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// MaxPassengers is the largest party a single request may carry.
const MaxPassengers = 6

// RideRequest is a rider's ask for a ride between two points.
type RideRequest struct {
	ID                 string
	RiderID            string
	SourceLat          float64
	SourceLng          float64
	SourceAddress      string
	DestinationLat     float64
	DestinationLng     float64
	DestinationAddress string
	RequestedTime      time.Time
	StationDropoff     bool
	DepartureTime      time.Time // transit departure, only set with StationDropoff
	PassengerCount     int
	Notes              string
	Status             RequestStatus
	GroupedRideID      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsActiveMember reports whether the request still holds a seat in its group.
func (r *RideRequest) IsActiveMember() bool {
	switch r.Status {
	case RequestStatusGrouped, RequestStatusAssigned, RequestStatusAccepted:
		return r.GroupedRideID != ""
	}
	return false
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending: {RequestStatusGrouped, RequestStatusCancelled},
	RequestStatusGrouped: {RequestStatusAccepted, RequestStatusRejected},
}

// CanTransitionRequest reports whether a request may move from one status to another.
func CanTransitionRequest(from, to RequestStatus) bool {
	for _, s := range requestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
