package domain

import "time"

// GroupStatus represents the current status of a grouped ride.
type GroupStatus string

const (
	GroupStatusPendingAcceptance GroupStatus = "pending_acceptance"
	GroupStatusConfirmed         GroupStatus = "confirmed"
	GroupStatusInProgress        GroupStatus = "in_progress"
	GroupStatusCompleted         GroupStatus = "completed"
	GroupStatusCancelled         GroupStatus = "cancelled"
)

var groupTransitions = map[GroupStatus][]GroupStatus{
	GroupStatusPendingAcceptance: {GroupStatusConfirmed, GroupStatusCancelled},
	GroupStatusConfirmed:         {GroupStatusInProgress, GroupStatusCancelled},
	GroupStatusInProgress:        {GroupStatusCompleted},
}

// CanTransitionGroup reports whether a grouped ride may move from one status to another.
func CanTransitionGroup(from, to GroupStatus) bool {
	for _, s := range groupTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s GroupStatus) IsTerminal() bool {
	return s == GroupStatusCompleted || s == GroupStatusCancelled
}

// GroupedRide is a set of ride requests sharing one driver and schedule.
type GroupedRide struct {
	ID                 string
	OperatorID         string
	DriverID           string
	DriverUserID       string // copied from the driver at assignment
	DestinationAddress string
	PickupTime         time.Time
	PickupLocation     string
	ChargedPrice       float64 // per seat, what riders pay
	ActualPrice        float64 // per seat, what a solo ride would cost
	Status             GroupStatus
	MemberRequestIDs   []string // fixed at group time, in creation order
	CancelReason       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	StartedAt          time.Time
	CompletedAt        time.Time
	CancelledAt        time.Time
}

// Savings is the per-seat amount a rider saves by sharing. Never negative.
func (g *GroupedRide) Savings() float64 {
	if g.ActualPrice <= g.ChargedPrice {
		return 0
	}
	return g.ActualPrice - g.ChargedPrice
}

// HasMember reports whether the request id was part of the group at creation.
func (g *GroupedRide) HasMember(requestID string) bool {
	for _, id := range g.MemberRequestIDs {
		if id == requestID {
			return true
		}
	}
	return false
}

// GroupFilter narrows grouped ride listings.
type GroupFilter struct {
	Status       GroupStatus
	DriverUserID string
	RiderID      string
	Limit        int
	Offset       int
}
