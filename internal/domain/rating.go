package domain

import "time"

// Rating is a rider's review of a completed grouped ride.
type Rating struct {
	ID            string
	GroupedRideID string
	RaterID       string
	DriverID      string
	Stars         int
	Comment       string
	Testimonial   string
	CreatedAt     time.Time
}
