package domain

import "time"

// Driver represents a driver that operators can assign to grouped rides.
// ID names the driver record; UserID is the account the driver signs in with.
type Driver struct {
	ID            string
	UserID        string // auth subject of the driver's account
	Name          string
	Phone         string
	Active        bool
	AssignedRides int
	CreatedAt     time.Time
}
