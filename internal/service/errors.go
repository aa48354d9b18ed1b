package service

import (
	"errors"
	"fmt"

	"gotogether/internal/repository"
)

// Error kinds. Every error a service returns wraps exactly one of these, so
// callers can classify with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrTransport    = errors.New("transport failure")
)

var (
	// ErrInvalidPassengerCount is returned when passenger count is outside 1..6.
	ErrInvalidPassengerCount = fmt.Errorf("%w: passenger count must be between 1 and 6", ErrValidation)

	// ErrInvalidSourceLocation is returned when source coordinates are invalid.
	ErrInvalidSourceLocation = fmt.Errorf("%w: invalid source location", ErrValidation)

	// ErrInvalidDestinationLocation is returned when destination coordinates are invalid.
	ErrInvalidDestinationLocation = fmt.Errorf("%w: invalid destination location", ErrValidation)

	// ErrMissingDestinationAddress is returned when no destination address is given.
	ErrMissingDestinationAddress = fmt.Errorf("%w: destination address is required", ErrValidation)

	// ErrMissingRequestedTime is returned when the requested time is zero.
	ErrMissingRequestedTime = fmt.Errorf("%w: requested time is required", ErrValidation)

	// ErrMissingDepartureTime is returned for a station drop-off without departure time.
	ErrMissingDepartureTime = fmt.Errorf("%w: departure time is required for station drop-off", ErrValidation)

	// ErrEmptyGroup is returned when a group is created without requests.
	ErrEmptyGroup = fmt.Errorf("%w: at least one ride request is required", ErrValidation)

	// ErrDuplicateRequestInGroup is returned when the same request id appears twice.
	ErrDuplicateRequestInGroup = fmt.Errorf("%w: ride request listed more than once", ErrValidation)

	// ErrInvalidPrice is returned when a price is not positive or actual is below zero.
	ErrInvalidPrice = fmt.Errorf("%w: invalid price", ErrValidation)

	// ErrMissingPickupTime is returned when a group has no pickup time.
	ErrMissingPickupTime = fmt.Errorf("%w: pickup time is required", ErrValidation)

	// ErrInvalidDriverDetails is returned when a driver lacks a name, phone or account.
	ErrInvalidDriverDetails = fmt.Errorf("%w: driver name, phone and user id are required", ErrValidation)

	// ErrInvalidStars is returned when a rating is outside 1..5.
	ErrInvalidStars = fmt.Errorf("%w: stars must be between 1 and 5", ErrValidation)

	// ErrInvalidView is returned for an unknown request listing view.
	ErrInvalidView = fmt.Errorf("%w: unknown view", ErrValidation)
)

var (
	// ErrRequestNotFound is returned when a ride request is unknown or not visible to the caller.
	ErrRequestNotFound = fmt.Errorf("%w: ride request", ErrNotFound)

	// ErrGroupNotFound is returned when a grouped ride is unknown or not visible to the caller.
	ErrGroupNotFound = fmt.Errorf("%w: grouped ride", ErrNotFound)

	// ErrNotificationNotFound is returned when a notification is unknown or not the caller's.
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)

	// ErrDriverNotFound is returned when a driver does not exist.
	ErrDriverNotFound = fmt.Errorf("%w: driver", ErrNotFound)
)

var (
	// ErrRequestNotPending is returned when a request can no longer be cancelled or grouped.
	ErrRequestNotPending = fmt.Errorf("%w: ride request is not pending", ErrConflict)

	// ErrRequestNotAwaitingDecision is returned when resolving an assignment
	// whose request has already left the grouped state.
	ErrRequestNotAwaitingDecision = fmt.Errorf("%w: ride request is no longer awaiting a decision", ErrConflict)

	// ErrRequestsUnavailable is returned when one or more requests were claimed by another group.
	ErrRequestsUnavailable = fmt.Errorf("%w: ride requests are no longer pending", ErrConflict)

	// ErrDriverInactive is returned when grouping with a deactivated driver.
	ErrDriverInactive = fmt.Errorf("%w: driver is not active", ErrConflict)

	// ErrDriverAlreadyAssigned is returned when reassigning a ride to its current driver.
	ErrDriverAlreadyAssigned = fmt.Errorf("%w: driver already assigned to this ride", ErrConflict)

	// ErrDriverAlreadyRegistered is returned when the phone or account already has a driver.
	ErrDriverAlreadyRegistered = fmt.Errorf("%w: driver phone or account already registered", ErrConflict)

	// ErrNotificationResolved is returned when a notification was already answered.
	ErrNotificationResolved = fmt.Errorf("%w: notification already resolved", ErrConflict)

	// ErrNotAnAssignment is returned when accepting or rejecting an informational notification.
	ErrNotAnAssignment = fmt.Errorf("%w: notification does not take a decision", ErrConflict)

	// ErrAssignmentNeedsDecision is returned when marking an assignment as read.
	ErrAssignmentNeedsDecision = fmt.Errorf("%w: assignment must be accepted or rejected", ErrConflict)

	// ErrGroupNotAwaitingAcceptance is returned when resolving against a settled group.
	ErrGroupNotAwaitingAcceptance = fmt.Errorf("%w: grouped ride is no longer awaiting acceptance", ErrConflict)

	// ErrInvalidGroupTransition is returned for a lifecycle move the group's status forbids.
	ErrInvalidGroupTransition = fmt.Errorf("%w: grouped ride cannot move to that status", ErrConflict)

	// ErrGroupClosed is returned when mutating a completed or cancelled group.
	ErrGroupClosed = fmt.Errorf("%w: grouped ride is closed", ErrConflict)

	// ErrAlreadyRated is returned when a rider rates the same ride twice.
	ErrAlreadyRated = fmt.Errorf("%w: ride already rated", ErrConflict)

	// ErrRideNotCompleted is returned when rating a ride that has not finished.
	ErrRideNotCompleted = fmt.Errorf("%w: ride is not completed", ErrConflict)

	// ErrChatRoomClosed is returned when connecting to a retired chat room.
	ErrChatRoomClosed = fmt.Errorf("%w: chat room is closed", ErrConflict)
)

var (
	// ErrMissingCredential is returned when no bearer credential is supplied.
	ErrMissingCredential = fmt.Errorf("%w: missing credential", ErrUnauthorized)

	// ErrInvalidCredential is returned when the credential fails verification.
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", ErrUnauthorized)

	// ErrOperatorOnly is returned when a non-operator calls an operator action.
	ErrOperatorOnly = fmt.Errorf("%w: operator role required", ErrForbidden)

	// ErrNotChatMember is returned when the caller is not on a ride's roster.
	ErrNotChatMember = fmt.Errorf("%w: not a participant of this ride", ErrForbidden)

	// ErrNotRideParticipant is returned when the caller may not act on the ride.
	ErrNotRideParticipant = fmt.Errorf("%w: not allowed to act on this ride", ErrForbidden)
)

// Kind returns the short name of the error's kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}
