package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// RideRequestRepository is a PostgreSQL implementation of repository.RideRequestRepository.
type RideRequestRepository struct {
	q Querier
}

var _ repository.RideRequestRepository = (*RideRequestRepository)(nil)

const rideRequestColumns = `id, rider_id, source_lat, source_lng, source_address,
	destination_lat, destination_lng, destination_address, requested_time,
	station_dropoff, departure_time, passenger_count, notes, status,
	grouped_ride_id, created_at, updated_at`

// Create persists a new ride request.
func (r *RideRequestRepository) Create(ctx context.Context, req *domain.RideRequest) error {
	query := `
		INSERT INTO ride_requests (` + rideRequestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.q.ExecContext(ctx, query,
		req.ID,
		req.RiderID,
		req.SourceLat,
		req.SourceLng,
		req.SourceAddress,
		req.DestinationLat,
		req.DestinationLng,
		req.DestinationAddress,
		req.RequestedTime,
		req.StationDropoff,
		nullTime(req.DepartureTime),
		req.PassengerCount,
		nullString(req.Notes),
		req.Status,
		nullString(req.GroupedRideID),
		req.CreatedAt,
		req.UpdatedAt,
	)
	return err
}

// GetByID retrieves a ride request by ID.
func (r *RideRequestRepository) GetByID(ctx context.Context, id string) (*domain.RideRequest, error) {
	query := `SELECT ` + rideRequestColumns + ` FROM ride_requests WHERE id = $1`

	req, err := scanRideRequest(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListByRider retrieves a rider's requests, newest first.
func (r *RideRequestRepository) ListByRider(ctx context.Context, riderID string) ([]*domain.RideRequest, error) {
	query := `SELECT ` + rideRequestColumns + ` FROM ride_requests WHERE rider_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, riderID)
}

// ListByStatus retrieves requests in a status ordered by requested time.
func (r *RideRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.RideRequest, error) {
	query := `SELECT ` + rideRequestColumns + ` FROM ride_requests WHERE status = $1 ORDER BY requested_time ASC, created_at ASC`
	return r.list(ctx, query, status)
}

// ListByGroup retrieves the requests attached to a grouped ride in the
// order the group lists them.
func (r *RideRequestRepository) ListByGroup(ctx context.Context, groupID string) ([]*domain.RideRequest, error) {
	query := `
		SELECT ` + rideRequestColumns + ` FROM ride_requests
		WHERE grouped_ride_id = $1
		ORDER BY array_position((SELECT member_request_ids FROM grouped_rides WHERE id = $1), id)
	`
	return r.list(ctx, query, groupID)
}

// ClaimPending attaches every pending request in ids to groupID in one statement.
func (r *RideRequestRepository) ClaimPending(ctx context.Context, ids []string, groupID string) (int, error) {
	query := `
		UPDATE ride_requests
		SET status = $1, grouped_ride_id = $2, updated_at = $3
		WHERE id = ANY($4) AND status = $5
	`
	result, err := r.q.ExecContext(ctx, query,
		domain.RequestStatusGrouped,
		groupID,
		time.Now().UTC(),
		pq.Array(ids),
		domain.RequestStatusPending,
	)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// TransitionStatus moves a request from one status to another.
func (r *RideRequestRepository) TransitionStatus(ctx context.Context, id string, from, to domain.RequestStatus) error {
	query := `UPDATE ride_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.q.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return err
	}
	if err := expectOne(result, repository.ErrStaleState); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return getErr
			}
		}
		return err
	}
	return nil
}

func (r *RideRequestRepository) list(ctx context.Context, query string, args ...any) ([]*domain.RideRequest, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RideRequest
	for rows.Next() {
		req, err := scanRideRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRideRequest(row rowScanner) (*domain.RideRequest, error) {
	var req domain.RideRequest
	var departure sql.NullTime
	var notes, groupID sql.NullString

	err := row.Scan(
		&req.ID,
		&req.RiderID,
		&req.SourceLat,
		&req.SourceLng,
		&req.SourceAddress,
		&req.DestinationLat,
		&req.DestinationLng,
		&req.DestinationAddress,
		&req.RequestedTime,
		&req.StationDropoff,
		&departure,
		&req.PassengerCount,
		&notes,
		&req.Status,
		&groupID,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if departure.Valid {
		req.DepartureTime = departure.Time
	}
	req.Notes = notes.String
	req.GroupedRideID = groupID.String

	return &req, nil
}
