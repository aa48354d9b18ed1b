package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// GroupedRideRepository is a PostgreSQL implementation of repository.GroupedRideRepository.
type GroupedRideRepository struct {
	q Querier
}

var _ repository.GroupedRideRepository = (*GroupedRideRepository)(nil)

const groupedRideColumns = `id, operator_id, driver_id, driver_user_id, destination_address, pickup_time,
	pickup_location, charged_price, actual_price, status, member_request_ids,
	cancel_reason, created_at, updated_at, started_at, completed_at, cancelled_at`

// Create persists a new grouped ride.
func (r *GroupedRideRepository) Create(ctx context.Context, g *domain.GroupedRide) error {
	query := `
		INSERT INTO grouped_rides (` + groupedRideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.q.ExecContext(ctx, query,
		g.ID,
		g.OperatorID,
		g.DriverID,
		g.DriverUserID,
		g.DestinationAddress,
		g.PickupTime,
		g.PickupLocation,
		g.ChargedPrice,
		g.ActualPrice,
		g.Status,
		pq.Array(g.MemberRequestIDs),
		nullString(g.CancelReason),
		g.CreatedAt,
		g.UpdatedAt,
		nullTime(g.StartedAt),
		nullTime(g.CompletedAt),
		nullTime(g.CancelledAt),
	)
	return err
}

// GetByID retrieves a grouped ride by ID.
func (r *GroupedRideRepository) GetByID(ctx context.Context, id string) (*domain.GroupedRide, error) {
	return r.get(ctx, `SELECT `+groupedRideColumns+` FROM grouped_rides WHERE id = $1`, id)
}

// GetForUpdate retrieves a grouped ride and locks its row until the transaction ends.
func (r *GroupedRideRepository) GetForUpdate(ctx context.Context, id string) (*domain.GroupedRide, error) {
	return r.get(ctx, `SELECT `+groupedRideColumns+` FROM grouped_rides WHERE id = $1 FOR UPDATE`, id)
}

// List retrieves grouped rides matching the filter, newest first.
func (r *GroupedRideRepository) List(ctx context.Context, f domain.GroupFilter) ([]*domain.GroupedRide, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.DriverUserID != "" {
		where = append(where, "driver_user_id = "+arg(f.DriverUserID))
	}
	if f.RiderID != "" {
		where = append(where, "id IN (SELECT grouped_ride_id FROM ride_requests WHERE rider_id = "+arg(f.RiderID)+")")
	}

	query := `SELECT ` + groupedRideColumns + ` FROM grouped_rides`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.GroupedRide
	for rows.Next() {
		g, err := scanGroupedRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// TransitionStatus moves a grouped ride between statuses.
func (r *GroupedRideRepository) TransitionStatus(ctx context.Context, id string, from, to domain.GroupStatus, at time.Time, reason string) error {
	stamp := ""
	switch to {
	case domain.GroupStatusInProgress:
		stamp = ", started_at = $5"
	case domain.GroupStatusCompleted:
		stamp = ", completed_at = $5"
	case domain.GroupStatusCancelled:
		stamp = ", cancelled_at = $5, cancel_reason = $6"
	}
	query := `UPDATE grouped_rides SET status = $1, updated_at = $2` + stamp + ` WHERE id = $3 AND status = $4`

	args := []any{to, at, id, from}
	if stamp != "" {
		args = append(args, at)
	}
	if to == domain.GroupStatusCancelled {
		args = append(args, nullString(reason))
	}

	result, err := r.q.ExecContext(ctx, query, args...)
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

// UpdatePricing replaces the per-seat prices.
func (r *GroupedRideRepository) UpdatePricing(ctx context.Context, id string, charged, actual float64) error {
	query := `UPDATE grouped_rides SET charged_price = $1, actual_price = $2, updated_at = $3 WHERE id = $4`
	result, err := r.q.ExecContext(ctx, query, charged, actual, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(result, repository.ErrNotFound)
}

// AssignDriver hands a grouped ride that has not finished to another driver.
func (r *GroupedRideRepository) AssignDriver(ctx context.Context, id, driverID, driverUserID string, at time.Time) error {
	query := `UPDATE grouped_rides SET driver_id = $1, driver_user_id = $2, updated_at = $3 WHERE id = $4 AND status NOT IN ($5, $6)`
	result, err := r.q.ExecContext(ctx, query, driverID, driverUserID, at, id,
		domain.GroupStatusCompleted, domain.GroupStatusCancelled)
	if err != nil {
		return err
	}
	if err := expectOne(result, repository.ErrStaleState); err != nil {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

func (r *GroupedRideRepository) get(ctx context.Context, query, id string) (*domain.GroupedRide, error) {
	g, err := scanGroupedRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

func scanGroupedRide(row rowScanner) (*domain.GroupedRide, error) {
	var g domain.GroupedRide
	var members pq.StringArray
	var reason sql.NullString
	var started, completed, cancelled sql.NullTime

	err := row.Scan(
		&g.ID,
		&g.OperatorID,
		&g.DriverID,
		&g.DriverUserID,
		&g.DestinationAddress,
		&g.PickupTime,
		&g.PickupLocation,
		&g.ChargedPrice,
		&g.ActualPrice,
		&g.Status,
		&members,
		&reason,
		&g.CreatedAt,
		&g.UpdatedAt,
		&started,
		&completed,
		&cancelled,
	)
	if err != nil {
		return nil, err
	}

	g.MemberRequestIDs = []string(members)
	g.CancelReason = reason.String
	g.StartedAt = started.Time
	g.CompletedAt = completed.Time
	g.CancelledAt = cancelled.Time

	return &g, nil
}
