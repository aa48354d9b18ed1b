package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// NotificationRepository is a PostgreSQL implementation of repository.NotificationRepository.
type NotificationRepository struct {
	q Querier
}

var _ repository.NotificationRepository = (*NotificationRepository)(nil)

const notificationColumns = `id, user_id, grouped_ride_id, ride_request_id, type, status,
	title, message, sent_at, responded_at`

// Create persists a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.GroupedRideID,
		nullString(n.RideRequestID),
		n.Type,
		n.Status,
		n.Title,
		n.Message,
		n.SentAt,
		nullTime(n.RespondedAt),
	)
	return err
}

// GetByID retrieves a notification by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// ListByUser retrieves a user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 ORDER BY sent_at DESC`
	return r.list(ctx, query, userID)
}

// ListByGroup retrieves every notification for a grouped ride.
func (r *NotificationRepository) ListByGroup(ctx context.Context, groupID string) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE grouped_ride_id = $1 ORDER BY sent_at ASC`
	return r.list(ctx, query, groupID)
}

// Respond resolves a pending notification exactly once.
func (r *NotificationRepository) Respond(ctx context.Context, id string, status domain.NotificationStatus, at time.Time) error {
	query := `UPDATE notifications SET status = $1, responded_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.q.ExecContext(ctx, query, status, at, id, domain.NotificationPending)
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

func (r *NotificationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	var requestID sql.NullString
	var responded sql.NullTime

	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.GroupedRideID,
		&requestID,
		&n.Type,
		&n.Status,
		&n.Title,
		&n.Message,
		&n.SentAt,
		&responded,
	)
	if err != nil {
		return nil, err
	}

	n.RideRequestID = requestID.String
	n.RespondedAt = responded.Time
	return &n, nil
}
