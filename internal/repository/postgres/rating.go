package postgres

import (
	"context"
	"database/sql"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// RatingRepository is a PostgreSQL implementation of repository.RatingRepository.
type RatingRepository struct {
	q Querier
}

var _ repository.RatingRepository = (*RatingRepository)(nil)

// Create persists a rating; (grouped_ride_id, rater_id) is unique.
func (r *RatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	query := `
		INSERT INTO ratings (id, grouped_ride_id, rater_id, driver_id, stars, comment, testimonial, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.ExecContext(ctx, query,
		rating.ID,
		rating.GroupedRideID,
		rating.RaterID,
		rating.DriverID,
		rating.Stars,
		nullString(rating.Comment),
		rating.Testimonial,
		rating.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// ListByGroup retrieves the ratings left for a grouped ride.
func (r *RatingRepository) ListByGroup(ctx context.Context, groupID string) ([]*domain.Rating, error) {
	query := `
		SELECT id, grouped_ride_id, rater_id, driver_id, stars, comment, testimonial, created_at
		FROM ratings WHERE grouped_ride_id = $1 ORDER BY created_at ASC
	`
	rows, err := r.q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Rating
	for rows.Next() {
		var rt domain.Rating
		var comment sql.NullString
		if err := rows.Scan(
			&rt.ID,
			&rt.GroupedRideID,
			&rt.RaterID,
			&rt.DriverID,
			&rt.Stars,
			&comment,
			&rt.Testimonial,
			&rt.CreatedAt,
		); err != nil {
			return nil, err
		}
		rt.Comment = comment.String
		out = append(out, &rt)
	}
	return out, rows.Err()
}
