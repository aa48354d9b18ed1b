package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `INSERT INTO drivers (id, user_id, name, phone, active, assigned_rides, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.UserID,
		driver.Name,
		driver.Phone,
		driver.Active,
		driver.AssignedRides,
		driver.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT id, user_id, name, COALESCE(phone, ''), active, assigned_rides, created_at FROM drivers WHERE id = $1`

	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&driver.ID,
		&driver.UserID,
		&driver.Name,
		&driver.Phone,
		&driver.Active,
		&driver.AssignedRides,
		&driver.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	query := `SELECT id, user_id, name, COALESCE(phone, ''), active, assigned_rides, created_at FROM drivers ORDER BY name`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		var d domain.Driver
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Phone, &d.Active, &d.AssignedRides, &d.CreatedAt); err != nil {
			return nil, err
		}
		drivers = append(drivers, &d)
	}
	return drivers, rows.Err()
}

// SetActive toggles whether the driver can receive new groups.
func (r *DriverRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	return expectOne(result, repository.ErrNotFound)
}

// IncrementAssigned bumps the driver's assigned ride counter.
func (r *DriverRepository) IncrementAssigned(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET assigned_rides = assigned_rides + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(result, repository.ErrNotFound)
}
