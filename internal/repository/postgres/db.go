package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gotogether/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier          = (*sql.DB)(nil)
	_ Querier          = (*sql.Tx)(nil)
	_ repository.Store = (*Store)(nil)
)

// Store is the PostgreSQL implementation of repository.Store.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repositories returns repositories that run directly against the pool.
func (s *Store) Repositories() repository.Repositories {
	return bind(s.db)
}

// WithinTx runs fn inside a single transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, bind(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func bind(q Querier) repository.Repositories {
	return repository.Repositories{
		Requests:      &RideRequestRepository{q: q},
		Groups:        &GroupedRideRepository{q: q},
		Notifications: &NotificationRepository{q: q},
		Chat:          &ChatRepository{q: q},
		Drivers:       &DriverRepository{q: q},
		Ratings:       &RatingRepository{q: q},
	}
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// expectOne converts a zero-row update into the given error.
func expectOne(result sql.Result, none error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}
