package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// DriverService handles the operator-managed driver registry.
type DriverService struct {
	drivers repository.DriverRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewDriverService creates a new DriverService.
func NewDriverService(drivers repository.DriverRepository, logger *slog.Logger) *DriverService {
	return &DriverService{
		drivers: drivers,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterDriverRequest contains the parameters for registering a driver.
type RegisterDriverRequest struct {
	Name   string
	Phone  string
	UserID string // auth subject the driver signs in with
}

// Register adds an active driver.
func (s *DriverService) Register(ctx context.Context, p domain.Principal, req RegisterDriverRequest) (*domain.Driver, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	name, phone := strings.TrimSpace(req.Name), strings.TrimSpace(req.Phone)
	userID := strings.TrimSpace(req.UserID)
	if name == "" || phone == "" || userID == "" {
		return nil, ErrInvalidDriverDetails
	}

	driver := &domain.Driver{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Phone:     phone,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.drivers.Create(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDriverAlreadyRegistered
		}
		return nil, err
	}

	s.logger.Info("driver registered", "driver_id", driver.ID, "user_id", driver.UserID)
	return driver, nil
}

// List returns every registered driver.
func (s *DriverService) List(ctx context.Context, p domain.Principal) ([]*domain.Driver, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	return s.drivers.GetAll(ctx)
}

// SetActive toggles whether the driver can be assigned new groups.
// Groups already assigned are unaffected.
func (s *DriverService) SetActive(ctx context.Context, p domain.Principal, driverID string, active bool) (*domain.Driver, error) {
	if err := requireOperator(p); err != nil {
		return nil, err
	}
	if err := s.drivers.SetActive(ctx, driverID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	driver, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("driver availability changed", "driver_id", driverID, "active", active)
	return driver, nil
}
