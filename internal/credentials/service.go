package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"verify-backend/internal/shared/telemetry"
)

// DefaultValidity is the validity window granted on verification approval.
const DefaultValidity = 365 * 24 * time.Hour

// Service manages credential mappings.
type Service struct {
	Repo Repo
}

// RecordCredential stores a time-bounded mapping for the user.
func (s *Service) RecordCredential(ctx context.Context, userID, institutionName string, validFrom, validUntil time.Time) (Mapping, error) {
	if userID == "" || institutionName == "" {
		return Mapping{}, errors.New("userID and institutionName are required")
	}
	if !validUntil.After(validFrom) {
		return Mapping{}, errors.New("validUntil must be after validFrom")
	}
	m := Mapping{
		ID:              uuid.NewString(),
		UserID:          userID,
		InstitutionName: institutionName,
		ValidFrom:       validFrom,
		ValidUntil:      validUntil,
		Status:          StatusActive,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, m); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// ActiveForUser returns the user's current mappings.
func (s *Service) ActiveForUser(ctx context.Context, userID string) ([]Mapping, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ActiveForUser(ctx, userID, time.Now().UTC())
}

// ExpireDue runs one idempotent expiry sweep and logs the outcome.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.Repo.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		telemetry.Info("credentials.expired", map[string]any{"count": expired})
	}
	return expired, nil
}
