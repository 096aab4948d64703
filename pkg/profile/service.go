package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Service reads and maintains application profiles.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the profile for a user.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Profile, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// IsAdmin reports whether the user holds the admin attribute. A missing
// profile row reads as not-admin; storage failures are returned so callers
// can fail closed.
func (s *Service) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check admin attribute: %w", err)
	}
	return p.IsAdmin, nil
}

// Upsert creates or updates a profile.
func (s *Service) Upsert(ctx context.Context, params UpsertParams) error {
	if err := s.repo.Upsert(ctx, params); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
