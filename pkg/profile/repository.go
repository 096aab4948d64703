package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no profile row exists for a user. Callers
// treat a missing profile as a regular, non-admin account.
var ErrNotFound = errors.New("profile not found")

// Profile is the application profile row kept alongside the provider-owned
// user record.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertParams are the inputs to Upsert.
type UpsertParams struct {
	UserID  uuid.UUID
	Email   string
	IsAdmin bool
}

// Repository is the storage contract for profiles.
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (Profile, error)
	Upsert(ctx context.Context, params UpsertParams) error
	Delete(ctx context.Context, userID uuid.UUID) error
}
