package idp

import (
	"context"

	"github.com/google/uuid"
)

// Client is the contract this module holds against the external identity
// provider. Sessions, users and factor enrollments are owned by the provider;
// the module only reads and exchanges them.
type Client interface {
	// Session resolves an access token to its session. Returns ErrNoSession
	// for missing, expired or revoked tokens.
	Session(ctx context.Context, accessToken string) (*Session, error)

	// ListFactors returns the second-factor methods enrolled for a user,
	// verified or not. Callers filter on status.
	ListFactors(ctx context.Context, userID uuid.UUID) ([]SecondFactor, error)

	// CreateChallenge opens a verification challenge for a factor.
	CreateChallenge(ctx context.Context, factorID uuid.UUID) (*Challenge, error)

	// VerifyChallenge checks a one-time code against an open challenge. On
	// success the returned pair carries the upgraded assurance level.
	VerifyChallenge(ctx context.Context, params VerifyChallengeParams) (*TokenPair, error)

	// RefreshSession exchanges a refresh token for a fresh pair reflecting
	// the session's current assurance level.
	RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error)

	// InstallSession validates externally-obtained tokens and returns the
	// session they establish.
	InstallSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)

	// SignOut invalidates the session behind the access token. Global scope
	// invalidates every session of the same user.
	SignOut(ctx context.Context, accessToken string, scope SignOutScope) error
}
