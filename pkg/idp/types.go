package idp

import (
	"errors"

	"github.com/google/uuid"
)

// Assurance level values reported by the identity provider. aal1 means the
// session holder has presented a first factor only, aal2 that a verified
// second factor has also been satisfied.
const (
	AssuranceLevelFirst  = "aal1"
	AssuranceLevelSecond = "aal2"
)

// Factor status values.
const (
	FactorStatusVerified   = "verified"
	FactorStatusUnverified = "unverified"
)

// Factor type values. Only TOTP is consulted by the guards.
const (
	FactorTypeTOTP = "totp"
)

// SignOutScope selects how broadly a sign-out applies.
type SignOutScope string

const (
	SignOutLocal  SignOutScope = "local"
	SignOutGlobal SignOutScope = "global"
)

var (
	ErrNoSession        = errors.New("no authenticated session")
	ErrInvalidCode      = errors.New("invalid or expired passcode")
	ErrChallengeExpired = errors.New("challenge not found or expired")
	ErrFactorNotFound   = errors.New("factor not found")
	ErrTooManyAttempts  = errors.New("too many verification attempts")
)

// Session is the provider's view of an authenticated session.
type Session struct {
	UserID         uuid.UUID `json:"user_id"`
	Email          string    `json:"email,omitempty"`
	AssuranceLevel string    `json:"assurance_level"`
}

// SecondFactor is an enrolled second-factor method.
type SecondFactor struct {
	ID     uuid.UUID `json:"id"`
	Type   string    `json:"type"`
	Status string    `json:"status"`
}

// Verified reports whether the factor has completed enrollment.
func (f SecondFactor) Verified() bool {
	return f.Status == FactorStatusVerified
}

// Challenge is an open verification challenge for one factor.
type Challenge struct {
	ID       uuid.UUID `json:"id"`
	FactorID uuid.UUID `json:"factor_id"`
}

// TokenPair carries the provider-issued session tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// VerifyChallengeParams are the inputs to Client.VerifyChallenge.
type VerifyChallengeParams struct {
	FactorID    uuid.UUID `json:"factor_id"`
	ChallengeID uuid.UUID `json:"challenge_id"`
	Code        string    `json:"code"`
}
