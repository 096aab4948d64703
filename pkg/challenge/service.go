// Package challenge implements the second-factor challenge flow: collect a
// one-time code, exchange it through the provider's challenge/verify
// primitives, and mark the device context as upgraded for the route guards.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/contractanalyser/authbridge/pkg/assurance"
	"github.com/contractanalyser/authbridge/pkg/idp"
	"github.com/contractanalyser/authbridge/pkg/sessionbridge"
)

// ErrNoFactor means the user has no verified second factor and should never
// have reached the challenge flow; callers route onward instead of trapping
// the user here.
var ErrNoFactor = errors.New("no verified second factor enrolled")

// ErrBadCode rejects passcodes that are not six digits before the provider
// is consulted.
var ErrBadCode = errors.New("passcode must be six digits")

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Service drives the challenge flow against the provider.
type Service struct {
	client idp.Client
	bridge *sessionbridge.Service
}

func NewService(client idp.Client, bridge *sessionbridge.Service) *Service {
	return &Service{client: client, bridge: bridge}
}

// State describes what the challenge page should do on load.
type State struct {
	// Session is the current first-factor session.
	Session *idp.Session
	// Factor is the TOTP factor the flow will verify against; unset when
	// NoFactor.
	Factor idp.SecondFactor
	// NoFactor means the user has nothing to verify and should be routed
	// onward.
	NoFactor bool
}

// Begin resolves the session and selects the factor to challenge.
// Returns idp.ErrNoSession when no first-factor session exists.
func (s *Service) Begin(ctx context.Context, accessToken string) (*State, error) {
	session, err := s.client.Session(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	factors, err := s.client.ListFactors(ctx, session.UserID)
	if err != nil {
		// The guards fail open on this call; the challenge page mirrors
		// that by routing onward rather than blocking the user.
		slog.Error("factor listing failed on challenge page", "user", session.UserID, "err", err)
		return &State{Session: session, NoFactor: true}, nil
	}

	factor, ok := assurance.FirstVerifiedTOTP(factors)
	if !ok {
		return &State{Session: session, NoFactor: true}, nil
	}
	return &State{Session: session, Factor: factor}, nil
}

// Verify exchanges a six-digit code for an upgraded session. On success the
// session is refreshed so the new assurance level is immediately visible to
// any guard racing the token rollover, and the just-passed flag is set for
// the device context.
func (s *Service) Verify(ctx context.Context, accessToken, deviceKey, code string) (*idp.TokenPair, error) {
	if !codePattern.MatchString(code) {
		return nil, ErrBadCode
	}

	state, err := s.Begin(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if state.NoFactor {
		return nil, ErrNoFactor
	}

	ch, err := s.client.CreateChallenge(ctx, state.Factor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	pair, err := s.client.VerifyChallenge(ctx, idp.VerifyChallengeParams{
		FactorID:    state.Factor.ID,
		ChallengeID: ch.ID,
		Code:        code,
	})
	if err != nil {
		return nil, err
	}

	refreshed, err := s.client.RefreshSession(ctx, pair.RefreshToken)
	if err != nil {
		// The verify already upgraded the session; a failed refresh is not
		// worth failing the whole flow over.
		slog.Warn("session refresh after verification failed", "user", state.Session.UserID, "err", err)
		refreshed = pair
	}

	if err := s.bridge.SetMFAPassed(ctx, deviceKey); err != nil {
		slog.Error("failed to set just-passed flag", "device", deviceKey, "err", err)
	}
	return refreshed, nil
}

// Logout signs the user out and clears every bridge entry for the device
// context, so a later user cannot inherit a passed check.
func (s *Service) Logout(ctx context.Context, accessToken, deviceKey string) error {
	if err := s.bridge.ClearAll(ctx, deviceKey); err != nil {
		slog.Warn("failed to clear bridge state on logout", "device", deviceKey, "err", err)
	}
	if accessToken == "" {
		return nil
	}
	if err := s.client.SignOut(ctx, accessToken, idp.SignOutLocal); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}
