// Package sessionbridge is the typed channel components use to pass
// short-lived auth state across redirects and page reloads: the
// "just passed second factor" flag consumed by the route guards, and the
// mobile bridging context carried across the identity provider's redirect.
// Components never touch storage keys directly; the contract lives in this
// service.
package sessionbridge

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoBridge is returned when no bridging context is stored for a key.
// Callers treat this as "ordinary login", not a failure.
var ErrNoBridge = errors.New("no mobile bridge context")

// BridgeContext connects a QR-initiated mobile flow across the identity
// provider redirect. It must never outlive a single authentication
// round trip.
type BridgeContext struct {
	ScanSessionID string `json:"scan_session_id"`
	AuthToken     string `json:"auth_token"`
}

// DefaultBridgeTTL bounds how long a bridging context may wait for the
// provider redirect to come back.
const DefaultBridgeTTL = 10 * time.Minute

// Service is the session bridge. Keys identify one browser/device context;
// two devices never observe each other's flags.
type Service struct {
	repo      Repository
	bridgeTTL time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBridgeTTL overrides the bridging context lifetime.
func WithBridgeTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.bridgeTTL = ttl }
}

func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, bridgeTTL: DefaultBridgeTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMFAPassed records that a second-factor check just succeeded for this
// device context.
func (s *Service) SetMFAPassed(ctx context.Context, key string) error {
	if err := s.repo.SetFlag(ctx, key); err != nil {
		return fmt.Errorf("failed to set mfa flag: %w", err)
	}
	return nil
}

// MFAPassed reports whether the just-passed flag is set. Storage errors read
// as "not set".
func (s *Service) MFAPassed(ctx context.Context, key string) bool {
	ok, err := s.repo.GetFlag(ctx, key)
	if err != nil {
		return false
	}
	return ok
}

// ClearMFAPassed removes the just-passed flag.
func (s *Service) ClearMFAPassed(ctx context.Context, key string) error {
	return s.repo.DeleteFlag(ctx, key)
}

// SetMobileBridge stores a bridging context for the bounded TTL.
func (s *Service) SetMobileBridge(ctx context.Context, key string, bctx BridgeContext) error {
	if bctx.ScanSessionID == "" || bctx.AuthToken == "" {
		return fmt.Errorf("bridge context requires scan session id and auth token")
	}
	if err := s.repo.SetBridge(ctx, key, bctx, s.bridgeTTL); err != nil {
		return fmt.Errorf("failed to store bridge context: %w", err)
	}
	return nil
}

// TakeMobileBridge consumes and deletes the stored bridging context.
// Returns ErrNoBridge when none is stored.
func (s *Service) TakeMobileBridge(ctx context.Context, key string) (*BridgeContext, error) {
	bctx, err := s.repo.GetBridge(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteBridge(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to consume bridge context: %w", err)
	}
	return bctx, nil
}

// PeekMobileBridge reports whether a bridging context is stored without
// consuming it.
func (s *Service) PeekMobileBridge(ctx context.Context, key string) bool {
	_, err := s.repo.GetBridge(ctx, key)
	return err == nil
}

// ClearMobileBridge discards the stored bridging context, if any.
func (s *Service) ClearMobileBridge(ctx context.Context, key string) error {
	return s.repo.DeleteBridge(ctx, key)
}

// ClearAll wipes everything stored for a device context. Called on sign-out
// so a later user never inherits another user's flags.
func (s *Service) ClearAll(ctx context.Context, key string) error {
	if err := s.repo.DeleteFlag(ctx, key); err != nil {
		return err
	}
	return s.repo.DeleteBridge(ctx, key)
}
