// Package tokenexchange issues QR scan sessions and exchanges their one-time
// auth tokens for identity-provider magic links. The exchange is the server
// half of the cross-device handshake's first leg.
package tokenexchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// ErrTokenNotFound is returned when an auth token is unknown, expired, or
// already spent.
var ErrTokenNotFound = errors.New("auth token not found or already used")

// DefaultScanSessionTTL bounds how long a rendered QR code stays scannable.
const DefaultScanSessionTTL = 5 * time.Minute

// ScanSession links a QR code shown on one device to the user who requested
// it. AuthToken is single use.
type ScanSession struct {
	ID        string    `json:"scan_session_id"`
	UserID    uuid.UUID `json:"user_id"`
	AuthToken string    `json:"auth_token"`
	CreatedAt time.Time `json:"created_at"`
}

// MagicLinkIssuer mints a provider magic link establishing a session for a
// user. The local provider implements it directly; against a hosted
// provider it is an admin API call.
type MagicLinkIssuer interface {
	IssueMagicLink(ctx context.Context, userID uuid.UUID, redirectTo string) (string, error)
}

// Service owns the live scan sessions and performs exchanges.
type Service struct {
	issuer    MagicLinkIssuer
	appOrigin string
	sessions  *ttlcache.Cache[string, ScanSession] // keyed by auth token
	ttl       time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithScanSessionTTL overrides the scan session lifetime.
func WithScanSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.ttl = ttl }
}

func NewService(issuer MagicLinkIssuer, appOrigin string, opts ...ServiceOption) *Service {
	s := &Service{
		issuer:    issuer,
		appOrigin: appOrigin,
		ttl:       DefaultScanSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = ttlcache.New(
		ttlcache.WithTTL[string, ScanSession](s.ttl),
		ttlcache.WithDisableTouchOnHit[string, ScanSession](),
	)
	go s.sessions.Start()
	return s
}

// Close stops the expiry goroutine.
func (s *Service) Close() {
	s.sessions.Stop()
}

// IssueScanSession creates a scan session for a signed-in user and returns
// it along with the URL the QR code should encode.
func (s *Service) IssueScanSession(ctx context.Context, userID uuid.UUID) (*ScanSession, string, error) {
	session := ScanSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		AuthToken: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	s.sessions.Set(session.AuthToken, session, s.ttl)

	q := url.Values{}
	q.Set("scanSessionId", session.ID)
	q.Set("auth_token", session.AuthToken)
	scanURL := s.appOrigin + "/?" + q.Encode()
	return &session, scanURL, nil
}

// Exchange consumes a one-time auth token and returns a magic link that
// finishes authentication on the scanning device.
func (s *Service) Exchange(ctx context.Context, authToken, redirectTo string) (string, error) {
	item := s.sessions.Get(authToken)
	if item == nil {
		return "", ErrTokenNotFound
	}
	// Single use: spend the token before minting anything.
	s.sessions.Delete(authToken)

	session := item.Value()
	link, err := s.issuer.IssueMagicLink(ctx, session.UserID, redirectTo)
	if err != nil {
		return "", fmt.Errorf("failed to issue magic link: %w", err)
	}
	return link, nil
}
