package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the application claims carried by every token this service
// mints. Aal mirrors the identity provider's authenticator assurance level:
// "aal1" after the first factor, "aal2" after a verified second factor.
type Claims struct {
	jwt.RegisteredClaims
	Aal       string   `json:"aal"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"token_type"`
}

// UserID parses the subject claim as a user UUID.
func (c Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Service mints and parses the session tokens used across the module.
type Service interface {
	GenerateToken(tokenType string, userID uuid.UUID, aal string, roles []string, expiry time.Duration) (Value, error)
	GeneratePair(userID uuid.UUID, aal string, roles []string) (Pair, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// JwtService is an HS256 implementation of Service.
type JwtService struct {
	secret   []byte
	issuer   string
	audience string

	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// Option configures a JwtService.
type Option func(*JwtService)

// WithIssuer sets the iss claim.
func WithIssuer(issuer string) Option {
	return func(s *JwtService) { s.issuer = issuer }
}

// WithAudience sets the aud claim.
func WithAudience(audience string) Option {
	return func(s *JwtService) { s.audience = audience }
}

// WithAccessTokenExpiry sets the access token expiry duration.
func WithAccessTokenExpiry(expiry time.Duration) Option {
	return func(s *JwtService) { s.AccessTokenExpiry = expiry }
}

// WithRefreshTokenExpiry sets the refresh token expiry duration.
func WithRefreshTokenExpiry(expiry time.Duration) Option {
	return func(s *JwtService) { s.RefreshTokenExpiry = expiry }
}

// NewJwtService creates a token service signing with the given HS256 secret.
func NewJwtService(secret string, opts ...Option) *JwtService {
	s := &JwtService{
		secret:             []byte(secret),
		issuer:             "authbridge",
		audience:           "authbridge",
		AccessTokenExpiry:  DefaultAccessTokenExpiry,
		RefreshTokenExpiry: DefaultRefreshTokenExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JwtService) GenerateToken(tokenType string, userID uuid.UUID, aal string, roles []string, expiry time.Duration) (Value, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(expiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Aal:       aal,
		Roles:     roles,
		TokenType: tokenType,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return Value{}, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return Value{Token: signed, Expiry: expiresAt}, nil
}

// GeneratePair mints a matching access/refresh token pair at the given
// assurance level.
func (s *JwtService) GeneratePair(userID uuid.UUID, aal string, roles []string) (Pair, error) {
	access, err := s.GenerateToken(TokenTypeAccess, userID, aal, roles, s.AccessTokenExpiry)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.GenerateToken(TokenTypeRefresh, userID, aal, roles, s.RefreshTokenExpiry)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *JwtService) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
