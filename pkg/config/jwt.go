package config

import (
	"fmt"
	"time"

	"github.com/contractanalyser/authbridge/pkg/token"
)

// JWTConfig holds token signing and cookie settings. Expiries are Go
// duration strings ("15m", "24h").
type JWTConfig struct {
	Secret             string `env:"AB_JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer             string `env:"AB_JWT_ISSUER" env-default:"authbridge"`
	Audience           string `env:"AB_JWT_AUDIENCE" env-default:"authbridge"`
	AccessTokenExpiry  string `env:"AB_ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry string `env:"AB_REFRESH_TOKEN_EXPIRY" env-default:"24h"`
	CookieHttpOnly     bool   `env:"AB_COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure       bool   `env:"AB_COOKIE_SECURE" env-default:"false"`
}

// ParseAccessTokenExpiry parses the access token expiry duration.
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	d, err := time.ParseDuration(j.AccessTokenExpiry)
	if err != nil {
		return 0, fmt.Errorf("invalid access token expiry %q: %w", j.AccessTokenExpiry, err)
	}
	return d, nil
}

// ParseRefreshTokenExpiry parses the refresh token expiry duration.
func (j JWTConfig) ParseRefreshTokenExpiry() (time.Duration, error) {
	d, err := time.ParseDuration(j.RefreshTokenExpiry)
	if err != nil {
		return 0, fmt.Errorf("invalid refresh token expiry %q: %w", j.RefreshTokenExpiry, err)
	}
	return d, nil
}

// ToTokenService builds the token service from the config.
func (j JWTConfig) ToTokenService() (*token.JwtService, error) {
	access, err := j.ParseAccessTokenExpiry()
	if err != nil {
		return nil, err
	}
	refresh, err := j.ParseRefreshTokenExpiry()
	if err != nil {
		return nil, err
	}
	return token.NewJwtService(j.Secret,
		token.WithIssuer(j.Issuer),
		token.WithAudience(j.Audience),
		token.WithAccessTokenExpiry(access),
		token.WithRefreshTokenExpiry(refresh),
	), nil
}
