package token

import (
	"time"
)

// Token name constants, also used as cookie names.
const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"
	MagicTokenName   = "magic_token"
)

// Token type claim values.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeMagic   = "magic"
)

// Default token expiry durations
const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 24 * time.Hour
	DefaultMagicTokenExpiry   = 6 * time.Hour
)

// Value is a signed token together with its expiry.
type Value struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// Pair is an access/refresh token pair issued for one session.
type Pair struct {
	AccessToken  Value `json:"access_token"`
	RefreshToken Value `json:"refresh_token"`
}
