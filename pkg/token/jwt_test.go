package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePairRoundTrip(t *testing.T) {
	svc := NewJwtService("test-secret")
	userID := uuid.New()

	pair, err := svc.GeneratePair(userID, "aal2", []string{"analyst"})
	require.NoError(t, err)

	access, err := svc.ParseToken(pair.AccessToken.Token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, access.TokenType)
	assert.Equal(t, "aal2", access.Aal)
	assert.Equal(t, []string{"analyst"}, access.Roles)

	gotID, err := access.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)

	refresh, err := svc.ParseToken(pair.RefreshToken.Token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.TokenType)
	assert.NotEqual(t, access.ID, refresh.ID, "each token carries its own jti")
}

func TestParseTokenRejections(t *testing.T) {
	svc := NewJwtService("test-secret")
	userID := uuid.New()

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJwtService("other-secret")
		pair, err := other.GeneratePair(userID, "aal1", nil)
		require.NoError(t, err)

		_, err = svc.ParseToken(pair.AccessToken.Token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJwtService("test-secret", WithIssuer("someone-else"))
		pair, err := other.GeneratePair(userID, "aal1", nil)
		require.NoError(t, err)

		_, err = svc.ParseToken(pair.AccessToken.Token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewJwtService("test-secret", WithAccessTokenExpiry(-time.Minute))
		val, err := expired.GenerateToken(TokenTypeAccess, userID, "aal1", nil, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ParseToken(val.Token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ParseToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestExpiryConfiguration(t *testing.T) {
	svc := NewJwtService("test-secret",
		WithAccessTokenExpiry(time.Minute),
		WithRefreshTokenExpiry(2*time.Hour),
	)

	pair, err := svc.GeneratePair(uuid.New(), "aal1", nil)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(time.Minute), pair.AccessToken.Expiry, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), pair.RefreshToken.Expiry, 5*time.Second)
}
