package idp

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlzd/gotp"

	"github.com/contractanalyser/authbridge/pkg/notification"
	"github.com/contractanalyser/authbridge/pkg/ratelimit"
	"github.com/contractanalyser/authbridge/pkg/token"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notification.Notice
}

func (n *recordingNotifier) Send(ctx context.Context, notice notification.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

func newProvider(t *testing.T, opts ...LocalOption) (*LocalProvider, *token.JwtService) {
	t.Helper()
	tokens := token.NewJwtService("test-secret")
	return NewLocalProvider(tokens, opts...), tokens
}

func createUser(t *testing.T, p *LocalProvider, email string) uuid.UUID {
	t.Helper()
	id, err := p.CreateUser(context.Background(), CreateUserParams{Email: email, Password: "hunter2!"})
	require.NoError(t, err)
	return id
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	p, tokens := newProvider(t)
	userID := createUser(t, p, "alice@example.com")

	t.Run("valid credentials mint an aal1 pair", func(t *testing.T) {
		pair, err := p.SignIn(ctx, "Alice@Example.com ", "hunter2!")
		require.NoError(t, err)

		claims, err := tokens.ParseToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, AssuranceLevelFirst, claims.Aal)
		assert.Equal(t, userID.String(), claims.Subject)

		session, err := p.Session(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", session.Email)
		assert.Equal(t, AssuranceLevelFirst, session.AssuranceLevel)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := p.SignIn(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := p.SignIn(ctx, "nobody@example.com", "hunter2!")
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestTOTPEnrollmentAndVerification(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	p, tokens := newProvider(t, WithNotifier(notifier))
	userID := createUser(t, p, "bob@example.com")

	enrollment, err := p.EnrollFactor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, FactorStatusUnverified, enrollment.Factor.Status)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")

	factors, err := p.ListFactors(ctx, userID)
	require.NoError(t, err)
	require.Len(t, factors, 1)
	assert.False(t, factors[0].Verified())

	ch, err := p.CreateChallenge(ctx, enrollment.Factor.ID)
	require.NoError(t, err)

	code := gotp.NewDefaultTOTP(enrollment.Secret).Now()
	pair, err := p.VerifyChallenge(ctx, VerifyChallengeParams{
		FactorID:    enrollment.Factor.ID,
		ChallengeID: ch.ID,
		Code:        code,
	})
	require.NoError(t, err)

	claims, err := tokens.ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, AssuranceLevelSecond, claims.Aal)

	// First successful verification completes enrollment.
	factors, err = p.ListFactors(ctx, userID)
	require.NoError(t, err)
	require.Len(t, factors, 1)
	assert.True(t, factors[0].Verified())

	assert.Equal(t, 1, notifier.count())
}

func TestVerifyChallengeRejectsBadCode(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)
	userID := createUser(t, p, "carol@example.com")

	enrollment, err := p.EnrollFactor(ctx, userID)
	require.NoError(t, err)

	ch, err := p.CreateChallenge(ctx, enrollment.Factor.ID)
	require.NoError(t, err)

	_, err = p.VerifyChallenge(ctx, VerifyChallengeParams{
		FactorID:    enrollment.Factor.ID,
		ChallengeID: ch.ID,
		Code:        "000000",
	})
	assert.ErrorIs(t, err, ErrInvalidCode)

	// A challenge is single use.
	_, err = p.VerifyChallenge(ctx, VerifyChallengeParams{
		FactorID:    enrollment.Factor.ID,
		ChallengeID: ch.ID,
		Code:        "000000",
	})
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestVerifyChallengeRateLimit(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t, WithVerifyLimiter(ratelimit.NewKeyedLimiter(2, 0)))
	userID := createUser(t, p, "dave@example.com")

	enrollment, err := p.EnrollFactor(ctx, userID)
	require.NoError(t, err)

	verify := func() error {
		ch, err := p.CreateChallenge(ctx, enrollment.Factor.ID)
		require.NoError(t, err)
		_, err = p.VerifyChallenge(ctx, VerifyChallengeParams{
			FactorID:    enrollment.Factor.ID,
			ChallengeID: ch.ID,
			Code:        "000000",
		})
		return err
	}

	assert.ErrorIs(t, verify(), ErrInvalidCode)
	assert.ErrorIs(t, verify(), ErrInvalidCode)
	assert.ErrorIs(t, verify(), ErrTooManyAttempts)
}

func TestRefreshSessionIsSingleUse(t *testing.T) {
	ctx := context.Background()
	p, tokens := newProvider(t)
	createUser(t, p, "erin@example.com")

	pair, err := p.SignIn(ctx, "erin@example.com", "hunter2!")
	require.NoError(t, err)

	fresh, err := p.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)

	// Assurance level survives the refresh.
	claims, err := tokens.ParseToken(fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, AssuranceLevelFirst, claims.Aal)

	_, err = p.RefreshSession(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("local scope revokes only the current session", func(t *testing.T) {
		p, _ := newProvider(t)
		createUser(t, p, "frank@example.com")

		first, err := p.SignIn(ctx, "frank@example.com", "hunter2!")
		require.NoError(t, err)
		second, err := p.SignIn(ctx, "frank@example.com", "hunter2!")
		require.NoError(t, err)

		require.NoError(t, p.SignOut(ctx, first.AccessToken, SignOutLocal))

		_, err = p.Session(ctx, first.AccessToken)
		assert.ErrorIs(t, err, ErrNoSession)
		_, err = p.Session(ctx, second.AccessToken)
		assert.NoError(t, err)
	})

	t.Run("global scope revokes every session", func(t *testing.T) {
		p, _ := newProvider(t)
		createUser(t, p, "grace@example.com")

		first, err := p.SignIn(ctx, "grace@example.com", "hunter2!")
		require.NoError(t, err)
		second, err := p.SignIn(ctx, "grace@example.com", "hunter2!")
		require.NoError(t, err)

		require.NoError(t, p.SignOut(ctx, first.AccessToken, SignOutGlobal))

		_, err = p.Session(ctx, first.AccessToken)
		assert.ErrorIs(t, err, ErrNoSession)
		_, err = p.Session(ctx, second.AccessToken)
		assert.ErrorIs(t, err, ErrNoSession)
		_, err = p.RefreshSession(ctx, second.RefreshToken)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestIssueMagicLink(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)
	userID := createUser(t, p, "heidi@example.com")

	link, err := p.IssueMagicLink(ctx, userID, "https://app.example.com/")
	require.NoError(t, err)

	// Tokens ride in the fragment, mirroring how hosted provider magic
	// links land on whatever device opens them.
	require.Contains(t, link, "#")
	assert.Contains(t, link, token.AccessTokenName+"=")
	assert.Contains(t, link, token.RefreshTokenName+"=")

	_, err = p.IssueMagicLink(ctx, uuid.New(), "https://app.example.com/")
	assert.Error(t, err)
}

func TestInstallSession(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t)
	userID := createUser(t, p, "ivan@example.com")

	pair, err := p.SignIn(ctx, "ivan@example.com", "hunter2!")
	require.NoError(t, err)

	session, err := p.InstallSession(ctx, pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)

	_, err = p.InstallSession(ctx, pair.AccessToken, "garbage")
	assert.ErrorIs(t, err, ErrNoSession)
}
