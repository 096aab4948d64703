package idp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/xlzd/gotp"
	"golang.org/x/crypto/bcrypt"

	"github.com/contractanalyser/authbridge/pkg/notification"
	"github.com/contractanalyser/authbridge/pkg/ratelimit"
	"github.com/contractanalyser/authbridge/pkg/token"
)

const (
	totpIssuer          = "ContractAnalyser"
	totpPeriod          = 30
	totpSkew            = 1
	defaultChallengeTTL = 5 * time.Minute
)

type account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash []byte
	Roles        []string
}

type factorRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      string
	Status    string
	Secret    string
	CreatedAt time.Time
}

type challengeRecord struct {
	ID        uuid.UUID
	FactorID  uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// LocalProvider is an in-process identity provider used for development and
// tests. It implements the same Client contract the hosted provider is
// accessed through: bcrypt first factor, TOTP second factor, HS256 session
// tokens carrying the assurance level.
type LocalProvider struct {
	tokens   token.Service
	notifier notification.Notifier
	limiter  *ratelimit.KeyedLimiter

	challengeTTL time.Duration

	mu            sync.RWMutex
	accounts      map[uuid.UUID]*account
	accountsEmail map[string]uuid.UUID
	factors       map[uuid.UUID]*factorRecord
	challenges    map[uuid.UUID]challengeRecord
	revokedJTI    map[string]struct{}
	signOutCutoff map[uuid.UUID]time.Time
}

// LocalOption configures a LocalProvider.
type LocalOption func(*LocalProvider)

// WithNotifier sets the notifier used for security notices.
func WithNotifier(n notification.Notifier) LocalOption {
	return func(p *LocalProvider) { p.notifier = n }
}

// WithVerifyLimiter sets the per-login rate limiter for passcode
// verification attempts.
func WithVerifyLimiter(l *ratelimit.KeyedLimiter) LocalOption {
	return func(p *LocalProvider) { p.limiter = l }
}

// WithChallengeTTL sets how long an open challenge stays answerable.
func WithChallengeTTL(ttl time.Duration) LocalOption {
	return func(p *LocalProvider) { p.challengeTTL = ttl }
}

func NewLocalProvider(tokens token.Service, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		tokens:        tokens,
		notifier:      notification.NoopNotifier{},
		limiter:       ratelimit.NewKeyedLimiter(5, 0.5),
		challengeTTL:  defaultChallengeTTL,
		accounts:      make(map[uuid.UUID]*account),
		accountsEmail: make(map[string]uuid.UUID),
		factors:       make(map[uuid.UUID]*factorRecord),
		challenges:    make(map[uuid.UUID]challengeRecord),
		revokedJTI:    make(map[string]struct{}),
		signOutCutoff: make(map[uuid.UUID]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateUserParams are the inputs to CreateUser.
type CreateUserParams struct {
	Email    string
	Password string
	Roles    []string
}

// CreateUser registers an account and returns its user ID.
func (p *LocalProvider) CreateUser(ctx context.Context, params CreateUserParams) (uuid.UUID, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return uuid.Nil, fmt.Errorf("email is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accountsEmail[email]; exists {
		return uuid.Nil, fmt.Errorf("account already exists for %s", email)
	}

	acct := &account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Roles:        params.Roles,
	}
	p.accounts[acct.ID] = acct
	p.accountsEmail[email] = acct.ID
	return acct.ID, nil
}

// SignIn performs first-factor authentication and returns an aal1 pair.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {
	p.mu.RLock()
	id, ok := p.accountsEmail[strings.ToLower(strings.TrimSpace(email))]
	var acct *account
	if ok {
		acct = p.accounts[id]
	}
	p.mu.RUnlock()

	if acct == nil {
		// Burn a comparison anyway so unknown emails take as long as bad
		// passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return nil, ErrNoSession
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return nil, ErrNoSession
	}
	return p.mintPair(acct, AssuranceLevelFirst)
}

// FactorEnrollment is returned by EnrollFactor; Secret and ProvisioningURI
// are shown once so the user can seed an authenticator app.
type FactorEnrollment struct {
	Factor          SecondFactor
	Secret          string
	ProvisioningURI string
}

// EnrollFactor creates an unverified TOTP factor for a user. The factor
// becomes verified on the first successful challenge verification.
func (p *LocalProvider) EnrollFactor(ctx context.Context, userID uuid.UUID) (*FactorEnrollment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("unknown user %s", userID)
	}

	secret := gotp.RandomSecret(32)
	rec := &factorRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      FactorTypeTOTP,
		Status:    FactorStatusUnverified,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	p.factors[rec.ID] = rec

	uri := gotp.NewDefaultTOTP(secret).ProvisioningUri(acct.Email, totpIssuer)
	return &FactorEnrollment{
		Factor:          SecondFactor{ID: rec.ID, Type: rec.Type, Status: rec.Status},
		Secret:          secret,
		ProvisioningURI: uri,
	}, nil
}

func (p *LocalProvider) Session(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := p.validToken(accessToken, token.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrNoSession
	}

	p.mu.RLock()
	acct := p.accounts[userID]
	p.mu.RUnlock()
	if acct == nil {
		return nil, ErrNoSession
	}

	return &Session{
		UserID:         userID,
		Email:          acct.Email,
		AssuranceLevel: claims.Aal,
	}, nil
}

func (p *LocalProvider) ListFactors(ctx context.Context, userID uuid.UUID) ([]SecondFactor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []SecondFactor
	for _, rec := range p.factors {
		if rec.UserID == userID {
			out = append(out, SecondFactor{ID: rec.ID, Type: rec.Type, Status: rec.Status})
		}
	}
	return out, nil
}

func (p *LocalProvider) CreateChallenge(ctx context.Context, factorID uuid.UUID) (*Challenge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.factors[factorID]
	if !ok {
		return nil, ErrFactorNotFound
	}

	ch := challengeRecord{
		ID:        uuid.New(),
		FactorID:  factorID,
		UserID:    rec.UserID,
		ExpiresAt: time.Now().Add(p.challengeTTL),
	}
	p.challenges[ch.ID] = ch
	return &Challenge{ID: ch.ID, FactorID: factorID}, nil
}

func (p *LocalProvider) VerifyChallenge(ctx context.Context, params VerifyChallengeParams) (*TokenPair, error) {
	p.mu.Lock()
	ch, ok := p.challenges[params.ChallengeID]
	if ok {
		delete(p.challenges, params.ChallengeID)
	}
	rec := p.factors[params.FactorID]
	p.mu.Unlock()

	if !ok || ch.FactorID != params.FactorID || time.Now().After(ch.ExpiresAt) {
		return nil, ErrChallengeExpired
	}
	if rec == nil {
		return nil, ErrFactorNotFound
	}
	if !p.limiter.Allow(ch.UserID.String()) {
		return nil, ErrTooManyAttempts
	}

	valid, err := totp.ValidateCustom(params.Code, rec.Secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return nil, ErrInvalidCode
	}

	p.mu.Lock()
	if rec.Status != FactorStatusVerified {
		rec.Status = FactorStatusVerified
	}
	acct := p.accounts[ch.UserID]
	p.mu.Unlock()
	if acct == nil {
		return nil, ErrNoSession
	}

	p.limiter.Reset(ch.UserID.String())

	if err := p.notifier.Send(ctx, notification.Notice{
		Type:    notification.NoticeSecondFactorVerified,
		To:      acct.Email,
		Subject: "Second factor verified",
		Body:    "A second-factor verification succeeded on your account. If this was not you, sign out of all sessions immediately.",
	}); err != nil {
		slog.Warn("second-factor notice not delivered", "user", acct.ID, "err", err)
	}

	return p.mintPair(acct, AssuranceLevelSecond)
}

func (p *LocalProvider) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := p.validToken(refreshToken, token.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrNoSession
	}

	p.mu.Lock()
	acct := p.accounts[userID]
	// A refresh token is single use.
	p.revokedJTI[claims.ID] = struct{}{}
	p.mu.Unlock()
	if acct == nil {
		return nil, ErrNoSession
	}

	return p.mintPair(acct, claims.Aal)
}

func (p *LocalProvider) InstallSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if _, err := p.validToken(refreshToken, token.TokenTypeRefresh); err != nil {
		return nil, err
	}
	return p.Session(ctx, accessToken)
}

func (p *LocalProvider) SignOut(ctx context.Context, accessToken string, scope SignOutScope) error {
	claims, err := p.validToken(accessToken, token.TokenTypeAccess)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch scope {
	case SignOutGlobal:
		userID, err := claims.UserID()
		if err != nil {
			return ErrNoSession
		}
		p.signOutCutoff[userID] = time.Now().UTC()
	default:
		p.revokedJTI[claims.ID] = struct{}{}
	}
	return nil
}

// IssueMagicLink mints a fresh aal1 session for the user and embeds it in the
// fragment of the given callback URL, the way the hosted provider's magic
// links land tokens on whatever device opens them.
func (p *LocalProvider) IssueMagicLink(ctx context.Context, userID uuid.UUID, redirectTo string) (string, error) {
	p.mu.RLock()
	acct := p.accounts[userID]
	p.mu.RUnlock()
	if acct == nil {
		return "", fmt.Errorf("unknown user %s", userID)
	}

	pair, err := p.mintPair(acct, AssuranceLevelFirst)
	if err != nil {
		return "", err
	}

	fragment := url.Values{}
	fragment.Set(token.AccessTokenName, pair.AccessToken)
	fragment.Set(token.RefreshTokenName, pair.RefreshToken)
	return redirectTo + "#" + fragment.Encode(), nil
}

func (p *LocalProvider) mintPair(acct *account, aal string) (*TokenPair, error) {
	pair, err := p.tokens.GeneratePair(acct.ID, aal, acct.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to mint session tokens: %w", err)
	}
	return &TokenPair{
		AccessToken:  pair.AccessToken.Token,
		RefreshToken: pair.RefreshToken.Token,
	}, nil
}

// validToken parses and validates a token of the expected type against the
// revocation state.
func (p *LocalProvider) validToken(tokenStr, wantType string) (*token.Claims, error) {
	claims, err := p.tokens.ParseToken(tokenStr)
	if err != nil {
		return nil, ErrNoSession
	}
	if claims.TokenType != wantType {
		return nil, ErrNoSession
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, revoked := p.revokedJTI[claims.ID]; revoked {
		return nil, ErrNoSession
	}
	if userID, err := claims.UserID(); err == nil {
		if cutoff, ok := p.signOutCutoff[userID]; ok {
			if claims.IssuedAt == nil || !claims.IssuedAt.Time.After(cutoff) {
				return nil, ErrNoSession
			}
		}
	}
	return claims, nil
}
