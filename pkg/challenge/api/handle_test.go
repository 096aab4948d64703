package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractanalyser/authbridge/pkg/challenge"
	"github.com/contractanalyser/authbridge/pkg/idp"
	"github.com/contractanalyser/authbridge/pkg/sessionbridge"
	"github.com/contractanalyser/authbridge/pkg/token"
)

type stubClient struct {
	session   *idp.Session
	factors   []idp.SecondFactor
	verifyErr error
}

func (s *stubClient) Session(ctx context.Context, accessToken string) (*idp.Session, error) {
	if s.session == nil || accessToken == "" {
		return nil, idp.ErrNoSession
	}
	return s.session, nil
}

func (s *stubClient) ListFactors(ctx context.Context, userID uuid.UUID) ([]idp.SecondFactor, error) {
	return s.factors, nil
}

func (s *stubClient) CreateChallenge(ctx context.Context, factorID uuid.UUID) (*idp.Challenge, error) {
	return &idp.Challenge{ID: uuid.New(), FactorID: factorID}, nil
}

func (s *stubClient) VerifyChallenge(ctx context.Context, params idp.VerifyChallengeParams) (*idp.TokenPair, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &idp.TokenPair{AccessToken: "A2", RefreshToken: "R2"}, nil
}

func (s *stubClient) RefreshSession(ctx context.Context, refreshToken string) (*idp.TokenPair, error) {
	return &idp.TokenPair{AccessToken: "A2r", RefreshToken: "R2r"}, nil
}

func (s *stubClient) InstallSession(ctx context.Context, accessToken, refreshToken string) (*idp.Session, error) {
	return s.session, nil
}

func (s *stubClient) SignOut(ctx context.Context, accessToken string, scope idp.SignOutScope) error {
	return nil
}

var _ idp.Client = (*stubClient)(nil)

func newServer(t *testing.T, client idp.Client) (*httptest.Server, *sessionbridge.Service) {
	t.Helper()
	repo := sessionbridge.NewInMemRepository()
	t.Cleanup(repo.Close)
	bridge := sessionbridge.NewService(repo)
	handle := NewHandle(challenge.NewService(client, bridge), token.NewCookieSetter(true, false))
	server := httptest.NewServer(Router(handle))
	t.Cleanup(server.Close)
	return server, bridge
}

func withSession(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: token.AccessTokenName, Value: "A1"})
	req.AddCookie(&http.Cookie{Name: "ab_device", Value: "device-1"})
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestGetStateUnauthenticated(t *testing.T) {
	server, _ := newServer(t, &stubClient{})

	resp, err := http.Get(server.URL + "/state")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	state := decode[StateResponse](t, resp)
	assert.Equal(t, "skip", state.Status)
	assert.Equal(t, "/login", state.Redirect)
}

func TestGetStateWithFactor(t *testing.T) {
	factor := idp.SecondFactor{ID: uuid.New(), Type: idp.FactorTypeTOTP, Status: idp.FactorStatusVerified}
	client := &stubClient{
		session: &idp.Session{UserID: uuid.New(), Email: "alice@example.com", AssuranceLevel: idp.AssuranceLevelFirst},
		factors: []idp.SecondFactor{factor},
	}
	server, _ := newServer(t, client)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/state", nil)
	resp, err := http.DefaultClient.Do(withSession(req))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decode[StateResponse](t, resp)
	assert.Equal(t, "ready", state.Status)
	assert.Equal(t, factor.ID.String(), state.FactorID)
	assert.Equal(t, "alice@example.com", state.Email)
}

func TestGetStateWithoutFactorRoutesOnward(t *testing.T) {
	client := &stubClient{session: &idp.Session{UserID: uuid.New(), AssuranceLevel: idp.AssuranceLevelFirst}}
	server, _ := newServer(t, client)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/state?redirect=%2Freports", nil)
	resp, err := http.DefaultClient.Do(withSession(req))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decode[StateResponse](t, resp)
	assert.Equal(t, "skip", state.Status)
	assert.Equal(t, "/reports", state.Redirect)
}

func TestPostVerifySuccess(t *testing.T) {
	client := &stubClient{
		session: &idp.Session{UserID: uuid.New(), AssuranceLevel: idp.AssuranceLevelFirst},
		factors: []idp.SecondFactor{{ID: uuid.New(), Type: idp.FactorTypeTOTP, Status: idp.FactorStatusVerified}},
	}
	server, bridge := newServer(t, client)

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/verify?redirect=%2Freports", strings.NewReader(`{"code":"123456"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(withSession(req))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookieNames []string
	for _, c := range resp.Cookies() {
		cookieNames = append(cookieNames, c.Name)
	}
	assert.Contains(t, cookieNames, token.AccessTokenName)
	assert.Contains(t, cookieNames, token.RefreshTokenName)

	out := decode[VerifyResponse](t, resp)
	assert.Equal(t, "/reports", out.Redirect)
	assert.True(t, bridge.MFAPassed(context.Background(), "device-1"))
}

func TestPostVerifyWrongCodeIsRetryable(t *testing.T) {
	client := &stubClient{
		session:   &idp.Session{UserID: uuid.New(), AssuranceLevel: idp.AssuranceLevelFirst},
		factors:   []idp.SecondFactor{{ID: uuid.New(), Type: idp.FactorTypeTOTP, Status: idp.FactorStatusVerified}},
		verifyErr: idp.ErrInvalidCode,
	}
	server, bridge := newServer(t, client)

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/verify", strings.NewReader(`{"code":"123456"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(withSession(req))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, bridge.MFAPassed(context.Background(), "device-1"))
}

func TestPostVerifyRejectsOpenRedirect(t *testing.T) {
	client := &stubClient{
		session: &idp.Session{UserID: uuid.New(), AssuranceLevel: idp.AssuranceLevelFirst},
		factors: []idp.SecondFactor{{ID: uuid.New(), Type: idp.FactorTypeTOTP, Status: idp.FactorStatusVerified}},
	}
	server, _ := newServer(t, client)

	for _, target := range []string{"https://evil.example.com", "//evil.example.com"} {
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/verify?redirect="+target, strings.NewReader(`{"code":"123456"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(withSession(req))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		out := decode[VerifyResponse](t, resp)
		assert.Equal(t, "/dashboard", out.Redirect, "target %q", target)
	}
}

func TestPostLogoutClearsCookiesAndFlag(t *testing.T) {
	client := &stubClient{session: &idp.Session{UserID: uuid.New(), AssuranceLevel: idp.AssuranceLevelSecond}}
	server, bridge := newServer(t, client)

	ctx := context.Background()
	require.NoError(t, bridge.SetMFAPassed(ctx, "device-1"))

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/logout", nil)
	resp, err := http.DefaultClient.Do(withSession(req))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == token.AccessTokenName || c.Name == token.RefreshTokenName {
			assert.Empty(t, c.Value)
		}
	}
	out := decode[VerifyResponse](t, resp)
	assert.Equal(t, "/login", out.Redirect)
	assert.False(t, bridge.MFAPassed(ctx, "device-1"))
}
