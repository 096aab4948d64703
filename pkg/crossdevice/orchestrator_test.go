package crossdevice

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractanalyser/authbridge/pkg/idp"
	"github.com/contractanalyser/authbridge/pkg/notification"
	"github.com/contractanalyser/authbridge/pkg/sessionbridge"
)

const appOrigin = "https://app.example.com"

type fakeExchanger struct {
	magicLink   string
	err         error
	gotToken    string
	gotRedirect string
	calls       int
}

func (f *fakeExchanger) Exchange(ctx context.Context, authToken, redirectTo string) (string, error) {
	f.calls++
	f.gotToken = authToken
	f.gotRedirect = redirectTo
	return f.magicLink, f.err
}

type fakeInstaller struct {
	err        error
	email      string
	gotAccess  string
	gotRefresh string
	calls      int
}

func (f *fakeInstaller) InstallSession(ctx context.Context, accessToken, refreshToken string) (*idp.Session, error) {
	f.calls++
	f.gotAccess = accessToken
	f.gotRefresh = refreshToken
	if f.err != nil {
		return nil, f.err
	}
	return &idp.Session{UserID: uuid.New(), Email: f.email, AssuranceLevel: idp.AssuranceLevelFirst}, nil
}

type recordingNotifier struct {
	notices []notification.Notice
}

func (n *recordingNotifier) Send(ctx context.Context, notice notification.Notice) error {
	n.notices = append(n.notices, notice)
	return nil
}

func newBridge(t *testing.T) *sessionbridge.Service {
	t.Helper()
	repo := sessionbridge.NewInMemRepository()
	t.Cleanup(repo.Close)
	return sessionbridge.NewService(repo)
}

func mustParse(t *testing.T, raw string) Location {
	t.Helper()
	loc, err := ParseLocation(raw)
	require.NoError(t, err)
	return loc
}

func TestLeg1RoundTrip(t *testing.T) {
	ctx := context.Background()
	bridge := newBridge(t)
	exchanger := &fakeExchanger{magicLink: "https://idp.example.com/magic"}
	o := New(bridge, exchanger, &fakeInstaller{}, appOrigin)

	nav := &ActionRecorder{}
	handled := o.HandleLocation(ctx, "dev-1",
		mustParse(t, appOrigin+"/?scanSessionId=S1&auth_token=T1"), nav)
	require.True(t, handled)

	// Context stored for Leg 2.
	assert.True(t, bridge.PeekMobileBridge(ctx, "dev-1"))

	// Query stripped via replace, then a hard navigation to the magic link.
	require.Len(t, nav.Actions, 2)
	assert.Equal(t, Action{Type: "replace", Location: "/"}, nav.Actions[0])
	assert.Equal(t, Action{Type: "hard-navigate", Location: "https://idp.example.com/magic"}, nav.Actions[1])

	assert.Equal(t, "T1", exchanger.gotToken)
	assert.Equal(t, appOrigin+"/", exchanger.gotRedirect)
}

func TestLeg1FailureContainment(t *testing.T) {
	tests := []struct {
		name      string
		exchanger *fakeExchanger
	}{
		{"exchange error", &fakeExchanger{err: errors.New("exchange endpoint down")}},
		{"missing redirect url", &fakeExchanger{magicLink: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			bridge := newBridge(t)
			o := New(bridge, tt.exchanger, &fakeInstaller{}, appOrigin)

			nav := &ActionRecorder{}
			handled := o.HandleLocation(ctx, "dev-1",
				mustParse(t, appOrigin+"/?scanSessionId=S1&auth_token=T1"), nav)
			require.True(t, handled)

			// No partial state: context discarded, user bounced to login.
			assert.False(t, bridge.PeekMobileBridge(ctx, "dev-1"))
			require.NotEmpty(t, nav.Actions)
			last := nav.Actions[len(nav.Actions)-1]
			assert.Equal(t, Action{Type: "hard-navigate", Location: "/login"}, last)
		})
	}
}

func TestLeg2CompletesBridgedLogin(t *testing.T) {
	ctx := context.Background()
	bridge := newBridge(t)
	installer := &fakeInstaller{}
	o := New(bridge, &fakeExchanger{}, installer, appOrigin)

	require.NoError(t, bridge.SetMobileBridge(ctx, "dev-1", sessionbridge.BridgeContext{
		ScanSessionID: "S1",
		AuthToken:     "T1",
	}))

	nav := &ActionRecorder{}
	handled := o.HandleLocation(ctx, "dev-1",
		mustParse(t, appOrigin+"/#access_token=A1&refresh_token=R1"), nav)
	require.True(t, handled)

	assert.Equal(t, "A1", installer.gotAccess)
	assert.Equal(t, "R1", installer.gotRefresh)

	// Context consumed exactly once.
	assert.False(t, bridge.PeekMobileBridge(ctx, "dev-1"))

	require.Len(t, nav.Actions, 1)
	assert.Equal(t, "navigate", nav.Actions[0].Type)

	target, err := url.Parse(nav.Actions[0].Location)
	require.NoError(t, err)
	assert.Equal(t, "/mobile/capture", target.Path)

	fragment, err := url.ParseQuery(target.Fragment)
	require.NoError(t, err)
	assert.Equal(t, "S1", fragment.Get(ParamScanSessionID))
	assert.Equal(t, "T1", fragment.Get(ParamAuthToken))
	assert.Equal(t, "A1", fragment.Get(ParamAccessToken))
	assert.Equal(t, "R1", fragment.Get(ParamRefreshToken))
}

func TestLeg2InstallFailureBailsToLogin(t *testing.T) {
	ctx := context.Background()
	bridge := newBridge(t)
	o := New(bridge, &fakeExchanger{}, &fakeInstaller{err: errors.New("tokens rejected")}, appOrigin)

	require.NoError(t, bridge.SetMobileBridge(ctx, "dev-1", sessionbridge.BridgeContext{
		ScanSessionID: "S1",
		AuthToken:     "T1",
	}))

	nav := &ActionRecorder{}
	handled := o.HandleLocation(ctx, "dev-1",
		mustParse(t, appOrigin+"/#access_token=A1&refresh_token=R1"), nav)
	require.True(t, handled)

	assert.False(t, bridge.PeekMobileBridge(ctx, "dev-1"))
	require.Len(t, nav.Actions, 1)
	assert.Equal(t, Action{Type: "hard-navigate", Location: "/login"}, nav.Actions[0])
}

func TestLeg2WithoutContextIsOrdinaryLogin(t *testing.T) {
	ctx := context.Background()
	o := New(newBridge(t), &fakeExchanger{}, &fakeInstaller{}, appOrigin)

	nav := &ActionRecorder{}
	handled := o.HandleLocation(ctx, "dev-1",
		mustParse(t, appOrigin+"/#access_token=A1&refresh_token=R1"), nav)

	assert.False(t, handled, "a regular login completing is not a bridged flow")
	assert.Empty(t, nav.Actions)
}

func TestLeg1TakesPrecedenceOverLeg2(t *testing.T) {
	ctx := context.Background()
	bridge := newBridge(t)
	exchanger := &fakeExchanger{magicLink: "https://idp.example.com/magic"}
	installer := &fakeInstaller{}
	o := New(bridge, exchanger, installer, appOrigin)

	nav := &ActionRecorder{}
	handled := o.HandleLocation(ctx, "dev-1",
		mustParse(t, appOrigin+"/?scanSessionId=S1&auth_token=T1#access_token=A1&refresh_token=R1"), nav)
	require.True(t, handled)

	assert.Equal(t, 1, exchanger.calls, "leg 1 must run")
	assert.Equal(t, 0, installer.calls, "leg 2 must not run in the same pass")
}

func TestLeg2SendsMobileSignInNotice(t *testing.T) {
	ctx := context.Background()
	bridge := newBridge(t)
	notifier := &recordingNotifier{}
	o := New(bridge, &fakeExchanger{}, &fakeInstaller{email: "alice@example.com"}, appOrigin,
		WithNotifier(notifier))

	require.NoError(t, bridge.SetMobileBridge(ctx, "dev-1", sessionbridge.BridgeContext{
		ScanSessionID: "S1",
		AuthToken:     "T1",
	}))

	nav := &ActionRecorder{}
	handled := o.HandleLocation(ctx, "dev-1",
		mustParse(t, appOrigin+"/#access_token=A1&refresh_token=R1"), nav)
	require.True(t, handled)

	require.Len(t, notifier.notices, 1)
	assert.Equal(t, notification.NoticeMobileSignIn, notifier.notices[0].Type)
	assert.Equal(t, "alice@example.com", notifier.notices[0].To)
}

func TestUnrelatedLocationIsIgnored(t *testing.T) {
	o := New(newBridge(t), &fakeExchanger{}, &fakeInstaller{}, appOrigin)

	nav := &ActionRecorder{}
	handled := o.HandleLocation(context.Background(), "dev-1",
		mustParse(t, appOrigin+"/dashboard?page=2"), nav)

	assert.False(t, handled)
	assert.Empty(t, nav.Actions)
}
