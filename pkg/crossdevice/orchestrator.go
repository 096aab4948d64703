// Package crossdevice bridges a QR-initiated mobile authentication across
// the identity provider's redirect. The provider's hosted flow lands tokens
// in a URL fragment on whatever device completes it, so the scan-session
// identifier has to ride across that hop in the session bridge; the
// orchestrator runs the two legs of that handshake.
package crossdevice

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/contractanalyser/authbridge/pkg/idp"
	"github.com/contractanalyser/authbridge/pkg/notification"
	"github.com/contractanalyser/authbridge/pkg/sessionbridge"
)

// Navigator executes the navigation decisions the orchestrator makes.
// Replace rewrites the current location without a history entry; Navigate is
// an in-app route change; HardNavigate is a full browser navigation, used
// when leaving for the provider or bailing to login.
type Navigator interface {
	Replace(location string)
	Navigate(location string)
	HardNavigate(location string)
}

// Exchanger turns a one-time auth token into a provider magic-link URL.
type Exchanger interface {
	Exchange(ctx context.Context, authToken, redirectTo string) (string, error)
}

// SessionInstaller installs provider-issued tokens as the active session.
type SessionInstaller interface {
	InstallSession(ctx context.Context, accessToken, refreshToken string) (*idp.Session, error)
}

// Routes names the locations the orchestrator navigates to.
type Routes struct {
	Login         string
	MobileCapture string
}

// DefaultRoutes matches the application's route layout.
func DefaultRoutes() Routes {
	return Routes{
		Login:         "/login",
		MobileCapture: "/mobile/capture",
	}
}

// Orchestrator runs the two-leg cross-device handshake for one application
// origin.
type Orchestrator struct {
	bridge    *sessionbridge.Service
	exchanger Exchanger
	installer SessionInstaller
	appOrigin string
	routes    Routes
	metrics   *Metrics
	notifier  notification.Notifier
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRoutes overrides the navigation targets.
func WithRoutes(routes Routes) Option {
	return func(o *Orchestrator) { o.routes = routes }
}

// WithMetrics records leg outcomes on the given metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithNotifier sends a security notice when a mobile sign-in completes.
func WithNotifier(n notification.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func New(bridge *sessionbridge.Service, exchanger Exchanger, installer SessionInstaller, appOrigin string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bridge:    bridge,
		exchanger: exchanger,
		installer: installer,
		appOrigin: appOrigin,
		routes:    DefaultRoutes(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleLocation inspects a location and runs whichever leg it triggers.
// Returns true when a leg ran. Leg 1 takes precedence when a location
// somehow satisfies both triggers; the legs are mutually exclusive within a
// normal flow because Leg 1 matches on query parameters and Leg 2 on
// fragment parameters.
func (o *Orchestrator) HandleLocation(ctx context.Context, deviceKey string, loc Location, nav Navigator) bool {
	if loc.hasScanParams() {
		o.runLeg1(ctx, deviceKey, loc, nav)
		return true
	}
	if loc.hasProviderTokens() {
		return o.runLeg2(ctx, deviceKey, loc, nav)
	}
	return false
}

// runLeg1 handles an incoming QR scan: persist the bridging context, strip
// the query parameters from the visible URL, and hand the browser to the
// provider's magic link. Every failure tears the context down and bails to
// login; no partial state survives.
func (o *Orchestrator) runLeg1(ctx context.Context, deviceKey string, loc Location, nav Navigator) {
	bctx := sessionbridge.BridgeContext{
		ScanSessionID: loc.Query.Get(ParamScanSessionID),
		AuthToken:     loc.Query.Get(ParamAuthToken),
	}

	if err := o.bridge.SetMobileBridge(ctx, deviceKey, bctx); err != nil {
		slog.Error("failed to persist bridge context", "err", err)
		o.failLeg(ctx, deviceKey, nav, "leg1")
		return
	}

	nav.Replace(loc.Path)

	magicLink, err := o.exchanger.Exchange(ctx, bctx.AuthToken, o.appOrigin+"/")
	if err != nil || magicLink == "" {
		slog.Error("token exchange failed", "scanSession", bctx.ScanSessionID, "err", err)
		o.failLeg(ctx, deviceKey, nav, "leg1")
		return
	}

	o.observe("leg1", "ok")
	nav.HardNavigate(magicLink)
}

// runLeg2 handles the return from the identity provider. Provider tokens
// with no stored bridging context mean an ordinary login finishing on this
// device; the orchestrator stays out of the way.
func (o *Orchestrator) runLeg2(ctx context.Context, deviceKey string, loc Location, nav Navigator) bool {
	bctx, err := o.bridge.TakeMobileBridge(ctx, deviceKey)
	if err != nil {
		o.observe("leg2", "no-bridge")
		return false
	}

	accessToken := loc.Fragment.Get(ParamAccessToken)
	refreshToken := loc.Fragment.Get(ParamRefreshToken)

	session, err := o.installer.InstallSession(ctx, accessToken, refreshToken)
	if err != nil {
		slog.Error("failed to install bridged session", "scanSession", bctx.ScanSessionID, "err", err)
		o.failLeg(ctx, deviceKey, nav, "leg2")
		return true
	}
	o.notifyMobileSignIn(ctx, session)

	// The capture page re-establishes everything from the fragment, with no
	// further round trip.
	fragment := url.Values{}
	fragment.Set(ParamScanSessionID, bctx.ScanSessionID)
	fragment.Set(ParamAuthToken, bctx.AuthToken)
	fragment.Set(ParamAccessToken, accessToken)
	fragment.Set(ParamRefreshToken, refreshToken)

	o.observe("leg2", "ok")
	nav.Navigate(o.routes.MobileCapture + "#" + fragment.Encode())
	return true
}

func (o *Orchestrator) failLeg(ctx context.Context, deviceKey string, nav Navigator, leg string) {
	if err := o.bridge.ClearMobileBridge(ctx, deviceKey); err != nil {
		slog.Warn("failed to clear bridge context", "err", err)
	}
	o.observe(leg, "failed")
	nav.HardNavigate(o.routes.Login)
}

func (o *Orchestrator) notifyMobileSignIn(ctx context.Context, session *idp.Session) {
	if o.notifier == nil || session == nil || session.Email == "" {
		return
	}
	if err := o.notifier.Send(ctx, notification.Notice{
		Type:    notification.NoticeMobileSignIn,
		To:      session.Email,
		Subject: "New mobile sign-in",
		Body:    "A mobile device just signed in to your account via QR code. If this was not you, sign out of all sessions immediately.",
	}); err != nil {
		slog.Warn("mobile sign-in notice not delivered", "user", session.UserID, "err", err)
	}
}

func (o *Orchestrator) observe(leg, outcome string) {
	if o.metrics != nil {
		o.metrics.ObserveLeg(leg, outcome)
	}
}
