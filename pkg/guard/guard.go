// Package guard gates protected route trees behind authentication,
// authorization and second-factor assurance. The decision logic is an
// explicit state machine; both the plain and the admin variant share one
// assurance computation and differ only in the authorization predicate.
package guard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/contractanalyser/authbridge/pkg/idp"
	"github.com/contractanalyser/authbridge/pkg/sessionbridge"
)

// Variant selects the authorization predicate layered on top of the shared
// assurance computation.
type Variant string

const (
	VariantPlain Variant = "plain"
	VariantAdmin Variant = "admin"
)

// DecisionKind enumerates the terminal guard outcomes plus the pending state.
type DecisionKind int

const (
	DecisionLoading DecisionKind = iota
	DecisionRedirectToLogin
	DecisionRedirectToMFAChallenge
	DecisionRedirectToDashboard
	DecisionAdmit
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionRedirectToLogin:
		return "redirect-to-login"
	case DecisionRedirectToMFAChallenge:
		return "redirect-to-mfa-challenge"
	case DecisionRedirectToDashboard:
		return "redirect-to-dashboard"
	case DecisionAdmit:
		return "admit"
	default:
		return "loading"
	}
}

// Decision is the guard outcome. Location is only set for redirect kinds.
type Decision struct {
	Kind     DecisionKind
	Location string
}

// Routes names the locations the guard redirects to.
type Routes struct {
	Login        string
	MFAChallenge string
	Dashboard    string
}

// DefaultRoutes matches the application's route layout.
func DefaultRoutes() Routes {
	return Routes{
		Login:        "/login",
		MFAChallenge: "/mfa-challenge",
		Dashboard:    "/dashboard",
	}
}

// DefaultClearDelay is how long an admit-deciding just-passed flag survives
// before it is cleared. The delay (rather than an immediate clear) lets a
// parallel guard instance observe the flag before it disappears.
const DefaultClearDelay = 500 * time.Millisecond

// FactorLister lists a user's enrolled second factors.
type FactorLister interface {
	ListFactors(ctx context.Context, userID uuid.UUID) ([]idp.SecondFactor, error)
}

// AdminChecker resolves the is_admin attribute for a user.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AfterFunc schedules fn after d and returns a stop function. Injected so
// tests can drive the clear delay with a fake timer.
type AfterFunc func(d time.Duration, fn func()) (stop func() bool)

// Input is one guard evaluation's inputs.
type Input struct {
	// Session is nil when no authenticated session exists.
	Session *idp.Session
	// DeviceKey scopes the just-passed flag lookup.
	DeviceKey string
	// Target is the originally requested path plus query, carried through
	// the MFA challenge redirect so the flow can resume.
	Target string
}

// Guard evaluates access decisions for one protected route tree.
type Guard struct {
	variant    Variant
	factors    FactorLister
	admins     AdminChecker
	bridge     *sessionbridge.Service
	routes     Routes
	clearDelay time.Duration
	afterFunc  AfterFunc
	metrics    *Metrics
}

// Option configures a Guard.
type Option func(*Guard)

// WithRoutes overrides the redirect locations.
func WithRoutes(routes Routes) Option {
	return func(g *Guard) { g.routes = routes }
}

// WithClearDelay overrides the just-passed flag clear delay.
func WithClearDelay(d time.Duration) Option {
	return func(g *Guard) { g.clearDelay = d }
}

// WithAfterFunc overrides the timer used for the delayed flag clear.
func WithAfterFunc(fn AfterFunc) Option {
	return func(g *Guard) { g.afterFunc = fn }
}

// WithAdminChecker makes the guard the admin variant.
func WithAdminChecker(admins AdminChecker) Option {
	return func(g *Guard) {
		g.variant = VariantAdmin
		g.admins = admins
	}
}

// WithMetrics records decisions on the given metrics.
func WithMetrics(m *Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// New creates a plain-variant guard; WithAdminChecker upgrades it to the
// admin variant.
func New(factors FactorLister, bridge *sessionbridge.Service, opts ...Option) *Guard {
	g := &Guard{
		variant:    VariantPlain,
		factors:    factors,
		bridge:     bridge,
		routes:     DefaultRoutes(),
		clearDelay: DefaultClearDelay,
		afterFunc: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs the full decision sequence for one request:
// session presence, then (admin variant) the authorization predicate, then
// the shared assurance computation. Upstream failures never escape: the
// admin check fails closed, the factor listing fails open, both logged.
func (g *Guard) Evaluate(ctx context.Context, in Input) Decision {
	d := g.decide(ctx, in)
	if g.metrics != nil {
		g.metrics.ObserveDecision(g.variant, d.Kind)
	}
	return d
}

func (g *Guard) decide(ctx context.Context, in Input) Decision {
	// The one-shot request path does not own the flag-clear timer; it fires
	// on its own after the delay.
	d, _ := g.evaluateWatched(ctx, in)
	return d
}

// Variant returns which authorization predicate this guard applies.
func (g *Guard) Variant() Variant {
	return g.variant
}
