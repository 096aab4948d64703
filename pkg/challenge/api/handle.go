// Package api exposes the second-factor challenge flow over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/contractanalyser/authbridge/pkg/challenge"
	"github.com/contractanalyser/authbridge/pkg/guard"
	"github.com/contractanalyser/authbridge/pkg/idp"
	"github.com/contractanalyser/authbridge/pkg/token"
)

// Routes the handlers redirect to.
type Routes struct {
	Login     string
	Dashboard string
}

func DefaultRoutes() Routes {
	return Routes{Login: "/login", Dashboard: "/dashboard"}
}

// StateResponse describes what the challenge page should render.
type StateResponse struct {
	// Status is "ready" when a code prompt should be shown, or "skip" when
	// the user has no verified factor and should be routed onward.
	Status   string `json:"status"`
	Redirect string `json:"redirect,omitempty"`
	FactorID string `json:"factor_id,omitempty"`
	Email    string `json:"email,omitempty"`
}

// VerifyRequest carries the submitted passcode.
type VerifyRequest struct {
	Code string `json:"code"`
}

// VerifyResponse tells the page where to go after a successful check.
type VerifyResponse struct {
	Redirect string `json:"redirect"`
}

// Handle serves the challenge endpoints.
type Handle struct {
	service      *challenge.Service
	cookieSetter token.CookieSetter
	routes       Routes
	accessExpiry time.Duration
}

// Option configures a Handle.
type Option func(*Handle)

// WithRoutes overrides the redirect targets.
func WithRoutes(r Routes) Option {
	return func(h *Handle) { h.routes = r }
}

// WithAccessTokenExpiry sets the cookie lifetime for refreshed access
// tokens.
func WithAccessTokenExpiry(d time.Duration) Option {
	return func(h *Handle) { h.accessExpiry = d }
}

func NewHandle(service *challenge.Service, cookieSetter token.CookieSetter, opts ...Option) *Handle {
	h := &Handle{
		service:      service,
		cookieSetter: cookieSetter,
		routes:       DefaultRoutes(),
		accessExpiry: token.DefaultAccessTokenExpiry,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts the challenge endpoints.
func Router(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/state", h.GetState)
	r.Post("/verify", h.PostVerify)
	r.Post("/logout", h.PostLogout)
	return r
}

// GetState reports whether the challenge page should prompt for a code.
// Users without a first-factor session are sent to login; users without a
// verified factor are sent onward to their target rather than trapped here.
// (GET /state)
func (h *Handle) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Begin(r.Context(), accessTokenFromRequest(r))
	if errors.Is(err, idp.ErrNoSession) {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, StateResponse{Status: "skip", Redirect: h.routes.Login})
		return
	}
	if err != nil {
		slog.Error("failed to resolve challenge state", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "failed to resolve challenge state"})
		return
	}

	if state.NoFactor {
		render.JSON(w, r, StateResponse{Status: "skip", Redirect: redirectTarget(r, h.routes.Dashboard)})
		return
	}
	render.JSON(w, r, StateResponse{
		Status:   "ready",
		FactorID: state.Factor.ID.String(),
		Email:    state.Session.Email,
	})
}

// PostVerify checks the submitted passcode. Success rotates the session
// cookies to the upgraded pair and reports where to go next; a wrong code is
// an inline error the page can retry against.
// (POST /verify)
func (h *Handle) PostVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse body"})
		return
	}

	pair, err := h.service.Verify(r.Context(), accessTokenFromRequest(r), guard.DeviceKey(r), req.Code)
	switch {
	case err == nil:
	case errors.Is(err, challenge.ErrBadCode), errors.Is(err, idp.ErrInvalidCode), errors.Is(err, idp.ErrChallengeExpired):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]string{"error": "invalid passcode, please try again"})
		return
	case errors.Is(err, idp.ErrTooManyAttempts):
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, map[string]string{"error": "too many attempts, please wait before retrying"})
		return
	case errors.Is(err, idp.ErrNoSession):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "session expired, please sign in again"})
		return
	case errors.Is(err, challenge.ErrNoFactor):
		render.JSON(w, r, VerifyResponse{Redirect: redirectTarget(r, h.routes.Dashboard)})
		return
	default:
		slog.Error("passcode verification failed", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "verification failed"})
		return
	}

	now := time.Now().UTC()
	if err := token.SetSessionCookies(h.cookieSetter, w, token.Pair{
		AccessToken:  token.Value{Token: pair.AccessToken, Expiry: now.Add(h.accessExpiry)},
		RefreshToken: token.Value{Token: pair.RefreshToken, Expiry: now.Add(token.DefaultRefreshTokenExpiry)},
	}); err != nil {
		slog.Error("failed to set session cookies", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "failed to establish session"})
		return
	}

	render.JSON(w, r, VerifyResponse{Redirect: redirectTarget(r, h.routes.Dashboard)})
}

// PostLogout signs the user out from the challenge page and clears the
// session cookies and the device's bridge state.
// (POST /logout)
func (h *Handle) PostLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), accessTokenFromRequest(r), guard.DeviceKey(r)); err != nil {
		slog.Warn("logout reported an error", "err", err)
	}
	if err := token.ClearSessionCookies(h.cookieSetter, w); err != nil {
		slog.Error("failed to clear session cookies", "err", err)
	}
	render.JSON(w, r, VerifyResponse{Redirect: h.routes.Login})
}

// accessTokenFromRequest reads the session cookie, falling back to a bearer
// header for API clients.
func accessTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(token.AccessTokenName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// redirectTarget returns the validated post-challenge target. Only local
// paths are honoured so the parameter cannot be used as an open redirect.
func redirectTarget(r *http.Request, fallback string) string {
	target := r.URL.Query().Get("redirect")
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	return target
}
