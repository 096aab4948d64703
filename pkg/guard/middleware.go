package guard

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"

	"github.com/contractanalyser/authbridge/pkg/idp"
)

// DeviceCookieName scopes the session bridge to one browser. The cookie is
// set by the application shell on first visit.
const DeviceCookieName = "ab_device"

// SessionFromClaims maps verified JWT claims to the provider session view.
// Returns nil when the claims do not amount to an authenticated session.
func SessionFromClaims(claims map[string]interface{}) *idp.Session {
	if claims == nil {
		return nil
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil
	}
	aal, _ := claims["aal"].(string)
	if aal == "" {
		aal = idp.AssuranceLevelFirst
	}
	return &idp.Session{UserID: userID, AssuranceLevel: aal}
}

// DeviceKey extracts the device-scoping key for a request. Requests without
// the device cookie fall back to the remote address, which keeps the bridge
// functional (if coarser) for cookie-less clients.
func DeviceKey(r *http.Request) string {
	if c, err := r.Cookie(DeviceCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.RemoteAddr
}

// Handler wraps a protected subtree. It must sit below jwtauth.Verifier so
// session claims are already resolved; an absent or invalid token simply
// reads as no session and redirects to login, never as an error page.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		var session *idp.Session
		if err == nil {
			session = SessionFromClaims(claims)
		}

		target := r.URL.Path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		decision := g.Evaluate(r.Context(), Input{
			Session:   session,
			DeviceKey: DeviceKey(r),
			Target:    target,
		})

		switch decision.Kind {
		case DecisionAdmit:
			next.ServeHTTP(w, r)
		case DecisionRedirectToLogin, DecisionRedirectToMFAChallenge, DecisionRedirectToDashboard:
			http.Redirect(w, r, decision.Location, http.StatusSeeOther)
		default:
			// Protected content is never served while the decision is
			// pending; the synchronous path cannot reach here.
			http.Error(w, "evaluation pending", http.StatusServiceUnavailable)
		}
	})
}
