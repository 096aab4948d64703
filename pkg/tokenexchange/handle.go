package tokenexchange

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	"github.com/contractanalyser/authbridge/pkg/guard"
)

// ExchangeRequest is the wire body of the exchange endpoint.
type ExchangeRequest struct {
	AuthToken     string `json:"auth_token"`
	RedirectToURL string `json:"redirect_to_url"`
}

// ExchangeResponse is the wire body of a successful exchange.
type ExchangeResponse struct {
	RedirectToURL string `json:"redirectToUrl"`
}

// Handle serves the token exchange API.
type Handle struct {
	service *Service
}

func NewHandle(service *Service) *Handle {
	return &Handle{service: service}
}

// Router mounts the exchange endpoints. The exchange itself is deliberately
// unauthenticated: it runs on the scanning device before any session exists
// there, gated only by the single-use auth token. Scan-session issuance is
// mounted separately behind the route guard.
func Router(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/exchange", h.PostExchange)
	return r
}

// AuthenticatedRouter mounts the endpoints that require a signed-in user.
func AuthenticatedRouter(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/scan-sessions", h.PostScanSession)
	return r
}

// PostExchange exchanges a one-time auth token for a magic-link URL.
// (POST /exchange)
func (h *Handle) PostExchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse body"})
		return
	}
	if req.AuthToken == "" || req.RedirectToURL == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "auth_token and redirect_to_url are required"})
		return
	}

	link, err := h.service.Exchange(r.Context(), req.AuthToken, req.RedirectToURL)
	if errors.Is(err, ErrTokenNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "auth token not found or already used"})
		return
	}
	if err != nil {
		slog.Error("token exchange failed", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "exchange failed"})
		return
	}

	render.JSON(w, r, ExchangeResponse{RedirectToURL: link})
}

// PostScanSession creates a scan session for the signed-in user and returns
// the URL the desktop renders as a QR code.
// (POST /scan-sessions)
func (h *Handle) PostScanSession(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	session := guard.SessionFromClaims(claims)
	if err != nil || session == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "unauthorized"})
		return
	}

	scan, scanURL, err := h.service.IssueScanSession(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to issue scan session", "user", session.UserID, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "failed to issue scan session"})
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{
		"scan_session_id": scan.ID,
		"auth_token":      scan.AuthToken,
		"scan_url":        scanURL,
	})
}
