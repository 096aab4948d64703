package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/contractanalyser/authbridge/pkg/idp"
	"github.com/contractanalyser/authbridge/pkg/profile"
	"github.com/contractanalyser/authbridge/pkg/token"
)

// localAuthRouter exposes the local provider's first-factor and enrollment
// endpoints. Only mounted in local mode; against a hosted provider these
// flows happen on the provider's own pages.
func localAuthRouter(local *idp.LocalProvider, profiles *profile.Service, cookies token.CookieSetter, accessExpiry time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := render.DecodeJSON(req.Body, &body); err != nil {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]string{"error": "unable to parse body"})
			return
		}

		pair, err := local.SignIn(req.Context(), body.Email, body.Password)
		if err != nil {
			render.Status(req, http.StatusUnauthorized)
			render.JSON(w, req, map[string]string{"error": "invalid email or password"})
			return
		}

		now := time.Now().UTC()
		if err := token.SetSessionCookies(cookies, w, token.Pair{
			AccessToken:  token.Value{Token: pair.AccessToken, Expiry: now.Add(accessExpiry)},
			RefreshToken: token.Value{Token: pair.RefreshToken, Expiry: now.Add(token.DefaultRefreshTokenExpiry)},
		}); err != nil {
			slog.Error("failed to set session cookies", "err", err)
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"error": "failed to establish session"})
			return
		}
		render.JSON(w, req, map[string]string{"redirect": "/dashboard"})
	})

	r.Post("/register", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := render.DecodeJSON(req.Body, &body); err != nil {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]string{"error": "unable to parse body"})
			return
		}

		userID, err := local.CreateUser(req.Context(), idp.CreateUserParams{
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			render.Status(req, http.StatusConflict)
			render.JSON(w, req, map[string]string{"error": err.Error()})
			return
		}
		if err := profiles.Upsert(req.Context(), profile.UpsertParams{UserID: userID, Email: body.Email}); err != nil {
			slog.Error("failed to create profile", "user", userID, "err", err)
		}

		render.Status(req, http.StatusCreated)
		render.JSON(w, req, map[string]string{"user_id": userID.String()})
	})

	r.Post("/factors", func(w http.ResponseWriter, req *http.Request) {
		session, err := local.Session(req.Context(), sessionToken(req))
		if err != nil {
			render.Status(req, http.StatusUnauthorized)
			render.JSON(w, req, map[string]string{"error": "unauthorized"})
			return
		}

		enrollment, err := local.EnrollFactor(req.Context(), session.UserID)
		if err != nil {
			slog.Error("factor enrollment failed", "user", session.UserID, "err", err)
			render.Status(req, http.StatusInternalServerError)
			render.JSON(w, req, map[string]string{"error": "enrollment failed"})
			return
		}

		render.Status(req, http.StatusCreated)
		render.JSON(w, req, map[string]string{
			"factor_id":        enrollment.Factor.ID.String(),
			"secret":           enrollment.Secret,
			"provisioning_uri": enrollment.ProvisioningURI,
		})
	})

	return r
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(token.AccessTokenName); err == nil {
		return c.Value
	}
	return ""
}
