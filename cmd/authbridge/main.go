package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contractanalyser/authbridge/pkg/challenge"
	challengeapi "github.com/contractanalyser/authbridge/pkg/challenge/api"
	"github.com/contractanalyser/authbridge/pkg/config"
	"github.com/contractanalyser/authbridge/pkg/crossdevice"
	"github.com/contractanalyser/authbridge/pkg/guard"
	"github.com/contractanalyser/authbridge/pkg/idp"
	"github.com/contractanalyser/authbridge/pkg/profile"
	"github.com/contractanalyser/authbridge/pkg/ratelimit"
	"github.com/contractanalyser/authbridge/pkg/sessionbridge"
	"github.com/contractanalyser/authbridge/pkg/token"
	"github.com/contractanalyser/authbridge/pkg/tokenexchange"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := cfg.JWT.ToTokenService()
	if err != nil {
		return err
	}

	notifier, err := cfg.Email.ToNotifier()
	if err != nil {
		return fmt.Errorf("failed to configure notifier: %w", err)
	}

	// Identity provider backend. The local provider keeps everything in
	// process; remote mode talks to a hosted provider over REST.
	var provider idp.Client
	var issuer tokenexchange.MagicLinkIssuer
	var local *idp.LocalProvider
	switch cfg.Provider.Mode {
	case "local":
		local = idp.NewLocalProvider(tokens, idp.WithNotifier(notifier))
		provider = local
		issuer = local
	case "remote":
		if cfg.Provider.BaseURL == "" {
			return fmt.Errorf("AB_IDP_BASE_URL is required in remote mode")
		}
		remote := idp.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
		provider = remote
		issuer = remote
	default:
		return fmt.Errorf("unsupported provider mode: %s (supported: local, remote)", cfg.Provider.Mode)
	}

	// Session bridge.
	bridgeRepo, err := sessionbridge.NewRepository(cfg.Bridge.Persistence, sessionbridge.RepositoryConfig{
		DataDir: cfg.Bridge.DataDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create bridge repository: %w", err)
	}
	bridgeTTL, err := cfg.Bridge.ParseBridgeTTL()
	if err != nil {
		return err
	}
	bridge := sessionbridge.NewService(bridgeRepo, sessionbridge.WithBridgeTTL(bridgeTTL))

	// Profile store backing the admin check.
	var pool *pgxpool.Pool
	profileRepoCfg := profile.RepositoryConfig{DataDir: cfg.Profile.DataDir}
	if cfg.Profile.Persistence == "postgres" || cfg.Profile.Persistence == "postgresql" {
		pool, err = pgxpool.New(ctx, cfg.Database.ToDatabaseURL())
		if err != nil {
			return fmt.Errorf("failed to create database pool: %w", err)
		}
		defer pool.Close()
		profileRepoCfg.Pool = pool
	}
	profileRepo, err := profile.NewRepository(cfg.Profile.Persistence, profileRepoCfg)
	if err != nil {
		return fmt.Errorf("failed to create profile repository: %w", err)
	}
	profiles := profile.NewService(profileRepo)

	if local != nil && cfg.Provider.SeedEmail != "" {
		if err := seedAccount(ctx, local, profiles, cfg.Provider); err != nil {
			return fmt.Errorf("failed to seed development account: %w", err)
		}
	}

	// Metrics.
	registry := prometheus.NewRegistry()
	guardMetrics := guard.NewMetrics(registry)
	legMetrics := crossdevice.NewMetrics(registry)

	clearDelay, err := cfg.Bridge.ParseClearDelay()
	if err != nil {
		return err
	}

	plainGuard := guard.New(provider, bridge,
		guard.WithClearDelay(clearDelay),
		guard.WithMetrics(guardMetrics),
	)
	adminGuard := guard.New(provider, bridge,
		guard.WithClearDelay(clearDelay),
		guard.WithMetrics(guardMetrics),
		guard.WithAdminChecker(profiles),
	)

	// Cross-device handshake.
	scanTTL, err := cfg.Bridge.ParseScanSessionTTL()
	if err != nil {
		return err
	}
	exchange := tokenexchange.NewService(issuer, cfg.Server.AppOrigin,
		tokenexchange.WithScanSessionTTL(scanTTL),
	)
	defer exchange.Close()
	orchestrator := crossdevice.New(bridge, exchange, provider, cfg.Server.AppOrigin,
		crossdevice.WithMetrics(legMetrics),
		crossdevice.WithNotifier(notifier),
	)

	accessExpiry, err := cfg.JWT.ParseAccessTokenExpiry()
	if err != nil {
		return err
	}
	cookies := token.NewCookieSetter(cfg.JWT.CookieHttpOnly, cfg.JWT.CookieSecure)
	challenges := challengeapi.NewHandle(
		challenge.NewService(provider, bridge),
		cookies,
		challengeapi.WithAccessTokenExpiry(accessExpiry),
	)

	ja := jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Unauthenticated surfaces. The exchange endpoint is reachable from a
	// freshly scanned phone, so it is the brute-forceable one; rate limit it.
	exchangeHandle := tokenexchange.NewHandle(exchange)
	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			limiter := ratelimit.NewKeyedLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
			r.Use(ratelimit.Middleware(limiter))
		}
		r.Mount("/api/token", tokenexchange.Router(exchangeHandle))
	})
	r.Mount("/api/bridge", crossdevice.Handler(orchestrator))
	r.Mount("/api/2fa", challengeapi.Router(challenges))

	if local != nil {
		r.Mount("/api/auth", localAuthRouter(local, profiles, cookies, accessExpiry))
	}

	// Protected route trees.
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(ja))
		r.Group(func(r chi.Router) {
			r.Use(plainGuard.Handler)
			r.Mount("/dashboard", appShell("dashboard"))
			r.Mount("/api/scan-sessions", tokenexchange.AuthenticatedRouter(exchangeHandle))
		})
		r.Group(func(r chi.Router) {
			r.Use(adminGuard.Handler)
			r.Mount("/admin", appShell("admin"))
		})
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("authbridge listening", "addr", server.Addr, "provider", cfg.Provider.Mode)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedAccount provisions a development account and its profile row.
func seedAccount(ctx context.Context, local *idp.LocalProvider, profiles *profile.Service, cfg config.ProviderConfig) error {
	userID, err := local.CreateUser(ctx, idp.CreateUserParams{
		Email:    cfg.SeedEmail,
		Password: cfg.SeedPassword,
	})
	if err != nil {
		return err
	}
	if err := profiles.Upsert(ctx, profile.UpsertParams{
		UserID:  userID,
		Email:   cfg.SeedEmail,
		IsAdmin: cfg.SeedAdmin,
	}); err != nil {
		return err
	}
	slog.Info("seeded development account", "email", cfg.SeedEmail, "admin", cfg.SeedAdmin)
	return nil
}

// appShell stands in for the single-page application bundle behind a guard.
func appShell(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"app":%q}`, name)
	})
}
