package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
)

// Middleware returns a chi-compatible middleware that rate limits requests
// per client IP using a KeyedLimiter.
func Middleware(limiter *KeyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !limiter.Allow(host) {
				slog.Warn("rate limit exceeded", "remote", host, "path", r.URL.Path)
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
