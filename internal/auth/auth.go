// Package auth guards the mutating HTTP surface with a static bearer token.
// Field synthesis serves read-only public data, so point, grid, and model
// queries and the probe endpoints never require a token; only the table
// refresh does, and only when auth is enabled.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// public reports whether the path serves read-only data and bypasses the
// token check regardless of configuration.
func public(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/v1/model", "/api/v1/grid":
		return true
	}
	return strings.HasPrefix(path, "/api/v1/field")
}

// tokenMatches checks an Authorization header against the configured token
// in constant time.
func tokenMatches(header, want string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

// Middleware enforces the bearer token on non-public paths when enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || public(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !tokenMatches(r.Header.Get("Authorization"), cfg.Token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
