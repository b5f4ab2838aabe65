package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// APIKeyAuth validates API keys on /api/v1/* routes.
//
// When keys are configured (auth.api_keys), requests must carry one via:
//   - Authorization: Bearer <key>
//   - X-API-Key: <key>
//   - api_key query parameter (browser EventSource and WebSocket clients
//     cannot set headers)
//
// /health and /version are always public. With no keys, auth is disabled.
type APIKeyAuth struct {
	keys [][]byte
}

// NewAPIKeyAuth creates the middleware from configured keys. Blank keys
// are ignored.
func NewAPIKeyAuth(keys []string) *APIKeyAuth {
	a := &APIKeyAuth{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" {
			a.keys = append(a.keys, []byte(k))
		}
	}
	return a
}

// Enabled returns whether API key auth is active.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.keys) > 0
}

// Middleware returns an http.Handler middleware that enforces API key auth.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			respondUnauthorized(w, "API key required. Set Authorization: Bearer <key> or X-API-Key header.")
			return
		}

		// Constant-time comparison
		if !a.validateKey(apiKey) {
			respondUnauthorized(w, "Invalid API key.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *APIKeyAuth) validateKey(candidate string) bool {
	ok := false
	for _, key := range a.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), key) == 1 {
			ok = true
		}
	}
	return ok
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key
	}
	return ""
}

func isPublicPath(path string) bool {
	return path == "/health" || path == "/version"
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="boardroom"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": msg,
	})
}
