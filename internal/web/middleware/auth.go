package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/siteinventory/internal/config"
	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/logging"
)

// APIKeyHeader carries the client key on /api requests.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth checks X-API-Key against the configured keys when RequireAPIKey
// is set. Accepted requests carry the actor "key#N" (1-based position of the
// matching key) so imports and mutations can be attributed without logging the
// key itself. With RequireAPIKey set and no keys configured, every request is
// rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			logger := logging.FromContext(r.Context())
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				logger.Warn("auth: missing API key", "path", r.URL.Path, "ip", r.RemoteAddr)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}

			idx := matchAPIKey(key, cfg.APIKeys)
			if idx < 0 {
				logger.Warn("auth: invalid API key", "path", r.URL.Path, "ip", r.RemoteAddr)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}

			ctx := core.ContextWithActor(r.Context(), "key#"+strconv.Itoa(idx+1))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// matchAPIKey returns the index of the matching key or -1. Every configured
// key is compared so timing does not depend on which one matched.
func matchAPIKey(key string, keys []string) int {
	match := -1
	for i, k := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 && match < 0 {
			match = i
		}
	}
	return match
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   msg,
		"message": msg,
		"code":    code,
	})
}
