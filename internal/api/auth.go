package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/FocuswithJustin/docrevise/internal/logging"
)

// minAPIKeyLength is the shortest API key accepted.
const minAPIKeyLength = 16

// AuthMiddleware requires the X-API-Key header to equal key. An empty key
// disables the check. /health is always public. Browsers cannot set
// headers on websocket handshakes, so /ws also accepts the key in the
// api_key query parameter.
func AuthMiddleware(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get("X-API-Key")
		if got == "" && r.URL.Path == "/ws" {
			got = r.URL.Query().Get("api_key")
		}
		if got == "" {
			logging.WarnContext(r.Context(), "unauthorized_request", "path", r.URL.Path, "reason", "missing API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-API-Key header")
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			logging.WarnContext(r.Context(), "unauthorized_request", "path", r.URL.Path, "reason", "invalid API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateAPIKey rejects keys too short to be worth checking.
func ValidateAPIKey(key string) error {
	if key != "" && len(key) < minAPIKeyLength {
		return errAPIKeyTooShort
	}
	return nil
}
