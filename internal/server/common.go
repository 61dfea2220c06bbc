// Package server holds middleware shared by the HTTP endpoints.
package server

import (
	"net/http"
	"path/filepath"
	"slices"
)

// AbsPath returns the absolute form of path, or path itself if that fails.
func AbsPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	// AllowedOrigins lists the origins allowed to call the API. Empty allows
	// any origin (*).
	AllowedOrigins []string
}

// Allows reports whether origin may call the API.
func (c CORSConfig) Allows(origin string) bool {
	return len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, origin)
}

// CORSMiddlewareWithConfig adds CORS headers for allowed origins. A
// disallowed origin gets no CORS headers, so the browser blocks the
// response; its preflight is refused outright.
//
// Office add-ins run in a task pane served from a public origin and call
// this server on localhost, so private network preflights are answered too.
func CORSMiddlewareWithConfig(cfg CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !cfg.Allows(origin) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		allowedOrigin := "*"
		if len(cfg.AllowedOrigins) > 0 {
			allowedOrigin = origin
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")

		if r.Method == http.MethodOptions {
			if r.Header.Get("Access-Control-Request-Private-Network") == "true" {
				w.Header().Set("Access-Control-Allow-Private-Network", "true")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
