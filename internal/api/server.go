// Package api serves one open document over HTTP so a word processor
// add-in can list paragraphs and push revisions into them.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/internal/logging"
	"github.com/FocuswithJustin/docrevise/internal/server"
)

var errAPIKeyTooShort = errors.NewValidation("api_key", fmt.Sprintf("must be at least %d characters", minAPIKeyLength))

// Server is the HTTP front end of a Session.
type Server struct {
	cfg     Config
	session *Session
	hub     *Hub
	cors    server.CORSConfig
	started time.Time
}

// New creates a server and starts its websocket hub. Call Close when done.
func New(cfg Config, session *Session) (*Server, error) {
	if err := ValidateAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		session: session,
		hub:     NewHub(),
		cors:    server.CORSConfig{AllowedOrigins: cfg.AllowedOrigins},
		started: time.Now(),
	}
	go s.hub.Run()
	return s, nil
}

// Close stops the websocket hub.
func (s *Server) Close() {
	s.hub.Stop()
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.routes()
	handler = server.SecurityHeadersWithCSP(server.APICSPConfig(), handler)
	handler = AuthMiddleware(s.cfg.APIKey, handler)
	handler = server.CORSMiddlewareWithConfig(s.cors, handler)
	return logging.CombinedMiddleware(handler)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/paragraphs", s.handleParagraphs)
	mux.HandleFunc("/paragraphs/{id}", s.handleParagraphByID)
	mux.HandleFunc("/batches", s.handleBatches)
	mux.HandleFunc("/replace/full", s.handleReplaceFull)
	mux.HandleFunc("/replace/span", s.handleReplaceSpan)
	mux.HandleFunc("/undo", s.handleUndo)
	mux.HandleFunc("/save", s.handleSave)
	mux.HandleFunc("/revisions", s.handleRevisions)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logging.GetLogger().Handler(), slog.LevelError),
	}

	if len(s.cfg.AllowedOrigins) == 0 {
		logging.Warn("CORS allows all origins", "recommendation", "set api.allowed_origins to the add-in origin")
	}
	logging.ServerStartup("rest_api", "http", s.cfg.Port,
		"document", server.AbsPath(s.session.Path()),
		"auth", s.cfg.APIKey != "",
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logging.Info("server stopped", "type", "rest_api")
	return nil
}
