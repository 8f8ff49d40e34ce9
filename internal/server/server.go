// Package server exposes the insight engine and the assistant over HTTP
// and WebSocket. Requests are scoped by the X-User-ID header; transport
// authentication stays outside this layer.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledgerlens/ledgerlens/internal/assistant"
	"github.com/ledgerlens/ledgerlens/internal/engine"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// InsightReader lists a user's current insights.
type InsightReader interface {
	GetActiveInsights(ctx context.Context, userID string, now time.Time) ([]model.Insight, error)
}

// Analyzer runs on-demand detector queries.
type Analyzer interface {
	DetectSubscriptions(ctx context.Context, userID string) ([]model.RecurringCandidate, error)
	EvaluateGoals(ctx context.Context, userID string) ([]engine.GoalResult, error)
}

// Asker runs one conversational turn.
type Asker interface {
	Ask(ctx context.Context, userID, conversationID, message string) (*assistant.Response, error)
}

// Deps contains all dependencies required by the server.
type Deps struct {
	// Insights reads the persisted insight feed.
	Insights InsightReader
	// Analyzer answers subscription and goal queries.
	Analyzer Analyzer
	// Asker handles chat turns.
	Asker Asker
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Insights == nil {
		return fmt.Errorf("insight reader dependency is required")
	}
	if d.Analyzer == nil {
		return fmt.Errorf("analyzer dependency is required")
	}
	if d.Asker == nil {
		return fmt.Errorf("asker dependency is required")
	}
	return nil
}

// Config holds server tuning options.
type Config struct {
	// TLSCert enables HTTPS when set.
	TLSCert *tls.Certificate
	// Addr is the listen address.
	Addr string
	// ShutdownTimeout bounds how long graceful shutdown waits.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server serves the JSON API and the WebSocket chat endpoint.
type Server struct {
	deps     Deps
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	http     *http.Server
}

// NewServer creates a server with the provided dependencies.
func NewServer(deps Deps, config Config) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	s := &Server{
		deps:   deps,
		config: config,
		logger: slog.Default().With("component", "server"),
		upgrader: websocket.Upgrader{
			// The server fronts a local, single-operator tool.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	s.http = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if config.TLSCert != nil {
		s.http.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*config.TLSCert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return s, nil
}

// Handler returns the full route table, usable without Start for tests
// and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/insights", s.withUser(s.handleInsights))
	mux.HandleFunc("/api/subscriptions", s.withUser(s.handleSubscriptions))
	mux.HandleFunc("/api/goals/feasibility", s.withUser(s.handleGoalFeasibility))
	mux.HandleFunc("/api/chat", s.withUser(s.handleChat))
	mux.HandleFunc("/ws", s.withUser(s.handleWebSocket))
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.http.TLSConfig != nil {
			errCh <- s.http.ListenAndServeTLS("", "")
		} else {
			errCh <- s.http.ListenAndServe()
		}
	}()

	s.logger.Info("Server listening", "addr", s.config.Addr, "tls", s.http.TLSConfig != nil)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %w", err)
		}
		s.logger.Info("Server stopped")
		return nil
	}
}

// userHandler is an http handler with the calling user resolved.
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser resolves the X-User-ID header before the handler runs.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "X-User-ID header is required")
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
