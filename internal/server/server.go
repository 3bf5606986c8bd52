// Package server exposes a small read-only ops API: health, open positions,
// P&L, and execution history. It never places or cancels orders.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// Book is the ledger surface the API reads from.
type Book interface {
	Positions() []domain.Position
	RealizedPnl() float64
	UnrealizedPnl() float64
}

// Config holds the listener settings. An empty APIKey disables
// authentication.
type Config struct {
	Port   int
	APIKey string
}

// Server serves the ops API over HTTP.
type Server struct {
	httpServer *http.Server
	book       Book
	execs      domain.ExecutionStore // optional
	logger     *slog.Logger
}

// New creates a Server with all routes registered. execs may be nil when
// execution recording is disabled.
func New(cfg Config, book Book, execs domain.ExecutionStore, logger *slog.Logger) *Server {
	s := &Server{
		book:   book,
		execs:  execs,
		logger: logger.With(slog.String("component", "server")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/pnl", s.handlePnl)
	mux.HandleFunc("GET /api/executions", s.handleExecutions)

	var h http.Handler = mux
	h = auth(cfg.APIKey, h)
	h = requestLogging(s.logger, h)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Run listens until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("ops api listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return ctx.Err()
	}
}

// Handler returns the configured HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	positions := s.book.Positions()
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handlePnl(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{
		"realized":   s.book.RealizedPnl(),
		"unrealized": s.book.UnrealizedPnl(),
	})
}

// handleExecutions returns executions from the last N hours (default 24,
// query param "hours").
func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if s.execs == nil {
		writeError(w, http.StatusNotFound, "execution recording is not enabled")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}

	results, err := s.execs.ListSince(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list executions failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	if results == nil {
		results = []domain.ExecutionResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
