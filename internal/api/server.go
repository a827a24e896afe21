// Package api provides the read-only monitoring HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kindred-labs/genealogy-enrich/internal/api/middleware"
)

// StagingSummary is the JSON shape returned by GET /v1/summary.
type StagingSummary struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ErrorEntry is one row of the JSON array returned by GET /v1/errors.
type ErrorEntry struct {
	OccurredAt time.Time `json:"occurred_at"`
	SourceKey  string    `json:"source_key"`
	ErrorType  string    `json:"error_type"`
	Message    string    `json:"message"`
}

// SourceStats is one row of the JSON array returned by GET /v1/stats.
type SourceStats struct {
	SourceKey    string    `json:"source_key"`
	RequestCount int       `json:"request_count"`
	LastRequest  time.Time `json:"last_request"`
	Processed    int       `json:"processed"`
}

// SummaryProvider reports staged-finding counts by review status.
type SummaryProvider interface {
	Summary(ctx context.Context) (StagingSummary, error)
}

// ErrorsProvider reports the most recent error-journal entries.
type ErrorsProvider interface {
	Recent(ctx context.Context, limit int) ([]ErrorEntry, error)
}

// StatsProvider reports per-source request and dedup counters.
type StatsProvider interface {
	Stats(ctx context.Context) ([]SourceStats, error)
}

// Server is the read-only monitoring HTTP surface. It never approves,
// rejects, or submits findings - those operations belong to the orchestrator
// and the interactive review workflow, both out of scope for this surface.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	rateLimiter middleware.RateLimiter
	summary     SummaryProvider
	errorsLog   ErrorsProvider
	stats       StatsProvider
}

// NewServer creates a monitoring server instance with structured logging and
// a middleware stack adapted from the plugin-authenticated API this pattern
// was learned from, simplified to this surface's single static API key.
//
// summary, errorsLog, and stats may each be nil, in which case their routes
// respond 503; this lets the server start before the orchestrator's stores
// are wired up.
func NewServer(
	cfg *ServerConfig,
	rateLimiter middleware.RateLimiter,
	summary SummaryProvider,
	errorsLog ErrorsProvider,
	stats StatsProvider,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		rateLimiter: rateLimiter,
		summary:     summary,
		errorsLog:   errorsLog,
		stats:       stats,
	}

	server.setupRoutes(mux)

	if cfg.APIKey != "" {
		logger.Info("API key authentication enabled")
	} else {
		logger.Warn("no api.key configured - monitoring surface is unauthenticated")
	}

	if rateLimiter != nil {
		logger.Info("rate limiting middleware enabled")
	} else {
		logger.Warn("no rate limiter configured - rate limiting middleware disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. AuthKey - reject requests missing the configured api.key
	//   4. RateLimit - block requests before expensive operations
	//   5. RequestLogger - log only legitimate requests
	//   6. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithAuthKey(cfg.APIKey, logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/summary", s.handleSummary)
	mux.HandleFunc("GET /v1/errors", s.handleErrors)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summary == nil {
		s.writeProblem(w, r, http.StatusServiceUnavailable, "staging summary not available")

		return
	}

	result, err := s.summary.Summary(r.Context())
	if err != nil {
		s.logger.Error("failed to load staging summary", slog.String("error", err.Error()))
		s.writeProblem(w, r, http.StatusInternalServerError, "failed to load staging summary")

		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	if s.errorsLog == nil {
		s.writeProblem(w, r, http.StatusServiceUnavailable, "error journal not available")

		return
	}

	const defaultLimit = 50

	entries, err := s.errorsLog.Recent(r.Context(), defaultLimit)
	if err != nil {
		s.logger.Error("failed to load error journal", slog.String("error", err.Error()))
		s.writeProblem(w, r, http.StatusInternalServerError, "failed to load error journal")

		return
	}

	s.writeJSON(w, r, http.StatusOK, entries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.writeProblem(w, r, http.StatusServiceUnavailable, "source stats not available")

		return
	}

	result, err := s.stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to load source stats", slog.String("error", err.Error()))
		s.writeProblem(w, r, http.StatusInternalServerError, "failed to load source stats")

		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-ID", middleware.GetCorrelationID(r.Context()))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeProblem writes an RFC 7807 application/problem+json body.
func (s *Server) writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	correlationID := middleware.GetCorrelationID(r.Context())

	problem := map[string]any{
		"type":          fmt.Sprintf("https://genealogy-enrich.kindred-labs.dev/problems/%d", status),
		"title":         http.StatusText(status),
		"status":        status,
		"detail":        detail,
		"instance":      r.URL.Path,
		"correlationId": correlationID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		s.logger.Error("failed to encode problem response", slog.String("error", err.Error()))
	}
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting monitoring server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("initiating server shutdown", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.closeRateLimiter()

	s.logger.Info("server shutdown completed successfully")

	return nil
}

// rateLimiterCloser matches InMemoryRateLimiter.Close, which intentionally
// has no error return (see middleware/ratelimit.go) so RateLimiter
// implementations without cleanup needs aren't forced to provide one.
type rateLimiterCloser interface {
	Close()
}

func (s *Server) closeRateLimiter() {
	if s.rateLimiter == nil {
		return
	}

	if closer, ok := s.rateLimiter.(rateLimiterCloser); ok {
		s.logger.Info("closing rate limiter")
		closer.Close()
	}
}
