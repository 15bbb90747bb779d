package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonny/guardian/internal/adapter/inbound/api/middleware"
	"github.com/jonny/guardian/pkg/health"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	RequestsPerMinute int
}

// Server wraps an HTTP server with graceful shutdown support.
type Server struct {
	cfg     ServerConfig
	handler *Handler
	checker *health.Checker
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates a Server with the given config and API handler.
func NewServer(cfg ServerConfig, handler *Handler, checker *health.Checker, logger *slog.Logger) *Server {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 240
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		checker: checker,
		logger:  logger,
	}
}

// SetupRoutes builds the full route table with middleware applied.
// Route layout:
//
//	POST /api/incidents                    - Submit a raw log
//	GET  /api/incidents                    - List incidents (status, min_risk, source, limit, offset)
//	GET  /api/incidents/pending-approval   - Incidents blocked on an operator
//	GET  /api/incidents/{id}               - Fetch one incident
//	POST /api/incidents/{id}/approve       - Approve execution
//	POST /api/incidents/{id}/deny          - Deny execution
//	GET  /api/incidents/{id}/ws            - Event stream for one incident
//	GET  /api/stats                        - Dashboard counters
//	GET  /api/state                        - Accumulated mitigation state
//	GET  /api/scheduler/status             - Passive scanner status
//	POST /api/scheduler/scan               - Trigger an out-of-band sweep
//	GET  /ws                               - Event stream for all incidents
//	GET  /health                           - Liveness
//	GET  /ready                            - Readiness
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/incidents", s.handler.handleSubmit)
	mux.HandleFunc("GET /api/incidents", s.handler.handleList)
	mux.HandleFunc("GET /api/incidents/pending-approval", s.handler.handlePendingApproval)
	mux.HandleFunc("GET /api/incidents/{id}", s.handler.handleGet)
	mux.HandleFunc("POST /api/incidents/{id}/approve", s.handler.handleApprove)
	mux.HandleFunc("POST /api/incidents/{id}/deny", s.handler.handleDeny)
	mux.HandleFunc("GET /api/incidents/{id}/ws", s.handler.handleWatchIncident)
	mux.HandleFunc("GET /api/stats", s.handler.handleStats)
	mux.HandleFunc("GET /api/state", s.handler.handleState)
	mux.HandleFunc("GET /api/scheduler/status", s.handler.handleSchedulerStatus)
	mux.HandleFunc("POST /api/scheduler/scan", s.handler.handleSchedulerScan)
	mux.HandleFunc("GET /ws", s.handler.handleWatchAll)
	mux.HandleFunc("GET /health", s.checker.LivenessHandler())
	mux.HandleFunc("GET /ready", s.checker.ReadinessHandler())

	// Apply middleware stack (outermost = first to execute):
	//   BodyLimit -> Logging -> RateLimit
	var h http.Handler = mux
	h = middleware.NewRateLimit(s.cfg.RequestsPerMinute)(h)
	h = middleware.NewLogging(s.logger)(h)
	h = middleware.BodyLimit(h)

	return h
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.SetupRoutes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", slog.Int("port", s.cfg.Port))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
