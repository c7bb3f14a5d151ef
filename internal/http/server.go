// Package http exposes the payment schedule engine as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "payplan/internal/log"
	"payplan/internal/services"
)

// Services are the use cases the API serves. Any of them may be nil in tests
// that do not exercise the matching routes.
type Services struct {
	Ledger      *services.LedgerService
	Instruments *services.InstrumentService
	Fixes       *services.FixService
	Schedule    *services.ScheduleService
}

type Server struct {
	http.Server
	svc         Services
	logger      *applog.Logger
	requests    *applog.StructuredLogger
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentHTTP, Handler: slog.Default().Handler()})
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		svc:         svc,
		logger:      logger,
		requests:    applog.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(60, time.Minute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/schedule", s.withMiddleware(s.handleMonthView))
	mux.HandleFunc("GET /api/day-totals", s.withMiddleware(s.handleDayTotals))
	mux.HandleFunc("POST /api/day-totals", s.withMiddleware(s.handleDayTotalsFromItems))
	mux.HandleFunc("GET /api/cycle", s.withMiddleware(s.handleCycle))

	mux.HandleFunc("GET /api/instruments", s.withMiddleware(s.handleListInstruments))
	mux.HandleFunc("PUT /api/instruments/{id}/billing", s.withMiddleware(s.handleUpdateBilling))

	mux.HandleFunc("POST /api/entries", s.withMiddleware(s.handleCreateEntry))
	mux.HandleFunc("PATCH /api/entries/{id}", s.withMiddleware(s.handleEditEntry))

	mux.HandleFunc("GET /api/analysis", s.withMiddleware(s.handleAnalysis))
	mux.HandleFunc("GET /api/fixes/proposed", s.withMiddleware(s.handleProposedFixes))
	mux.HandleFunc("POST /api/fixes/preview", s.withMiddleware(s.handlePreviewFixes))
	mux.HandleFunc("POST /api/fixes/apply", s.withMiddleware(s.handleApplyFixes))
	mux.HandleFunc("GET /api/fixes/runs", s.withMiddleware(s.handleFixRuns))
	mux.HandleFunc("POST /api/reconcile", s.withMiddleware(s.handleReconcile))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the schedule service can read the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Instruments == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.svc.Instruments.List(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
