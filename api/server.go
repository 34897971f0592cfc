// Package api provides the HTTP REST API server for FinInsight.
//
// It exposes single and batch ticker analysis, the API key status and a
// health check.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/seenimoa/fininsight/internal/config"
	"github.com/seenimoa/fininsight/internal/datasource"
	"github.com/seenimoa/fininsight/internal/engine"
	"github.com/seenimoa/fininsight/internal/report"
	"github.com/seenimoa/fininsight/pkg/models"
)

// MaxBatchSize caps the tickers accepted by one batch request.
const MaxBatchSize = 20

// analyzeTimeout bounds one request's analysis work.
const analyzeTimeout = 2 * time.Minute

// Analyzer runs analyses. *engine.Engine implements it.
type Analyzer interface {
	Analyze(ctx context.Context, ticker string) (*models.AnalysisResult, error)
	AnalyzeMany(ctx context.Context, tickers []string) ([]engine.Outcome, error)
}

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	analyzer  Analyzer
	validate  *validator.Validate
	version   string
	startedAt time.Time
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, analyzer Analyzer, version string) *Server {
	srv := &Server{
		cfg:       cfg,
		analyzer:  analyzer,
		validate:  validator.New(),
		version:   version,
		startedAt: time.Now(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: analyzeTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(middleware.Timeout(analyzeTimeout))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Analysis
		r.Get("/analyze/{ticker}", s.handleAnalyzeTicker)
		r.Post("/analyze", s.handleAnalyzeBatch)

		// Configuration
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

// ════════════════════════════════════════════════════════════════════
// Request / Response Types
// ════════════════════════════════════════════════════════════════════

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AnalyzeRequest is the body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	Tickers []string `json:"tickers" validate:"required,min=1,max=20,dive,required"`
}

// BatchItem is one ticker's outcome in a batch response. Exactly one of
// Result and Error is set.
type BatchItem struct {
	Ticker string                 `json:"ticker"`
	Result *models.AnalysisResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"version": s.version,
			"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		},
	})
}

func (s *Server) handleAnalyzeTicker(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), ticker)
	if err != nil {
		writeError(w, statusFor(err), report.NewErrorResult(err).Error)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    res,
	})
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("tickers must list 1 to %d non-empty symbols", MaxBatchSize))
		return
	}

	outcomes, err := s.analyzer.AnalyzeMany(r.Context(), req.Tickers)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "analysis cancelled: "+err.Error())
		return
	}

	items := make([]BatchItem, len(outcomes))
	for i, o := range outcomes {
		items[i] = BatchItem{Ticker: o.Ticker, Result: o.Result}
		if o.Err != nil {
			items[i].Error = report.NewErrorResult(o.Err).Error
		}
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    items,
	})
}

// handleGetConfigKeys returns the status of the optional API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// statusFor maps an analysis failure onto an HTTP status.
func statusFor(err error) int {
	var ae *engine.AnalysisError
	switch {
	case errors.As(err, &ae) && ae.Kind == engine.KindInvalidTicker:
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
