// Package api exposes the calculation engines and analytics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/cache"
	"github.com/complyhub/comply/internal/compliance"
	"github.com/complyhub/comply/internal/config"
	"github.com/complyhub/comply/internal/risk"
	"github.com/complyhub/comply/internal/scheduler"
	"github.com/complyhub/comply/internal/store"
)

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	store  *store.Store
	http   *http.Server
	logger *slog.Logger

	complianceEngine *compliance.Engine
	riskEngine       *risk.Engine

	scheduler *scheduler.Scheduler
	cache     *cache.Cache
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCache enables the Redis analytics cache. Without it every
// analytics read hits the database.
func WithCache(c *cache.Cache) ServerOption {
	return func(s *Server) {
		s.cache = c
	}
}

func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	st, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		store:  st,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.complianceEngine = compliance.NewEngine(st, s.logger)
	s.riskEngine = risk.NewEngine(st, s.logger)

	s.scheduler = scheduler.New(store.NewJobStore(st), s.logger)
	handlers := &scheduler.RecalculationHandlers{
		RecalculateFramework: func(ctx context.Context, companyID, frameworkID uuid.UUID) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.Engine.CalculateTimeout)
			defer cancel()
			_, err := s.complianceEngine.CalculateFramework(ctx, companyID, frameworkID, nil, nil)
			if err == nil {
				s.invalidateCache(ctx, companyID)
			}
			return err
		},
		RecalculateAll: func(ctx context.Context, companyID uuid.UUID) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.Engine.CalculateTimeout)
			defer cancel()
			_, err := s.complianceEngine.CalculateAll(ctx, companyID)
			if err == nil {
				s.invalidateCache(ctx, companyID)
			}
			return err
		},
	}
	handlers.Register(s.scheduler)

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(s.corsMiddleware())
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	allowOrigin := s.cfg.Server.CORSAllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
		s.logger.Warn("CORS Allow-Origin set to '*' - configure server.cors_allow_origin in production")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/frameworks", func(r chi.Router) {
			r.Get("/", s.listFrameworks)
			r.Get("/{frameworkID}", s.getFramework)
			r.Get("/{frameworkID}/requirements", s.getFrameworkRequirements)
		})

		r.Route("/compliance", func(r chi.Router) {
			r.Post("/calculate", s.calculateFramework)
			r.Post("/calculate-all", s.calculateAllFrameworks)
			r.Get("/results/current", s.getCurrentResult)
			r.Get("/overview", s.getComplianceOverview)
			r.Get("/trends", s.getComplianceTrends)
			r.Get("/gap-analysis", s.getGapAnalysis)
			r.Get("/recommendations", s.getComplianceRecommendations)
		})

		r.Route("/gaps", func(r chi.Router) {
			r.Get("/", s.listGaps)
			r.Patch("/{gapID}/status", s.updateGapStatus)
		})

		r.Route("/risk-matrices", func(r chi.Router) {
			r.Post("/", s.createRiskMatrix)
			r.Post("/default", s.seedDefaultRiskMatrix)
			r.Get("/active", s.getActiveRiskMatrix)
			r.Get("/{matrixID}", s.getRiskMatrix)
			r.Post("/{matrixID}/activate", s.activateRiskMatrix)
		})

		r.Route("/risks", func(r chi.Router) {
			r.Get("/", s.listRisks)
			r.Post("/", s.createRisk)
			r.Get("/{riskID}", s.getRisk)
			r.Patch("/{riskID}/status", s.updateRiskStatus)
			r.Post("/{riskID}/assess", s.assessRisk)
			r.Get("/{riskID}/residual", s.getResidualRisk)
			r.Get("/{riskID}/assessments", s.getRiskAssessments)
			r.Get("/{riskID}/events", s.listRiskEvents)
			r.Post("/{riskID}/events", s.createRiskEvent)
			r.Get("/{riskID}/actions", s.listTreatmentActions)
			r.Post("/{riskID}/actions", s.createTreatmentAction)
		})

		r.Route("/risk-analytics", func(r chi.Router) {
			r.Get("/summary", s.getRiskRegisterSummary)
			r.Get("/heat-map", s.getRiskHeatMap)
			r.Get("/top", s.getTopRisks)
			r.Get("/trends", s.getRiskTrends)
			r.Get("/treatment-priorities", s.getTreatmentPriorities)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listScheduledJobs)
			r.Post("/", s.createScheduledJob)
			r.Delete("/{jobID}", s.deleteScheduledJob)
			r.Post("/{jobID}/run", s.runScheduledJobNow)
			r.Patch("/{jobID}/enabled", s.setScheduledJobEnabled)
			r.Get("/{jobID}/executions", s.getJobExecutions)
		})
	})
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		s.logger.Error("failed to start scheduler", "error", err)
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) Close() error {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	return s.store.Close()
}

// invalidateCache drops a company's cached analytics after new data
// lands. Cache failures only get logged; they never fail the write path.
func (s *Server) invalidateCache(ctx context.Context, companyID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCompany(ctx, companyID); err != nil {
		s.logger.Error("cache invalidation failed", "company_id", companyID, "error", err)
	}
}

func (s *Server) cacheKey(companyID uuid.UUID, view string, extra ...string) string {
	return cache.Key(companyID, view, extra...)
}

// cachedJSON serves a cached analytics view or computes and caches it.
func (s *Server) cachedJSON(w http.ResponseWriter, r *http.Request, key string, fetch func() (interface{}, error)) {
	if s.cache != nil {
		var cached json.RawMessage
		hit, err := s.cache.Get(r.Context(), key, &cached)
		if err != nil {
			s.logger.Error("cache read failed", "key", key, "error", err)
		} else if hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	data, err := fetch()
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), key, data); err != nil {
			s.logger.Error("cache write failed", "key", key, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, data)
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    *apiMeta    `json:"meta,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiMeta struct {
	Total int `json:"total,omitempty"`
	Limit int `json:"limit,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondJSONWithMeta(w http.ResponseWriter, status int, data interface{}, meta *apiMeta) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db_unavailable", "Database not available")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
