// Package api serves backtest jobs over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	handler "github.com/newthinker/rotator/internal/api/handler/api"
	"github.com/newthinker/rotator/internal/api/job"
	"github.com/newthinker/rotator/internal/api/middleware"
	"github.com/newthinker/rotator/internal/api/response"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/metrics"
	"github.com/newthinker/rotator/internal/provider"
	"github.com/newthinker/rotator/internal/storage/archive"
	"github.com/newthinker/rotator/internal/strategy"
	"go.uber.org/zap"
)

// Server represents the HTTP server for the backtest API
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     chi.Router
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	JobTTL      time.Duration
	MaxJobs     int
	Interval    string
	MetricsPath string
}

// ConfigFrom maps the application config onto server settings.
func ConfigFrom(cfg *config.Config) Config {
	c := Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		APIKey:   cfg.Server.APIKey,
		JobTTL:   time.Duration(cfg.Server.JobTTLHours) * time.Hour,
		MaxJobs:  cfg.Server.MaxJobs,
		Interval: cfg.Data.Interval,
	}
	if cfg.Metrics.Enabled {
		c.MetricsPath = cfg.Metrics.Path
		if c.MetricsPath == "" {
			c.MetricsPath = "/metrics"
		}
	}
	return c
}

// Dependencies holds the collaborators the routes need.
type Dependencies struct {
	Provider   provider.Provider
	Generators *strategy.Registry
	Strategy   config.StrategyConfig
	Archive    archive.Storage   // optional
	Metrics    *metrics.Registry // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("api server needs a price provider")
	}
	if deps.Generators == nil {
		return nil, fmt.Errorf("api server needs a generator registry")
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}

	r := chi.NewRouter()
	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		router: r,
	}

	s.setupRoutes(cfg, deps)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	r := s.router
	r.Use(chimw.Recoverer)
	r.Use(metrics.LoggingMiddleware(s.logger))
	if deps.Metrics != nil {
		r.Use(metrics.HTTPMiddleware(deps.Metrics))
		if cfg.MetricsPath != "" {
			r.Handle(cfg.MetricsPath, deps.Metrics.Handler())
		}
	}

	opts := []handler.Option{
		handler.WithLogger(s.logger),
		handler.WithInterval(cfg.Interval),
	}
	if deps.Archive != nil {
		opts = append(opts, handler.WithArchive(deps.Archive))
	}
	if deps.Metrics != nil {
		opts = append(opts, handler.WithMetrics(deps.Metrics))
	}
	jobs := job.NewStore(cfg.MaxJobs, cfg.JobTTL)
	backtests := handler.NewBacktestHandler(jobs, deps.Provider, deps.Generators, deps.Strategy, opts...)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(cfg.APIKey))
			r.Get("/backtests", backtests.List)
			r.Post("/backtests", backtests.Create)
			r.Get("/backtests/{id}", backtests.Get)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
