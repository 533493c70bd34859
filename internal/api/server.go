// Package api exposes the risk service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/obiboss/ckd/internal/auth"
	"github.com/obiboss/ckd/internal/cache"
	"github.com/obiboss/ckd/internal/domain"
	"github.com/obiboss/ckd/internal/metrics"
	"github.com/obiboss/ckd/internal/middleware"
	"github.com/obiboss/ckd/internal/store"
)

// Dependencies carries the collaborators the server routes to.
// Patients may be nil when the service runs without Postgres.
type Dependencies struct {
	Scorer   domain.RiskScorer
	Store    store.Store
	Cache    *cache.ResultCache
	Auth     *auth.Service
	Patients domain.PatientRepository
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	deps          Dependencies
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(metrics.Middleware())

	if cfg.Server.RateLimit > 0 {
		burst := cfg.Server.RateBurst
		if burst <= 0 {
			burst = int(cfg.Server.RateLimit)
		}
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, burst)
		router.Use(limiter.Middleware())
	}

	server := &Server{
		configManager: configManager,
		logger:        logger,
		deps:          deps,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/api/v1")
	v1.POST("/auth/login", s.handleLogin)

	authed := v1.Group("")
	authed.Use(middleware.AuthRequired(s.deps.Auth))
	{
		authed.POST("/predict", s.handlePredict)
		authed.GET("/predictions", s.handleListPredictions)
		authed.POST("/patients", s.handleCreatePatient)
		authed.GET("/patients", s.handleListPatients)
		authed.GET("/patients/:id", s.handleGetPatient)
	}
}
