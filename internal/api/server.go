package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/middleware"
	"github.com/coaching-health-scorer/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	config  domain.ServerConfig
	logger  *logrus.Logger
	service *service.AssessmentService
	limiter *middleware.IPRateLimiter
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config domain.ServerConfig, svc *service.AssessmentService, logger *logrus.Logger) *Server {
	// Set Gin mode based on log level
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestTimeout(config.RequestTimeout))

	s := &Server{
		config:  config,
		logger:  logger,
		service: svc,
		router:  router,
	}

	if config.RateLimit > 0 {
		s.limiter = middleware.NewIPRateLimiter(config.RateLimit, config.RateBurst, logger)
	}

	s.setupRoutes()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	stop := make(chan struct{})
	defer close(stop)
	if s.limiter != nil {
		go s.limiter.Run(time.Minute, stop)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	if s.limiter != nil {
		v1.Use(s.limiter.Middleware())
	}
	{
		v1.POST("/naq/score", s.handleScoreNAQ)
		v1.POST("/micronutrients/score", s.handleScoreMicronutrients)
		v1.GET("/submissions/:id/naq", s.handleLatestNAQ)
		v1.GET("/submissions/:id/micronutrients", s.handleLatestMicronutrients)
		v1.GET("/rules/naq", s.handleNAQRules)
		v1.GET("/rules/micronutrients", s.handleMicronutrientRules)
	}
}
