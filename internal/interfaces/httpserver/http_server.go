package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"studyhall/chat-api/internal/config"
	"studyhall/chat-api/internal/infrastructure/auth"
	middleware "studyhall/chat-api/internal/interfaces/httpserver/middlewares"
	v1 "studyhall/chat-api/internal/interfaces/httpserver/routes/v1"
)

type HTTPServer struct {
	engine    *gin.Engine
	v1Route   *v1.V1Route
	validator *auth.TokenValidator
	logger    zerolog.Logger
	config    *config.Config
	server    *http.Server
}

func NewHTTPServer(
	v1Route *v1.V1Route,
	validator *auth.TokenValidator,
	logger zerolog.Logger,
	cfg *config.Config,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := &HTTPServer{
		engine:    gin.New(),
		v1Route:   v1Route,
		validator: validator,
		logger:    logger,
		config:    cfg,
	}
	server.engine.Use(gin.Recovery())
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	server.engine.Use(middleware.LoggingMiddleware(logger))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness gates on the JWKS cache: without keys every request would
	// bounce with 401 anyway.
	server.engine.GET("/readyz", func(c *gin.Context) {
		if !server.validator.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "waiting for jwks"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	protected := server.engine.Group("/")
	protected.Use(middleware.AuthMiddleware(validator, logger))
	server.v1Route.RegisterRouter(protected)

	return server
}

// Run serves HTTP until the context is cancelled, then drains connections.
func (s *HTTPServer) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info().Int("port", s.config.HTTPPort).Msg("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
