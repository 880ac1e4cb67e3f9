// Package api exposes the assistant and a few CRM reads over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/bluewise/internal/api/auth"
	tenantmw "github.com/bluewise/internal/api/middleware"
	"github.com/bluewise/internal/logging"
	"github.com/bluewise/internal/metrics"
	"github.com/bluewise/internal/orchestrator"
	"github.com/bluewise/internal/store"
	"github.com/bluewise/internal/tools"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the handlers use
type Deps struct {
	Store        store.Store
	Registry     *tools.Registry
	Orchestrator *orchestrator.Orchestrator
	Tokens       *auth.TokenService
	RateLimit    float64
	RateBurst    int
}

// Server represents the API server
type Server struct {
	echo *echo.Echo
	port int
	deps Deps
}

// NewServer creates a new API server
func NewServer(port int, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request handled")
			return nil
		},
	}))
	e.Use(middleware.CORS())

	server := &Server{echo: e, port: port, deps: deps}
	server.setupRoutes()
	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	limiter := tenantmw.NewTenantLimiter(s.deps.RateLimit, s.deps.RateBurst)
	v1 := s.echo.Group("/api/v1", auth.RequireAuth(s.deps.Tokens), requestLogger, limiter.Middleware())

	v1.POST("/ask", s.ask)
	v1.POST("/send", s.send)
	v1.GET("/leads", s.listLeads)
	v1.GET("/tasks", s.listTasks)
	v1.POST("/tasks/:id/complete", s.completeTask)
}

// requestLogger puts a logger tagged with the request id and tenant on the request context
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		customerID, _ := auth.CustomerID(c)
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequest(c.Request().Context(), requestID, customerID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ServeHTTP lets the server be driven directly by tests and other muxes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Msg("Shutting down API server")
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) tenant(c echo.Context) (store.Tenant, error) {
	customerID, ok := auth.CustomerID(c)
	if !ok {
		return store.Tenant{}, echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing authentication")
	}
	return store.NewTenant(customerID, s.deps.Store), nil
}
