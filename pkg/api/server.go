// Package api provides the HTTP shell of the service: the improve-prompt
// endpoint, health, history/statistics reads and the metrics exposition.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptforge-dev/promptforge/pkg/config"
	"github.com/promptforge-dev/promptforge/pkg/database"
	"github.com/promptforge-dev/promptforge/pkg/orchestrator"
	"github.com/promptforge-dev/promptforge/pkg/pool"
	"github.com/promptforge-dev/promptforge/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	validate   *validator.Validate

	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	history  *services.PromptHistoryService // nil when persistence disabled
	dbClient *database.Client               // nil when persistence disabled
	pool     *pool.Pool
}

// NewServer creates a new API server with Echo v5.
func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, p *pool.Pool) *Server {
	e := echo.New()

	s := &Server{
		echo:     e,
		validate: validator.New(),
		cfg:      cfg,
		orch:     orch,
		pool:     p,
	}

	e.HTTPErrorHandler = errorHandler
	s.setupRoutes()
	return s
}

// SetHistoryService wires the repository-backed read endpoints.
func (s *Server) SetHistoryService(svc *services.PromptHistoryService) {
	s.history = svc
}

// SetDatabaseClient wires the database health check.
func (s *Server) SetDatabaseClient(client *database.Client) {
	s.dbClient = client
}

// ValidateWiring checks that required collaborators are present. Call after
// all Set* calls and before Start, so wiring gaps fail at startup rather than
// surfacing as 500s at request time.
func (s *Server) ValidateWiring() error {
	if s.orch == nil {
		return fmt.Errorf("orchestrator not set")
	}
	if s.cfg.Storage.Enabled && s.history == nil {
		return fmt.Errorf("storage enabled but history service not set (call SetHistoryService)")
	}
	return nil
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(requestMetrics())

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", func(c *echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/improve-prompt", s.improvePromptHandler)

	// History read endpoints (static paths before :id param).
	v1.GET("/history", s.listHistoryHandler)
	v1.GET("/history/search", s.searchHistoryHandler)
	v1.DELETE("/history/old", s.retentionSweepHandler)
	v1.GET("/history/:id", s.getHistoryHandler)

	v1.GET("/stats", s.statsHandler)
}

// Start runs the HTTP server on addr, blocking until shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on an existing listener (tests).
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Echo exposes the handler for in-process tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
