package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/promptforge-dev/promptforge/pkg/database"
	"github.com/promptforge-dev/promptforge/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health. External dependencies (the LLM provider)
// are reported but not probed, so an upstream outage never makes the process
// look dead to its own orchestration.
func (s *Server) healthHandler(c *echo.Context) error {
	status := healthStatusHealthy
	dbStatus := ""

	if s.cfg.Storage.Enabled && s.dbClient != nil {
		reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		db, err := s.dbClient.DB(reqCtx)
		if err != nil {
			status = healthStatusDegraded
			dbStatus = err.Error()
		} else if dbStatus, err = database.Health(reqCtx, db); err != nil {
			status = healthStatusDegraded
		}
	}

	size := 0
	if s.pool != nil {
		size = s.pool.Size()
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	stats := s.cfg.Stats()
	return c.JSON(httpStatus, &HealthResponse{
		Status:         status,
		Provider:       stats.Provider,
		Model:          stats.Model,
		DSPyConfigured: stats.Provider != "",
		Version:        version.GitCommit,
		Database:       dbStatus,
		PoolSize:       size,
		KNNDisabled:    size == 0,
	})
}
