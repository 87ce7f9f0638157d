package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/services"
)

// improvePromptHandler handles POST /api/v1/improve-prompt.
func (s *Server) improvePromptHandler(c *echo.Context) error {
	// 1. Bind HTTP request
	var req ImprovePromptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "request body does not match the schema")
	}

	// 2. Schema-level validation (presence and enum shape)
	if err := s.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// 3. Run the pipeline; domain invariants (idea length) are enforced there
	resp, err := s.orch.Handle(c.Request().Context(), models.ImproveRequest{
		Idea:    req.Idea,
		Context: req.Context,
		Mode:    models.Mode(req.Mode),
	})
	if err != nil {
		return mapPipelineError(err)
	}

	// 4. Transform to the wire shape
	return c.JSON(http.StatusOK, &ImprovePromptResponse{
		ImprovedPrompt: resp.ImprovedPrompt,
		Role:           resp.Role,
		Directive:      resp.Directive,
		Framework:      string(resp.Framework),
		Guardrails:     resp.Guardrails,
		Reasoning:      resp.Reasoning,
		Confidence:     resp.Confidence,
		Backend:        resp.Backend,
		PromptID:       resp.PromptID,
		Strategy:       resp.Strategy,
		Intent:         string(resp.Intent),
		MetricsWarning: resp.MetricsWarning,
		Degradation:    resp.Degradation,
	})
}

// listHistoryHandler handles GET /api/v1/history.
func (s *Server) listHistoryHandler(c *echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence is disabled")
	}

	filters := services.HistoryFilters{
		Backend:  c.QueryParam("backend"),
		Provider: c.QueryParam("provider"),
		Limit:    20,
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			filters.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filters.Offset = n
		}
	}

	records, err := s.history.FindRecent(c.Request().Context(), filters)
	if err != nil {
		return mapPipelineError(err)
	}
	return c.JSON(http.StatusOK, &HistoryListResponse{
		Records: records,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	})
}

// getHistoryHandler handles GET /api/v1/history/:id.
func (s *Server) getHistoryHandler(c *echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence is disabled")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be an integer")
	}

	record, findErr := s.history.FindByID(c.Request().Context(), id)
	if findErr != nil {
		return mapPipelineError(findErr)
	}
	return c.JSON(http.StatusOK, record)
}

// searchHistoryHandler handles GET /api/v1/history/search.
func (s *Server) searchHistoryHandler(c *echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence is disabled")
	}

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	records, err := s.history.Search(c.Request().Context(), query, limit)
	if err != nil {
		return mapPipelineError(err)
	}
	return c.JSON(http.StatusOK, &HistoryListResponse{Records: records, Limit: limit})
}

// retentionSweepHandler handles DELETE /api/v1/history/old.
func (s *Server) retentionSweepHandler(c *echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence is disabled")
	}

	days := s.cfg.Storage.RetentionDays
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = n
	}
	if days <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "retention is not configured; pass ?days=N")
	}

	deleted, err := s.history.DeleteOldRecords(c.Request().Context(), days)
	if err != nil {
		return mapPipelineError(err)
	}
	return c.JSON(http.StatusOK, &RetentionSweepResponse{Deleted: deleted, Days: days})
}

// statsHandler handles GET /api/v1/stats.
func (s *Server) statsHandler(c *echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence is disabled")
	}

	stats, err := s.history.GetStatistics(c.Request().Context())
	if err != nil {
		return mapPipelineError(err)
	}
	return c.JSON(http.StatusOK, &StatsResponse{Statistics: stats})
}
