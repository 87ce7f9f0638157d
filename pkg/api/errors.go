package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/promptforge-dev/promptforge/pkg/llm"
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/orchestrator"
	"github.com/promptforge-dev/promptforge/pkg/services"
)

// mapPipelineError maps orchestrator and service errors to HTTP error responses.
func mapPipelineError(err error) *echo.HTTPError {
	var validErr *models.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, orchestrator.ErrGateRejected) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if errors.Is(err, llm.ErrProviderUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "LLM provider unavailable: "+err.Error())
	}
	if errors.Is(err, orchestrator.ErrNoPrompt) || errors.Is(err, context.DeadlineExceeded) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "deadline exceeded with no best candidate")
	}
	if errors.Is(err, services.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, services.ErrInvalidInput) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// Unexpected error — programmer errors land here as 500s.
	slog.Error("Unexpected pipeline error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// errorHandler renders every error as the stable {"detail": ...} body.
func errorHandler(c *echo.Context, err error) {
	if r, uerr := echo.UnwrapResponse(c.Response()); uerr == nil && r.Committed {
		return
	}

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	detail := httpErr.Message
	if detail == "" {
		detail = http.StatusText(httpErr.Code)
	}

	if writeErr := c.JSON(httpErr.Code, &ErrorResponse{Detail: detail}); writeErr != nil {
		slog.Error("Failed to write error response", "error", writeErr)
	}
}
