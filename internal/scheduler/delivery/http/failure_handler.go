package http

import (
	"net/http"
	"strconv"

	"golang-market-news/internal/scheduler/repository"
	"golang-market-news/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FailureHandler exposes unresolved dead-letter records for operators.
type FailureHandler struct {
	failureRepo repository.FailureRepository
	logger      *logger.Logger
}

// NewFailureHandler creates a new FailureHandler.
func NewFailureHandler(failureRepo repository.FailureRepository, logger *logger.Logger) *FailureHandler {
	return &FailureHandler{failureRepo: failureRepo, logger: logger}
}

// RegisterRoutes registers the failure routes to the Echo group.
func (h *FailureHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetUnresolvedFailures)
}

// GetUnresolvedFailures returns unresolved processing failures, most recent
// first.
func (h *FailureHandler) GetUnresolvedFailures(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
		limit = parsed
	}

	failures, err := h.failureRepo.FindUnresolved(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list processing failures", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, failures)
}
