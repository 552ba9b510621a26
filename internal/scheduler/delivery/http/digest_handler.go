package http

import (
	"net/http"
	"strconv"

	"golang-market-news/internal/scheduler/repository"
	"golang-market-news/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DigestHandler serves the read-only digest query surface.
type DigestHandler struct {
	digestRepo repository.DigestRepository
	logger     *logger.Logger
}

// NewDigestHandler creates a new DigestHandler.
func NewDigestHandler(digestRepo repository.DigestRepository, logger *logger.Logger) *DigestHandler {
	return &DigestHandler{digestRepo: digestRepo, logger: logger}
}

// RegisterRoutes registers the digest routes to the Echo group.
func (h *DigestHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentDigests)
}

// GetRecentDigests returns the most recent digests with their membership.
func (h *DigestHandler) GetRecentDigests(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
		limit = parsed
	}

	digests, err := h.digestRepo.FindRecent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list digests", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, digests)
}
