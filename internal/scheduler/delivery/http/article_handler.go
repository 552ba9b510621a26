package http

import (
	"net/http"
	"strconv"

	"golang-market-news/internal/scheduler/repository"
	"golang-market-news/pkg/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const defaultListLimit = 50

// ArticleHandler serves the read-only article query surface.
type ArticleHandler struct {
	articleRepo repository.ArticleRepository
	logger      *logger.Logger
}

// NewArticleHandler creates a new ArticleHandler.
func NewArticleHandler(articleRepo repository.ArticleRepository, logger *logger.Logger) *ArticleHandler {
	return &ArticleHandler{articleRepo: articleRepo, logger: logger}
}

// RegisterRoutes registers the article routes to the Echo group.
func (h *ArticleHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentArticles)
	g.GET("/:id", h.GetArticleByID)
}

// GetRecentArticles returns the most recently discovered articles with their
// analyses.
func (h *ArticleHandler) GetRecentArticles(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
		limit = parsed
	}

	articles, err := h.articleRepo.FindRecent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list articles", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, articles)
}

// GetArticleByID returns a single article with its analyses.
func (h *ArticleHandler) GetArticleByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid article ID"})
	}

	article, err := h.articleRepo.FindByID(c.Request().Context(), uint(id))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Article not found"})
		}
		h.logger.Error("Failed to load article", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, article)
}
