package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/service"
)

// SearchHandler handles similarity query endpoints.
type SearchHandler struct {
	searchService *service.SearchService
	defaultTopK   int
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
//   - defaultTopK: result count used when the request does not set top_k.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService, defaultTopK int) *SearchHandler {
	if defaultTopK < 1 {
		defaultTopK = 3
	}
	return &SearchHandler{
		searchService: searchService,
		defaultTopK:   defaultTopK,
	}
}

// Similar handles GET /api/v1/similar.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Similar(c *gin.Context) {
	caption := strings.TrimSpace(c.Query("caption"))
	if caption == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'caption' is required",
		})
		return
	}

	topK := h.defaultTopK
	if raw := c.Query("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Query parameter 'top_k' must be an integer",
			})
			return
		}
		if parsed > 0 {
			topK = parsed
		}
	}

	results, err := h.searchService.Similar(c.Request.Context(), caption, topK)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"caption": caption,
		"top_k":   topK,
		"results": results,
	})
}

// ListImages handles GET /api/v1/images.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) ListImages(c *gin.Context) {
	images, err := h.searchService.ListImages(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if apperr.IsKind(err, apperr.KindNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error": "Failed to list images: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"images": images,
		"total":  len(images),
	})
}
