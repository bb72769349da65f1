package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/service"
	"github.com/timmy/galleria/internal/source/staging"
)

// IngestHandler handles batch ingestion endpoints.
type IngestHandler struct {
	ingestService *service.IngestService
	stagingPath   string
}

// NewIngestHandler creates a new ingest handler.
// Parameters:
//   - ingestService: ingest service instance.
//   - stagingPath: directory scanned for new images on each run.
// Returns:
//   - *IngestHandler: initialized handler.
func NewIngestHandler(ingestService *service.IngestService, stagingPath string) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		stagingPath:   stagingPath,
	}
}

// Start handles POST /api/v1/ingest. The batch runs in the background; the
// response only acknowledges admission.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IngestHandler) Start(c *gin.Context) {
	batchID, err := h.ingestService.Start(staging.NewAdapter(h.stagingPath))
	if err != nil {
		if apperr.IsKind(err, apperr.KindAdmission) {
			c.JSON(http.StatusConflict, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start ingestion: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"batch_id": batchID,
	})
}

// Status handles GET /api/v1/ingest/status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IngestHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.ingestService.Status())
}
