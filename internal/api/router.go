package api

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/timmy/galleria/internal/api/handler"
	"github.com/timmy/galleria/internal/api/middleware"
	"github.com/timmy/galleria/internal/logger"
	"github.com/timmy/galleria/internal/service"
	"github.com/timmy/galleria/internal/storage"
)

// RouterConfig carries the HTTP-layer settings the router needs.
type RouterConfig struct {
	Mode        string
	CORS        middleware.CORSConfig
	StagingPath string
	DefaultTopK int
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	searchService *service.SearchService,
	ingestService *service.IngestService,
	gallery storage.GalleryStorage,
	log *logger.Logger,
	cfg *RouterConfig,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	searchHandler := handler.NewSearchHandler(searchService, cfg.DefaultTopK)
	ingestHandler := handler.NewIngestHandler(ingestService, cfg.StagingPath)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Committed images are served directly when the gallery backend is a
	// local directory; an object-store backend serves its own URLs. The
	// mount point mirrors the directory name, matching the paths the
	// storage layer embeds in image URLs.
	if dir, ok := gallery.ServeDir(); ok {
		r.Static("/"+filepath.Base(dir), dir)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Gallery
		v1.GET("/images", searchHandler.ListImages)

		// Similarity search
		v1.GET("/similar", searchHandler.Similar)

		// Ingestion
		v1.POST("/ingest", ingestHandler.Start)
		v1.GET("/ingest/status", ingestHandler.Status)
	}

	return r
}
