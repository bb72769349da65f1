package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/galleria/internal/api"
	"github.com/timmy/galleria/internal/api/middleware"
	"github.com/timmy/galleria/internal/config"
	"github.com/timmy/galleria/internal/logger"
	"github.com/timmy/galleria/internal/repository"
	"github.com/timmy/galleria/internal/service"
	"github.com/timmy/galleria/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	lg := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(lg)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		lg.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	photoRepo := repository.NewPhotoRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	allocator := repository.NewIDAllocator(db)

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		lg.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	// Ensure Qdrant collection exists
	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		lg.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	// Initialize gallery storage (local directory or S3-compatible)
	gallery, err := storage.NewGalleryStorage(&cfg.Gallery, cfg.Server.BaseURL)
	if err != nil {
		lg.WithError(err).Fatal("Failed to initialize gallery storage")
	}

	// Initialize services. The same embedding service instance backs both
	// ingestion and queries; captions and query text must land in the same
	// vector space.
	embeddingService := service.NewEmbeddingService(&service.EmbeddingServiceConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	captionService := service.NewCaptionService(&service.CaptionConfig{
		Model:   cfg.Caption.Model,
		APIKey:  cfg.Caption.APIKey,
		BaseURL: cfg.Caption.BaseURL,
	})

	searchService := service.NewSearchService(
		embeddingService,
		qdrantRepo,
		gallery,
		lg,
		&service.SearchServiceConfig{
			DefaultTopK: cfg.Search.DefaultTopK,
		},
	)

	ingestService := service.NewIngestService(
		allocator,
		photoRepo,
		batchRepo,
		qdrantRepo,
		captionService,
		embeddingService,
		gallery,
		service.NewStatusManager(),
		lg,
	)

	// Setup router
	router := api.SetupRouter(searchService, ingestService, gallery, lg, &api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		StagingPath: cfg.Gallery.StagingPath,
		DefaultTopK: cfg.Search.DefaultTopK,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		lg.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Fatal("Server forced to shutdown")
	}

	lg.Info("Server exited")
}
