package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/timmy/galleria/internal/config"
	"github.com/timmy/galleria/internal/logger"
	"github.com/timmy/galleria/internal/repository"
	"github.com/timmy/galleria/internal/service"
	"github.com/timmy/galleria/internal/source"
	"github.com/timmy/galleria/internal/source/staging"
	"github.com/timmy/galleria/internal/storage"
)

// limitedSource caps how many staged images a run processes. Useful for
// smoke-testing a deployment against a large staging directory.
type limitedSource struct {
	source.Source
	limit int
}

func (s *limitedSource) List(ctx context.Context) ([]source.StagedImage, error) {
	images, err := s.Source.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.limit > 0 && len(images) > s.limit {
		images = images[:s.limit]
	}
	return images, nil
}

func main() {
	stagingPath := flag.String("staging", "", "staging directory to ingest (defaults to gallery.staging_path)")
	limit := flag.Int("limit", 0, "max images to process this run (0 = all)")
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(lg)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		lg.WithError(err).Fatal("Failed to initialize database")
	}

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

	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		lg.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	gallery, err := storage.NewGalleryStorage(&cfg.Gallery, cfg.Server.BaseURL)
	if err != nil {
		lg.WithError(err).Fatal("Failed to initialize gallery storage")
	}

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

	ingestService := service.NewIngestService(
		repository.NewIDAllocator(db),
		repository.NewPhotoRepository(db),
		repository.NewBatchRepository(db),
		qdrantRepo,
		captionService,
		embeddingService,
		gallery,
		service.NewStatusManager(),
		lg,
	)

	dir := *stagingPath
	if dir == "" {
		dir = cfg.Gallery.StagingPath
	}

	var src source.Source = staging.NewAdapter(dir)
	if *limit > 0 {
		src = &limitedSource{Source: src, limit: *limit}
	}

	ctx = logger.SetComponent(ctx, "ingest-cli")
	result, err := ingestService.Run(ctx, src)
	if err != nil {
		lg.WithError(err).Fatal("Ingestion was not admitted")
	}

	fmt.Printf("batch %s: %d total, %d indexed, %d failed (%.1fs)\n",
		result.BatchID, result.Total, result.Indexed, result.Failed,
		result.EndTime.Sub(result.StartTime).Seconds())

	if result.Failed > 0 {
		os.Exit(1)
	}
}
