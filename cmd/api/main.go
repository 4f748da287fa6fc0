package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/lib/pq"

	_ "bai2-engine/docs"
	"bai2-engine/internal/config"
	"bai2-engine/internal/extract"
	"bai2-engine/internal/handler"
	"bai2-engine/internal/repository"
	"bai2-engine/internal/service"
	"bai2-engine/internal/storage"
	"bai2-engine/pkg/logger"
)

// @title BAI2 Conversion API
// @version 1.0
// @description Converts parsed bank statements into reconciled BAI2 v2 files

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("Starting BAI2 conversion service")

	ctx := context.Background()

	var (
		repo   repository.ConversionRepository
		health handler.HealthCheck
	)
	if cfg.Database.Enabled {
		db, err := connectDB(cfg.Database)
		if err != nil {
			logger.GetLogger().WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()
		logger.GetLogger().Info("Database connection established")

		repo = repository.NewConversionRepository(db)
		health = db.Ping
	} else {
		logger.GetLogger().Warn("Database disabled, run history is kept in memory")
		repo = repository.NewMemoryConversionRepository()
	}

	opts := []service.Option{}

	if cfg.Storage.Bucket != "" {
		store, err := storage.NewGCSStore(ctx)
		if err != nil {
			logger.GetLogger().WithError(err).Fatal("Failed to create storage client")
		}
		defer store.Close()
		dest := fmt.Sprintf("gs://%s/%s", cfg.Storage.Bucket, strings.TrimPrefix(cfg.Storage.OutputPrefix, "/"))
		opts = append(opts, service.WithObjectStore(store, dest))
		logger.GetLogger().WithField("destination", dest).Info("Object conversion enabled")
	}

	if cfg.Extraction.APIKey != "" {
		extractor, err := extract.NewGeminiExtractor(ctx, cfg.Extraction.APIKey, cfg.Extraction.Model)
		if err != nil {
			logger.GetLogger().WithError(err).Fatal("Failed to create extraction client")
		}
		opts = append(opts, service.WithExtractor(extractor))
		logger.GetLogger().WithField("model", cfg.Extraction.Model).Info("PDF conversion enabled")
	}

	conversionService := service.NewConversionService(repo, cfg.BAI2, opts...)
	conversionHandler := handler.NewConversionHandler(conversionService)

	router := handler.NewRouter(conversionHandler, health)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.GetLogger().WithField("address", addr).Info("Server starting")

	if err := router.Run(addr); err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to start server")
	}
}

func connectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}
