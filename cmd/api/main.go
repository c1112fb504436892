package main

import (
	"fmt"
	"os"

	"budgetoffice/internal/config"
	"budgetoffice/internal/database"
	"budgetoffice/internal/logger"
	"budgetoffice/internal/server"
	"budgetoffice/internal/validator"

	_ "budgetoffice/internal/docs" // Import swagger docs
)

// @title           Budget Office API
// @version         1.0
// @description     Back-office API for managing categories, monthly budgets and transactions. Budget spend is reconciled automatically from transaction changes.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	if err := os.MkdirAll(appConfig.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	validator.Register()
	router := server.NewRouter(dbManager.DB(), appConfig)

	log.Infof("Starting budget office server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
