package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/kasbon/kasirsync/internal/application/service"
	"github.com/kasbon/kasirsync/internal/config"
	"github.com/kasbon/kasirsync/internal/infrastructure/database"
	"github.com/kasbon/kasirsync/internal/infrastructure/repository"
	"github.com/kasbon/kasirsync/internal/presentation/http/handler"
	"github.com/kasbon/kasirsync/internal/presentation/http/routes"
	"github.com/kasbon/kasirsync/pkg/authtoken"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize token manager
	tokens := authtoken.NewManager(cfg.Auth.Secret, cfg.Auth.TokenExpiry)

	// Initialize repositories
	trxRepo := repository.NewTransactionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	refRepo := repository.NewRefRepository(db)

	// Initialize services
	pushService := service.NewPushService(db, trxRepo, auditRepo, &service.NoopPostingHook{}, cfg.Sync.PostingMode)
	pullService := service.NewPullService(refRepo)

	// Initialize handlers and routes
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, cfg, tokens, routes.Handlers{
		Sync: handler.NewSyncHandler(pushService, pullService, cfg.Sync.MaxBatchSize),
	})

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting %s server on port %s...", cfg.App.Name, port)
	log.Printf("Environment: %s", cfg.App.Env)
	log.Printf("Posting mode: %s", cfg.Sync.PostingMode)

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
