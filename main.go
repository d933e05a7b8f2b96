package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yaccurue5-bingl/stockplatform-sub000/config"
	"github.com/yaccurue5-bingl/stockplatform-sub000/db"
	"github.com/yaccurue5-bingl/stockplatform-sub000/handler"
	"github.com/yaccurue5-bingl/stockplatform-sub000/middleware"
	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/logger"
	"github.com/yaccurue5-bingl/stockplatform-sub000/service"
)

func main() {
	// Secrets come from .env in development; missing file is fine
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	ctx := context.Background()

	// Run migrations, then open the pool
	if err := db.RunMigrations(cfg.Database.URL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Repositories
	ledgerRepo := db.NewLedgerRepo(pool)
	hotRepo := db.NewHotStockRepo(pool)
	insightRepo := db.NewInsightRepo(pool)
	marketRepo := db.NewMarketRepo(pool)

	// Services
	ledgerSvc := service.NewLedger(ledgerRepo, &cfg.Ledger)
	hotSvc := service.NewHotStocks(hotRepo, insightRepo, marketRepo, &cfg.Hot)
	feedSvc := service.NewFeedService(&cfg.Feed)
	inferenceSvc := service.NewInferenceService(&cfg.Inference)
	history := service.NewTickHistory(50)

	var archiveSvc service.Archiver
	if cfg.Archive.Enabled {
		svc, err := service.NewArchiveService(&cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize archive service", "error", err)
			os.Exit(1)
		}
		if err := svc.EnsureBucket(ctx); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
		archiveSvc = svc
	}

	analyzer := service.NewAnalyzer(feedSvc, inferenceSvc, insightRepo, archiveSvc, ledgerSvc, hotSvc, history, cfg)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	cronHandler := handler.NewCronHandler(analyzer)
	statsHandler := handler.NewStatsHandler(ledgerSvc, hotSvc, history, cfg)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                // Request ID for tracing
	router.Use(middleware.Recovery())                 // Panic recovery
	router.Use(middleware.RequestLogger())            // Access logging
	router.Use(middleware.RateLimit(60, time.Minute)) // Rate limiting: 60 requests per minute

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Scheduler routes, guarded by the shared cron secret
	cron := api.Group("/cron")
	cron.Use(middleware.CronAuth(cfg.Auth.CronSecret))
	{
		cron.POST("/analyze-disclosures", cronHandler.AnalyzeDisclosures)
		cron.POST("/analyze-hot-stocks", cronHandler.AnalyzeHotStocks)
		cron.POST("/cleanup", cronHandler.Cleanup)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.GET("/stats", statsHandler.GetStats)
		protected.GET("/hot-stocks", statsHandler.ListHotStocks)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
