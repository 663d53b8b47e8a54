package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"insumos-service/internal/cache"
	"insumos-service/internal/config"
	"insumos-service/internal/database"
	"insumos-service/internal/handlers"
	"insumos-service/internal/middleware"
	"insumos-service/internal/repository"
	"insumos-service/internal/routes"
	"insumos-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := buildLogger(cfg.Logging.Level, cfg.Server.GinMode)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.GinMode)

	// Infra
	postgresDB, err := database.NewPostgresDB(
		cfg.Database.URL,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer postgresDB.Close()

	redisDB, err := database.NewRedisDB(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()

	// Cache de catálogo (L1 memória + L2 Redis)
	catalogCache := cache.NewCatalogoCache(redisDB.Client, cfg.Cache.MaxL1Size, cfg.Cache.TTL, logger)

	// Repositories
	loteRepo, err := repository.NewLoteRepository(postgresDB.DB)
	if err != nil {
		logger.Fatal("Failed to create lote repository", zap.Error(err))
	}
	catalogoRepo, err := repository.NewCatalogoRepository(postgresDB.DB, logger)
	if err != nil {
		logger.Fatal("Failed to create catalogo repository", zap.Error(err))
	}
	lancamentoRepo := repository.NewLancamentoRepository(postgresDB.DB, logger)

	// Services
	engineMetrics := services.NewEngineMetrics()
	lancamentoService := services.NewLancamentoService(lancamentoRepo, loteRepo, catalogoRepo, catalogCache, engineMetrics, logger)
	previewService := services.NewPreviewService(loteRepo, catalogoRepo, catalogCache, engineMetrics, logger)
	monitoringService := services.NewMonitoringService(logger, cfg, redisDB.Client, postgresDB.DB, catalogCache, engineMetrics)

	// Handlers
	loteHandler := handlers.NewLoteHandler(lancamentoService, catalogCache, logger)
	lancamentoHandler := handlers.NewLancamentoHandler(lancamentoService, logger)
	previewHandler := handlers.NewPreviewHandler(previewService, logger)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService, logger)
	healthChecker := middleware.NewHealthChecker(postgresDB, redisDB, logger)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(monitoringHandler.RecordRequestMiddleware())

	routes.SetupRoutes(router, loteHandler, lancamentoHandler, previewHandler, monitoringHandler, healthChecker)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		middleware.ServerInfo(cfg.Server.Port, logger)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func buildLogger(level, ginMode string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	if ginMode == "debug" {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}
