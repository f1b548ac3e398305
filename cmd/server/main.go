package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/cache"
	"github.com/SAP-F-2025/interview-session-service/internal/config"
	"github.com/SAP-F-2025/interview-session-service/internal/handlers"
	"github.com/SAP-F-2025/interview-session-service/internal/jobs"
	"github.com/SAP-F-2025/interview-session-service/internal/lock"
	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/interview-session-service/internal/services"
	"github.com/SAP-F-2025/interview-session-service/internal/utils"
	"github.com/SAP-F-2025/interview-session-service/internal/validator"
	"github.com/SAP-F-2025/interview-session-service/pkg"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := utils.NewBaseLogger(cfg.Environment)
	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := pkg.Migrate(db); err != nil {
		return err
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		if cfg.LockBackend == "redis" {
			return err
		}
		logger.Warn("Redis unavailable, results cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	zapLogger, err := newZapLogger(cfg.Environment)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      postgres.NewRepository(db),
		Locker:    newLocker(cfg, redisClient, logger),
		Cache:     newResultsCache(redisClient, zapLogger),
		Publisher: publisher,
		Validator: validator.New(),
		Logger:    logger,
	}, services.Options{
		DefaultSecurityConfig: defaultSecurityConfig(cfg),
		RecentWindow:          cfg.RecentWindow,
		CASMaxRetries:         cfg.CASMaxRetries,
		LockTimeout:           cfg.LockWaitTimeout,
		ResultsCacheTTL:       cfg.ResultsCacheTTL,
	})

	sweeper := jobs.NewSessionSweeper(serviceManager.Monitor(), serviceManager.Scoring(), jobs.SweeperConfig{
		Schedule: cfg.SweepSchedule,
	}, logger)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpLogger := utils.NewSlogLogger(logger)
	router := handlers.NewRouter(handlers.NewHandlerManager(serviceManager, httpLogger), httpLogger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Interview session service listening", "port", cfg.Port, "lock_backend", cfg.LockBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLocker(cfg *config.Config, client *redis.Client, logger *slog.Logger) lock.Locker {
	if cfg.LockBackend == "redis" && client != nil {
		return lock.NewRedisLocker(client, cfg.LockTTL, logger)
	}
	return lock.NewLocalLocker()
}

func newResultsCache(client *redis.Client, logger *zap.Logger) cache.CacheService {
	if client == nil {
		return cache.NoopCache{}
	}
	return cache.NewRedisCache(client, logger)
}

func newZapLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func defaultSecurityConfig(cfg *config.Config) *models.SecurityConfig {
	defaults := models.DefaultSecurityConfig()
	defaults.TabSwitchLimit = cfg.DefaultTabSwitchLimit
	defaults.WarningLimit = cfg.DefaultWarningLimit
	return &defaults
}
