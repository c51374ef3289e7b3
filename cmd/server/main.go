package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/petertzy/molthub/backend/internal/middleware"
	"github.com/petertzy/molthub/backend/internal/queue"
	"github.com/petertzy/molthub/backend/internal/realtime"
	"github.com/petertzy/molthub/backend/internal/repositories"
	"github.com/petertzy/molthub/backend/internal/router"
	"github.com/petertzy/molthub/backend/pkg/config"
	"github.com/petertzy/molthub/backend/pkg/firebase"
	"github.com/petertzy/molthub/backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logging
	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	db, err := config.InitDB()
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.CloseDB()
	logger.Info("connected to PostgreSQL")

	// Connection registry, constructed once and torn down on shutdown
	hub := realtime.NewHub(logger)

	// Firebase messaging is optional; without credentials the offline push
	// fallback is simply disabled.
	var push queue.PushSender
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err := firebase.InitFirebase(context.Background(), cfg.FirebaseCredentialsPath)
		if err != nil {
			logger.Warn("firebase init failed, mobile push disabled", zap.Error(err))
		} else {
			push = firebaseApp
			logger.Info("firebase messaging initialized")
		}
	}

	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)
	preferenceRepo := repositories.NewPostgresPreferenceRepository(db.Postgres)
	deliverer := queue.NewDeliverer(notificationRepo, preferenceRepo, hub, push, logger)

	// Probe the broker once at startup. When it is reachable, notification
	// work goes through the durable queue; otherwise the process falls back
	// to synchronous dispatch so requests still succeed.
	var (
		dispatcher queue.Dispatcher
		workers    *queue.Workers
		queueAdmin *queue.Admin
	)
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	if brokerReachable(cfg, logger) {
		queuedDispatcher := queue.NewQueuedDispatcher(redisOpt, logger)
		defer queuedDispatcher.Close()
		dispatcher = queuedDispatcher
		queueAdmin = queue.NewAdmin(redisOpt)

		workers = queue.NewWorkers(redisOpt, deliverer, logger)
		if err := workers.Start(); err != nil {
			logger.Fatal("failed to start queue workers", zap.Error(err))
		}
	} else {
		logger.Warn("broker unreachable, using direct notification dispatch")
		dispatcher = queue.NewDirectDispatcher(deliverer, logger)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	err = router.SetupRoutes(e, router.Dependencies{
		DB:         db.Postgres,
		Hub:        hub,
		Verifier:   middleware.NewJWTVerifier(cfg.JWTSecret),
		Dispatcher: dispatcher,
		QueueAdmin: queueAdmin,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to set up routes", zap.Error(err))
	}

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			logger.Info("http server stopped", zap.Error(err))
		}
	}()
	logger.Info("server started", zap.String("port", cfg.Port))

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if workers != nil {
		workers.Shutdown()
	}
	hub.Close()
}

// newLogger builds the process logger; development mode gets console output
func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// brokerReachable pings Redis once with a short timeout
func brokerReachable(cfg *config.Config, logger *zap.Logger) bool {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return false
	}
	return true
}
